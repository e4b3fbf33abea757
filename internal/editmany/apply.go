package editmany

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Apply returns tx with the patch applied and its liquid value recomputed.
// categories is used to drop a subcategory that no longer belongs to a
// changed category. today stamps confirmed records left without a
// confirmation date; unconfirmed records never keep one.
func (p Patch) Apply(tx core.Transaction, categories map[int64]core.Category, today core.Date) (core.Transaction, error) {
	if p.Name != nil {
		tx.Name = *p.Name
	}
	if p.AccountID != nil {
		tx.AccountID = *p.AccountID
	}
	if p.DueDate != nil {
		tx.DueDate = *p.DueDate
	}
	if p.RegistrationDate != nil {
		tx.RegistrationDate = *p.RegistrationDate
	}
	if p.Cleared[RegistrationDate] {
		tx.RegistrationDate = core.Date{}
	}

	if p.CategoryID != nil {
		tx.CategoryID = *p.CategoryID
	}
	switch {
	case p.SubCategoryID != nil:
		id := *p.SubCategoryID
		tx.SubCategoryID = &id
	case p.Cleared[SubCategoryID]:
		tx.SubCategoryID = nil
	case p.CategoryID != nil && tx.SubCategoryID != nil:
		if cat, ok := categories[tx.CategoryID]; !ok || !cat.HasSub(*tx.SubCategoryID) {
			tx.SubCategoryID = nil
		}
	}

	if p.IsConfirmed != nil {
		tx.IsConfirmed = *p.IsConfirmed
	}
	switch {
	case !tx.IsConfirmed:
		// Only confirmed records carry a confirmation date.
		tx.ConfirmationDate = nil
	case p.ConfirmationDate != nil:
		d := *p.ConfirmationDate
		tx.ConfirmationDate = &d
	case p.Cleared[ConfirmationDate], tx.ConfirmationDate == nil:
		d := today
		tx.ConfirmationDate = &d
	}

	b := tx.Balance
	if p.Value != nil {
		b.Value = *p.Value
	}
	// Setting one variant of an adjustment replaces the other.
	b.Discount, b.DiscountPercentage = adjust(b.Discount, b.DiscountPercentage, p.Discount, p.DiscountPercentage, p.Cleared[Discount], p.Cleared[DiscountPercentage])
	b.Interest, b.InterestPercentage = adjust(b.Interest, b.InterestPercentage, p.Interest, p.InterestPercentage, p.Cleared[Interest], p.Cleared[InterestPercentage])
	b, err := b.WithLiquid()
	if err != nil {
		return tx, fmt.Errorf("transaction %d: %w", tx.ID, err)
	}
	tx.Balance = b

	switch {
	case p.Tags != nil:
		tx.Tags = slices.Clone(*p.Tags)
	case p.Cleared[Tags]:
		tx.Tags = nil
	}

	tx.CustomFields = p.applyCustom(tx.CustomFields)
	return tx, nil
}

func adjust(flat, pct, setFlat, setPct *decimal.Decimal, clearFlat, clearPct bool) (*decimal.Decimal, *decimal.Decimal) {
	if clearFlat {
		flat = nil
	}
	if clearPct {
		pct = nil
	}
	if setFlat != nil {
		flat, pct = core.DecimalPtr(*setFlat), nil
	}
	if setPct != nil {
		flat, pct = nil, core.DecimalPtr(*setPct)
	}
	return flat, pct
}

func (p Patch) applyCustom(values []core.CustomFieldValue) []core.CustomFieldValue {
	if len(p.CustomFields) == 0 && len(p.ClearedCustom) == 0 {
		return values
	}
	out := make([]core.CustomFieldValue, 0, len(values)+len(p.CustomFields))
	seen := map[int64]bool{}
	for _, v := range values {
		if p.ClearedCustom[v.ID] {
			continue
		}
		if nv, ok := p.CustomFields[v.ID]; ok {
			v.Value = nv
		}
		seen[v.ID] = true
		out = append(out, v)
	}
	ids := make([]int64, 0, len(p.CustomFields))
	for id := range p.CustomFields {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		out = append(out, core.CustomFieldValue{ID: id, Value: p.CustomFields[id]})
	}
	return out
}
