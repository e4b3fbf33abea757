package editmany

import (
	"reflect"
	"slices"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Shared describes one field across a selection. When Same is true every
// record holds Value and the form can be prefilled with it.
type Shared struct {
	Same  bool `json:"same"`
	Value any  `json:"value,omitempty"`
}

type Summary struct {
	Count        int              `json:"count"`
	Fields       map[Field]Shared `json:"fields"`
	CustomFields map[int64]Shared `json:"customFields"`
}

// Summarize reports which fields share a value across txs.
func Summarize(txs []core.Transaction) Summary {
	s := Summary{
		Count:        len(txs),
		Fields:       map[Field]Shared{},
		CustomFields: map[int64]Shared{},
	}
	if len(txs) == 0 {
		return s
	}
	for _, f := range Fields() {
		first := fieldValue(txs[0], f)
		same := true
		for _, tx := range txs[1:] {
			if !reflect.DeepEqual(first, fieldValue(tx, f)) {
				same = false
				break
			}
		}
		if same {
			s.Fields[f] = Shared{Same: true, Value: first}
		} else {
			s.Fields[f] = Shared{}
		}
	}

	ids := map[int64]bool{}
	for _, tx := range txs {
		for _, v := range tx.CustomFields {
			ids[v.ID] = true
		}
	}
	for id := range ids {
		first, _ := customValue(txs[0], id)
		same := true
		for _, tx := range txs[1:] {
			if v, _ := customValue(tx, id); v != first {
				same = false
				break
			}
		}
		if same {
			s.CustomFields[id] = Shared{Same: true, Value: first}
		} else {
			s.CustomFields[id] = Shared{}
		}
	}
	return s
}

// fieldValue returns a comparable representation of f on tx. Unset fields
// are untyped nil so they compare equal across records.
func fieldValue(tx core.Transaction, f Field) any {
	b := tx.Balance
	switch f {
	case Name:
		return tx.Name
	case CategoryID:
		return tx.CategoryID
	case SubCategoryID:
		return deref(tx.SubCategoryID)
	case AccountID:
		return tx.AccountID
	case DueDate:
		return dateValue(tx.DueDate)
	case RegistrationDate:
		return dateValue(tx.RegistrationDate)
	case ConfirmationDate:
		if tx.ConfirmationDate == nil {
			return nil
		}
		return dateValue(*tx.ConfirmationDate)
	case IsConfirmed:
		return tx.IsConfirmed
	case Value:
		return b.Value.String()
	case Discount:
		return decimalValue(b.Discount)
	case DiscountPercentage:
		return decimalValue(b.DiscountPercentage)
	case Interest:
		return decimalValue(b.Interest)
	case InterestPercentage:
		return decimalValue(b.InterestPercentage)
	case Tags:
		if len(tx.Tags) == 0 {
			return nil
		}
		return slices.Clone(tx.Tags)
	}
	return nil
}

func customValue(tx core.Transaction, id int64) (string, bool) {
	for _, v := range tx.CustomFields {
		if v.ID == id {
			return v.Value, true
		}
	}
	return "", false
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func dateValue(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func decimalValue(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.String()
}
