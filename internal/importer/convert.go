package importer

import (
	"errors"
	"fmt"
	"strings"

	"saldo/internal/core"
)

var (
	ErrNoRows          = errors.New("file has no data rows")
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownSub      = errors.New("unknown subcategory")
	ErrUnknownAccount  = errors.New("unknown account")
)

// Preview is what a client needs to build the mapping form.
type Preview struct {
	Headers   []string          `json:"headers"`
	Sample    map[string]string `json:"sample"`
	RowCount  int               `json:"rowCount"`
	Targets   []Target          `json:"targets"`
	Suggested Mapping           `json:"suggested"`
}

func NewPreview(t Table, targets []Target) Preview {
	p := Preview{
		Headers:   t.Headers,
		Sample:    map[string]string{},
		RowCount:  len(t.Rows),
		Targets:   targets,
		Suggested: AutoMap(t.Headers, targets),
	}
	if len(t.Rows) > 0 {
		p.Sample = t.Row(0)
	}
	return p
}

// Lookup holds the stored records row values are resolved against.
type Lookup struct {
	Categories []core.Category
	Accounts   []core.Account
	Fields     []core.CustomField
}

// RowError ties a conversion failure to its line in the file; the header is line 1.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// Convert validates m and turns every row into a transaction. Nothing is
// returned unless every row converts; the error joins one RowError per
// failing row.
func Convert(t Table, m Mapping, lk Lookup, today core.Date) ([]core.Transaction, error) {
	targets := Targets(lk.Fields)
	if err := m.Validate(t.Headers, targets); err != nil {
		return nil, err
	}
	if len(t.Rows) == 0 {
		return nil, ErrNoRows
	}

	col := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		col[h] = i
	}
	byID := make(map[int64]core.Category, len(lk.Categories))
	for _, c := range lk.Categories {
		byID[c.ID] = c
	}

	var (
		out  = make([]core.Transaction, 0, len(t.Rows))
		errs []error
	)
	for i, row := range t.Rows {
		get := func(key string) string {
			h, ok := m[key]
			if !ok || h == "" {
				return ""
			}
			return row[col[h]]
		}
		tx, err := convertRow(get, lk, today)
		if err == nil {
			err = tx.Validate()
		}
		if err == nil {
			err = tx.ValidateReferences(byID, lk.Fields)
		}
		if err != nil {
			errs = append(errs, &RowError{Line: i + 2, Err: err})
			continue
		}
		out = append(out, tx)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func convertRow(get func(string) string, lk Lookup, today core.Date) (core.Transaction, error) {
	tx := core.Transaction{
		Name:             get(KeyName),
		Frequency:        core.FrequencyNone,
		RegistrationDate: today,
	}

	value, err := core.ParseAmount(get(KeyValue))
	if err != nil {
		return tx, fmt.Errorf("value: %w", err)
	}
	// Without a type column the sign gives the direction.
	if raw := get(KeyType); raw != "" {
		if tx.Type, err = ParseType(raw); err != nil {
			return tx, err
		}
	} else if value.IsNegative() {
		tx.Type = core.Expense
	} else {
		tx.Type = core.Income
	}
	tx.Balance.Value = value.Abs()

	if raw := get(KeyDiscount); raw != "" {
		d, err := core.ParseAmount(raw)
		if err != nil {
			return tx, fmt.Errorf("discount: %w", err)
		}
		tx.Balance.Discount = &d
	}
	if raw := get(KeyInterest); raw != "" {
		d, err := core.ParseAmount(raw)
		if err != nil {
			return tx, fmt.Errorf("interest: %w", err)
		}
		tx.Balance.Interest = &d
	}
	if tx.Balance, err = tx.Balance.WithLiquid(); err != nil {
		return tx, err
	}

	if tx.DueDate, err = ParseDate(get(KeyDueDate)); err != nil {
		return tx, fmt.Errorf("due date: %w", err)
	}
	if raw := get(KeyRegistrationDate); raw != "" {
		if tx.RegistrationDate, err = ParseDate(raw); err != nil {
			return tx, fmt.Errorf("registration date: %w", err)
		}
	}
	if tx.IsConfirmed, err = ParseBool(get(KeyConfirmed)); err != nil {
		return tx, err
	}
	if raw := get(KeyConfirmationDate); raw != "" {
		d, err := ParseDate(raw)
		if err != nil {
			return tx, fmt.Errorf("confirmation date: %w", err)
		}
		tx.ConfirmationDate = &d
		tx.IsConfirmed = true
	} else if tx.IsConfirmed {
		d := tx.DueDate
		tx.ConfirmationDate = &d
	}

	cat, ok := findCategory(lk.Categories, get(KeyCategory), tx.Type)
	if !ok {
		return tx, fmt.Errorf("%w: %q", ErrUnknownCategory, get(KeyCategory))
	}
	tx.CategoryID = cat.ID
	if raw := get(KeySubCategory); raw != "" {
		sub, ok := findSub(cat, raw)
		if !ok {
			return tx, fmt.Errorf("%w: %q in %q", ErrUnknownSub, raw, cat.Name)
		}
		tx.SubCategoryID = &sub.ID
	}

	acc, ok := findAccount(lk.Accounts, get(KeyAccount))
	if !ok {
		return tx, fmt.Errorf("%w: %q", ErrUnknownAccount, get(KeyAccount))
	}
	tx.AccountID = acc.ID

	for _, f := range lk.Fields {
		if !f.TransactionType.Applies(tx.Type) {
			continue
		}
		if v := strings.TrimSpace(get(customKey(f.ID))); v != "" {
			tx.CustomFields = append(tx.CustomFields, core.CustomFieldValue{ID: f.ID, Value: v})
		}
	}
	return tx, nil
}

// findCategory prefers a category of the transaction's own type, so that an
// income and an expense category may share a name.
func findCategory(cats []core.Category, name string, tt core.TransactionType) (core.Category, bool) {
	n := normalize(name)
	if n == "" {
		return core.Category{}, false
	}
	var fallback *core.Category
	for i, c := range cats {
		if c.Type == core.CategoryTag || normalize(c.Name) != n {
			continue
		}
		if string(c.Type) == string(tt) {
			return c, true
		}
		if fallback == nil {
			fallback = &cats[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return core.Category{}, false
}

func findSub(c core.Category, name string) (core.SubCategory, bool) {
	n := normalize(name)
	for _, s := range c.SubCategories {
		if normalize(s.Name) == n {
			return s, true
		}
	}
	return core.SubCategory{}, false
}

func findAccount(accounts []core.Account, name string) (core.Account, bool) {
	n := normalize(name)
	if n == "" {
		return core.Account{}, false
	}
	for _, a := range accounts {
		if normalize(a.Name) == n {
			return a, true
		}
	}
	return core.Account{}, false
}
