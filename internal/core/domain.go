package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	FrequencyNone      Frequency = "none"
	FrequencyRepeat    Frequency = "repeat"
	FrequencyRecurring Frequency = "recurring"

	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
	CategoryTag     CategoryType = "tag"

	FieldText   CustomFieldType = "text"
	FieldNumber CustomFieldType = "number"
	FieldSelect CustomFieldType = "select"

	ScopeAll     FieldScope = "all"
	ScopeIncome  FieldScope = "income"
	ScopeExpense FieldScope = "expense"
)

type (
	TransactionType string
	Frequency       string
	CategoryType    string
	CustomFieldType string
	FieldScope      string

	// Date is a calendar day in UTC, encoded as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	RepeatSettings struct {
		InitialInstallment int      `json:"initialInstallment"`
		Count              int      `json:"count"`
		Interval           Interval `json:"interval"`
		CurrentCount       int      `json:"currentCount"`
	}

	TagRef struct {
		TagID    int64  `json:"tagId"`
		SubTagID *int64 `json:"subTagId,omitempty"`
	}

	CustomFieldValue struct {
		ID    int64  `json:"id"`
		Value string `json:"value"`
	}

	Transaction struct {
		ID               int64              `json:"id"`
		Type             TransactionType    `json:"type"`
		Name             string             `json:"name"`
		Balance          Balance            `json:"balance"`
		Frequency        Frequency          `json:"frequency"`
		RepeatSettings   *RepeatSettings    `json:"repeatSettings,omitempty"`
		RepeatGroupID    string             `json:"repeatGroupId,omitempty"`
		DueDate          Date               `json:"dueDate"`
		RegistrationDate Date               `json:"registrationDate"`
		ConfirmationDate *Date              `json:"confirmationDate,omitempty"`
		IsConfirmed      bool               `json:"isConfirmed"`
		CategoryID       int64              `json:"categoryId"`
		SubCategoryID    *int64             `json:"subCategoryId,omitempty"`
		Tags             []TagRef           `json:"tags"`
		AccountID        int64              `json:"accountId"`
		CustomFields     []CustomFieldValue `json:"customFields"`
		Version          int64              `json:"version"`
	}

	Account struct {
		ID              int64           `json:"id"`
		Name            string          `json:"name"`
		Balance         decimal.Decimal `json:"balance"`
		CurrentBalance  decimal.Decimal `json:"currentBalance"`
		ForecastBalance decimal.Decimal `json:"forecastBalance"`
		BankID          string          `json:"bankId,omitempty"`
	}

	SubCategory struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Icon string `json:"icon,omitempty"`
	}

	Category struct {
		ID            int64         `json:"id"`
		Name          string        `json:"name"`
		Icon          string        `json:"icon,omitempty"`
		Type          CategoryType  `json:"type"`
		SubCategories []SubCategory `json:"subCategories"`
	}

	CustomField struct {
		ID              int64           `json:"id"`
		Name            string          `json:"name"`
		Type            CustomFieldType `json:"type"`
		Options         []string        `json:"options"`
		Required        bool            `json:"required"`
		TransactionType FieldScope      `json:"transactionType"`
	}
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInUse              = errors.New("still referenced by transactions")
	ErrVersionConflict    = errors.New("version conflict")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyName          = errors.New("empty name")
	ErrNameTooLong        = errors.New("name too long (max 200 characters)")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrInvalidRepeat      = errors.New("invalid repeat settings")
	ErrMissingAccount     = errors.New("missing account")
	ErrMissingCategory    = errors.New("missing category")
	ErrCategoryMismatch   = errors.New("category type does not match transaction type")
	ErrUnknownSubCategory = errors.New("subcategory does not belong to category")
	ErrInvalidTag         = errors.New("invalid tag")
	ErrInvalidCustomField = errors.New("invalid custom field")
	ErrInvalidCategory    = errors.New("invalid category")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps from clients that send ISO datetimes.
	if len(s) > 10 {
		s = s[:10]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyNone, FrequencyRepeat, FrequencyRecurring:
		return true
	}
	return false
}

func (c CategoryType) Valid() bool {
	switch c {
	case CategoryIncome, CategoryExpense, CategoryTag:
		return true
	}
	return false
}

// Applies reports whether a field with this scope is attached to transactions of type t.
func (s FieldScope) Applies(t TransactionType) bool {
	return s == ScopeAll || s == "" || string(s) == string(t)
}

// InstallmentLabel renders "current/count" for repeated transactions and
// "#current" for open-ended recurring ones.
func (t Transaction) InstallmentLabel() string {
	if t.RepeatSettings == nil || t.Frequency == FrequencyNone {
		return ""
	}
	rs := t.RepeatSettings
	if rs.Count > 0 {
		return fmt.Sprintf("%d/%d", rs.CurrentCount, rs.Count)
	}
	return fmt.Sprintf("#%d", rs.CurrentCount)
}

// Validate checks the transaction on its own. References to categories,
// tags and custom fields are checked by ValidateReferences.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return ErrNameTooLong
	}
	if err := t.DueDate.Validate(); err != nil {
		return fmt.Errorf("due date: %w", err)
	}
	if t.AccountID <= 0 {
		return ErrMissingAccount
	}
	if t.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if _, err := t.Balance.Liquid(); err != nil {
		return err
	}
	if t.Frequency == "" {
		t.Frequency = FrequencyNone
	}
	if !t.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if err := t.validateRepeat(); err != nil {
		return err
	}
	return nil
}

func (t Transaction) validateRepeat() error {
	if t.Frequency == FrequencyNone {
		return nil
	}
	rs := t.RepeatSettings
	if rs == nil {
		return fmt.Errorf("%w: settings required for %s", ErrInvalidRepeat, t.Frequency)
	}
	if _, err := StepperFor(rs.Interval); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRepeat, err)
	}
	switch t.Frequency {
	case FrequencyRepeat:
		if rs.Count < 2 {
			return fmt.Errorf("%w: count must be at least 2", ErrInvalidRepeat)
		}
		if rs.InitialInstallment < 1 || rs.InitialInstallment > rs.Count {
			return fmt.Errorf("%w: initial installment must be between 1 and %d", ErrInvalidRepeat, rs.Count)
		}
	case FrequencyRecurring:
		if rs.Count < 0 {
			return fmt.Errorf("%w: count cannot be negative", ErrInvalidRepeat)
		}
	}
	return nil
}

// ValidateReferences checks category, subcategory, tags and custom fields
// against the known taxonomy.
func (t Transaction) ValidateReferences(categories map[int64]Category, fields []CustomField) error {
	cat, ok := categories[t.CategoryID]
	if !ok {
		return fmt.Errorf("%w: category %d", ErrNotFound, t.CategoryID)
	}
	if string(cat.Type) != string(t.Type) {
		return ErrCategoryMismatch
	}
	if t.SubCategoryID != nil && !cat.HasSub(*t.SubCategoryID) {
		return ErrUnknownSubCategory
	}
	for _, tag := range t.Tags {
		tc, ok := categories[tag.TagID]
		if !ok || tc.Type != CategoryTag {
			return fmt.Errorf("%w: %d is not a tag", ErrInvalidTag, tag.TagID)
		}
		if tag.SubTagID != nil && !tc.HasSub(*tag.SubTagID) {
			return fmt.Errorf("%w: sub-tag %d does not belong to tag %d", ErrInvalidTag, *tag.SubTagID, tag.TagID)
		}
	}
	return ValidateCustomFields(t.Type, t.CustomFields, fields)
}

// ValidateCustomFields checks values against field definitions for the given type.
func ValidateCustomFields(tt TransactionType, values []CustomFieldValue, fields []CustomField) error {
	byID := make(map[int64]CustomField, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}
	given := make(map[int64]string, len(values))
	for _, v := range values {
		f, ok := byID[v.ID]
		if !ok {
			return fmt.Errorf("%w: unknown field %d", ErrInvalidCustomField, v.ID)
		}
		if !f.TransactionType.Applies(tt) {
			return fmt.Errorf("%w: %q does not apply to %s", ErrInvalidCustomField, f.Name, tt)
		}
		if err := f.Check(v.Value); err != nil {
			return err
		}
		given[v.ID] = strings.TrimSpace(v.Value)
	}
	for _, f := range fields {
		if !f.Required || !f.TransactionType.Applies(tt) {
			continue
		}
		if given[f.ID] == "" {
			return fmt.Errorf("%w: %q is required", ErrInvalidCustomField, f.Name)
		}
	}
	return nil
}

// Check validates a single value for the field.
func (f CustomField) Check(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	switch f.Type {
	case FieldNumber:
		if _, err := ParseAmount(value); err != nil {
			return fmt.Errorf("%w: %q expects a number", ErrInvalidCustomField, f.Name)
		}
	case FieldSelect:
		for _, o := range f.Options {
			if o == value {
				return nil
			}
		}
		return fmt.Errorf("%w: %q is not an option of %q", ErrInvalidCustomField, value, f.Name)
	}
	return nil
}

func (f CustomField) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	switch f.Type {
	case FieldText, FieldNumber:
	case FieldSelect:
		if len(f.Options) == 0 {
			return fmt.Errorf("%w: select field needs options", ErrInvalidCustomField)
		}
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidCustomField, f.Type)
	}
	switch f.TransactionType {
	case ScopeAll, ScopeIncome, ScopeExpense:
	default:
		return fmt.Errorf("%w: scope %q", ErrInvalidCustomField, f.TransactionType)
	}
	return nil
}

// HasSub reports whether id is one of the category's subcategories.
func (c Category) HasSub(id int64) bool {
	for _, s := range c.SubCategories {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidCategory, c.Type)
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 200 {
		return ErrNameTooLong
	}
	return nil
}
