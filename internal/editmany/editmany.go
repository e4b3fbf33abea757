// Package editmany resolves bulk edits over a selection of transactions.
//
// Every editable field carries a tri-state choice: keep each record's own
// value, overwrite it with a shared value, or clear it. Resolve turns the
// client request into a Patch which is then applied record by record.
package editmany

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

type Choice string

const (
	Same  Choice = "same"
	Other Choice = "other"
	Clear Choice = "clear"
)

type Field string

const (
	Name               Field = "name"
	CategoryID         Field = "categoryId"
	SubCategoryID      Field = "subCategoryId"
	AccountID          Field = "accountId"
	DueDate            Field = "dueDate"
	RegistrationDate   Field = "registrationDate"
	ConfirmationDate   Field = "confirmationDate"
	IsConfirmed        Field = "isConfirmed"
	Value              Field = "value"
	Discount           Field = "discount"
	DiscountPercentage Field = "discountPercentage"
	Interest           Field = "interest"
	InterestPercentage Field = "interestPercentage"
	Tags               Field = "tags"
)

var (
	ErrNoSelection    = errors.New("no transactions selected")
	ErrUnknownField   = errors.New("unknown field")
	ErrInvalidChoice  = errors.New("invalid choice")
	ErrRequiredField  = errors.New("field cannot be cleared")
	ErrMissingValue   = errors.New("value required")
	ErrMalformedValue = errors.New("malformed value")
)

// required fields may be overwritten but never cleared.
var required = map[Field]bool{
	Name:        true,
	CategoryID:  true,
	AccountID:   true,
	DueDate:     true,
	Value:       true,
	IsConfirmed: true,
}

// Fields lists every editable field in form order.
func Fields() []Field {
	return []Field{
		Name, CategoryID, SubCategoryID, AccountID, DueDate, RegistrationDate,
		ConfirmationDate, IsConfirmed, Value, Discount, DiscountPercentage,
		Interest, InterestPercentage, Tags,
	}
}

// Edit is the choice made for one field. Value is only read for Other.
type Edit struct {
	Choice Choice          `json:"choice"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// Request is the PATCH /transaction/edit-many payload. Omitted fields
// behave as Same.
type Request struct {
	IDs          []int64        `json:"ids"`
	Fields       map[Field]Edit `json:"fields"`
	CustomFields map[int64]Edit `json:"customFields"`
}

// Patch is a resolved request. A nil pointer leaves the record untouched.
type Patch struct {
	Name               *string
	CategoryID         *int64
	SubCategoryID      *int64
	AccountID          *int64
	DueDate            *core.Date
	RegistrationDate   *core.Date
	ConfirmationDate   *core.Date
	IsConfirmed        *bool
	Value              *decimal.Decimal
	Discount           *decimal.Decimal
	DiscountPercentage *decimal.Decimal
	Interest           *decimal.Decimal
	InterestPercentage *decimal.Decimal
	Tags               *[]core.TagRef

	CustomFields  map[int64]string
	Cleared       map[Field]bool
	ClearedCustom map[int64]bool
}

// Empty reports whether applying the patch would change nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.CategoryID == nil && p.SubCategoryID == nil &&
		p.AccountID == nil && p.DueDate == nil && p.RegistrationDate == nil &&
		p.ConfirmationDate == nil && p.IsConfirmed == nil && p.Value == nil &&
		p.Discount == nil && p.DiscountPercentage == nil && p.Interest == nil &&
		p.InterestPercentage == nil && p.Tags == nil &&
		len(p.CustomFields) == 0 && len(p.Cleared) == 0 && len(p.ClearedCustom) == 0
}

// Resolve validates the request and builds the patch. All field errors are
// reported together.
func Resolve(req Request) (Patch, error) {
	p := Patch{
		CustomFields:  map[int64]string{},
		Cleared:       map[Field]bool{},
		ClearedCustom: map[int64]bool{},
	}
	if len(req.IDs) == 0 {
		return p, ErrNoSelection
	}

	var errs []error
	names := make([]string, 0, len(req.Fields))
	for f := range req.Fields {
		names = append(names, string(f))
	}
	sort.Strings(names)
	for _, name := range names {
		f := Field(name)
		if err := p.resolveField(f, req.Fields[f]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
		}
	}

	ids := make([]int64, 0, len(req.CustomFields))
	for id := range req.CustomFields {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := p.resolveCustom(id, req.CustomFields[id]); err != nil {
			errs = append(errs, fmt.Errorf("customFields.%d: %w", id, err))
		}
	}

	if p.Discount != nil && p.DiscountPercentage != nil {
		errs = append(errs, core.ErrConflictingDiscount)
	}
	if p.Interest != nil && p.InterestPercentage != nil {
		errs = append(errs, core.ErrConflictingInterest)
	}
	return p, errors.Join(errs...)
}

func (p *Patch) resolveField(f Field, e Edit) error {
	if !slices.Contains(Fields(), f) {
		return ErrUnknownField
	}
	switch e.Choice {
	case "", Same:
		return nil
	case Clear:
		if required[f] {
			return ErrRequiredField
		}
		p.Cleared[f] = true
		return nil
	case Other:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidChoice, e.Choice)
	}

	if len(e.Value) == 0 || string(e.Value) == "null" {
		return ErrMissingValue
	}
	switch f {
	case Name:
		var s string
		if err := decode(e.Value, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return core.ErrEmptyName
		}
		p.Name = &s
	case CategoryID:
		return decodeInto(e.Value, &p.CategoryID)
	case SubCategoryID:
		return decodeInto(e.Value, &p.SubCategoryID)
	case AccountID:
		return decodeInto(e.Value, &p.AccountID)
	case DueDate:
		return decodeDate(e.Value, &p.DueDate)
	case RegistrationDate:
		return decodeDate(e.Value, &p.RegistrationDate)
	case ConfirmationDate:
		return decodeDate(e.Value, &p.ConfirmationDate)
	case IsConfirmed:
		return decodeInto(e.Value, &p.IsConfirmed)
	case Value:
		if err := decodeInto(e.Value, &p.Value); err != nil {
			return err
		}
		if !p.Value.IsPositive() {
			return core.ErrInvalidValue
		}
	case Discount:
		return decodeAdjustment(e.Value, &p.Discount)
	case DiscountPercentage:
		return decodeAdjustment(e.Value, &p.DiscountPercentage)
	case Interest:
		return decodeAdjustment(e.Value, &p.Interest)
	case InterestPercentage:
		return decodeAdjustment(e.Value, &p.InterestPercentage)
	case Tags:
		var tags []core.TagRef
		if err := decode(e.Value, &tags); err != nil {
			return err
		}
		p.Tags = &tags
	}
	return nil
}

func (p *Patch) resolveCustom(id int64, e Edit) error {
	if id <= 0 {
		return ErrUnknownField
	}
	switch e.Choice {
	case "", Same:
	case Clear:
		p.ClearedCustom[id] = true
	case Other:
		if len(e.Value) == 0 || string(e.Value) == "null" {
			return ErrMissingValue
		}
		// Custom values are stored as text; numbers are accepted unquoted.
		var s string
		if err := json.Unmarshal(e.Value, &s); err != nil {
			var n json.Number
			if err := json.Unmarshal(e.Value, &n); err != nil {
				return ErrMalformedValue
			}
			s = n.String()
		}
		p.CustomFields[id] = s
	default:
		return fmt.Errorf("%w: %q", ErrInvalidChoice, e.Choice)
	}
	return nil
}

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedValue, err)
	}
	return nil
}

func decodeInto[T any](raw json.RawMessage, dst **T) error {
	var v T
	if err := decode(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func decodeDate(raw json.RawMessage, dst **core.Date) error {
	if err := decodeInto(raw, dst); err != nil {
		return err
	}
	if (*dst).IsZero() {
		*dst = nil
		return core.ErrInvalidDate
	}
	return nil
}

func decodeAdjustment(raw json.RawMessage, dst **decimal.Decimal) error {
	if err := decodeInto(raw, dst); err != nil {
		return err
	}
	if (*dst).IsNegative() {
		return core.ErrNegativeAdjustment
	}
	return nil
}
