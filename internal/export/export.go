// Package export renders transaction lists as CSV, XLSX or PDF.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	PDF  Format = "pdf"
)

var ErrUnknownFormat = errors.New("unknown export format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return CSV, nil
	case CSV, XLSX, PDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) ContentType() string {
	switch f {
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case PDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

func (f Format) Filename() string {
	return "transactions." + string(f)
}

// Data is everything needed to render a list with names instead of ids.
type Data struct {
	Transactions []core.Transaction
	Categories   map[int64]core.Category
	Accounts     map[int64]core.Account
	Fields       []core.CustomField
}

// Write renders d to w in format f.
func Write(w io.Writer, f Format, d Data) error {
	switch f {
	case CSV:
		return WriteCSV(w, d)
	case XLSX:
		return WriteXLSX(w, d)
	case PDF:
		return WritePDF(w, d)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

var baseColumns = []string{
	"Type", "Name", "Value", "Discount", "Interest", "Liquid value", "Due date",
	"Registration date", "Confirmed", "Confirmation date", "Category",
	"Subcategory", "Account", "Installment", "Tags",
}

// Headers returns the fixed columns followed by one per custom field.
func Headers(fields []core.CustomField) []string {
	out := append([]string(nil), baseColumns...)
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

// Rows renders each transaction as display strings in Headers order.
func Rows(d Data) [][]string {
	rows := make([][]string, 0, len(d.Transactions))
	for _, tx := range d.Transactions {
		b := tx.Balance
		cat := d.Categories[tx.CategoryID]
		row := []string{
			string(tx.Type),
			tx.Name,
			core.FormatAmount(b.Value),
			optionalAmount(b.DiscountAmount()),
			optionalAmount(b.InterestAmount()),
			core.FormatAmount(b.LiquidValue),
			tx.DueDate.String(),
			tx.RegistrationDate.String(),
			yesNo(tx.IsConfirmed),
			dateString(tx.ConfirmationDate),
			cat.Name,
			subName(cat, tx.SubCategoryID),
			d.Accounts[tx.AccountID].Name,
			tx.InstallmentLabel(),
			tagNames(d.Categories, tx.Tags),
		}
		for _, f := range d.Fields {
			row = append(row, customValue(tx, f.ID))
		}
		rows = append(rows, row)
	}
	return rows
}

// Totals sums liquid values per direction over the exported rows.
func Totals(txs []core.Transaction) core.Totals {
	var t core.Totals
	for _, tx := range txs {
		t.Add(tx)
	}
	return t
}

func totalsLabel(t core.Totals) string {
	return fmt.Sprintf("Income %s  Expense %s  Net %s  (%d transactions)",
		core.FormatAmount(t.Income), core.FormatAmount(t.Expense), core.FormatAmount(t.Net), t.Count)
}

func optionalAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return core.FormatAmount(d)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dateString(d *core.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func subName(c core.Category, id *int64) string {
	if id == nil {
		return ""
	}
	for _, s := range c.SubCategories {
		if s.ID == *id {
			return s.Name
		}
	}
	return ""
}

func tagNames(cats map[int64]core.Category, tags []core.TagRef) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		c, ok := cats[t.TagID]
		if !ok {
			continue
		}
		name := c.Name
		if sub := subName(c, t.SubTagID); sub != "" {
			name += "/" + sub
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func customValue(tx core.Transaction, id int64) string {
	for _, v := range tx.CustomFields {
		if v.ID == id {
			return v.Value
		}
	}
	return ""
}
