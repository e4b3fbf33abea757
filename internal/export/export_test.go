package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
	"saldo/internal/importer"
)

func sample() Data {
	sub := int64(21)
	subTag := int64(31)
	pct := decimal.NewFromInt(10)
	conf := core.NewDate(2025, 3, 2)
	return Data{
		Transactions: []core.Transaction{
			{
				Type:             core.Expense,
				Name:             "Dinner",
				DueDate:          core.NewDate(2025, 3, 1),
				Balance:          core.Balance{Value: decimal.NewFromInt(50), DiscountPercentage: &pct, LiquidValue: decimal.NewFromInt(45)},
				IsConfirmed:      true,
				ConfirmationDate: &conf,
				CategoryID:       2,
				SubCategoryID:    &sub,
				AccountID:        7,
				Tags:             []core.TagRef{{TagID: 3, SubTagID: &subTag}},
				CustomFields:     []core.CustomFieldValue{{ID: 5, Value: "F-1"}},
				Frequency:        core.FrequencyRepeat,
				RepeatSettings:   &core.RepeatSettings{Count: 3, CurrentCount: 2, Interval: core.Monthly},
			},
			{
				Type:       core.Income,
				Name:       "Salary",
				DueDate:    core.NewDate(2025, 3, 5),
				Balance:    core.Balance{Value: decimal.NewFromInt(1000), LiquidValue: decimal.NewFromInt(1000)},
				CategoryID: 1,
				AccountID:  7,
			},
		},
		Categories: map[int64]core.Category{
			1: {ID: 1, Name: "Salary", Type: core.CategoryIncome},
			2: {ID: 2, Name: "Food", Type: core.CategoryExpense, SubCategories: []core.SubCategory{{ID: 21, Name: "Restaurant"}}},
			3: {ID: 3, Name: "Trip", Type: core.CategoryTag, SubCategories: []core.SubCategory{{ID: 31, Name: "Rome"}}},
		},
		Accounts: map[int64]core.Account{7: {ID: 7, Name: "Nubank"}},
		Fields:   []core.CustomField{{ID: 5, Name: "Invoice", Type: core.FieldText}},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": CSV, "CSV": CSV, " xlsx": XLSX, "pdf": PDF} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sample())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	want := []string{
		"expense", "Dinner", "50.00", "5.00", "", "45.00", "2025-03-01", "",
		"yes", "2025-03-02", "Food", "Restaurant", "Nubank", "2/3", "Trip/Rome", "F-1",
	}
	got := rows[0]
	if len(got) != len(want) {
		t.Fatalf("row has %d columns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d (%s) = %q, want %q", i, Headers(sample().Fields)[i], got[i], want[i])
		}
	}
}

func TestCSVRoundTripsThroughImporter(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, CSV, sample()); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[0][len(records[0])-1] != "Invoice" {
		t.Fatalf("unexpected csv: %q", records)
	}

	tbl, err := importer.ReadCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	m := importer.AutoMap(tbl.Headers, importer.Targets(nil))
	for _, key := range []string{importer.KeyType, importer.KeyName, importer.KeyValue, importer.KeyDueDate, importer.KeyCategory, importer.KeyAccount} {
		if m[key] == "" {
			t.Fatalf("exported header for %s not recognised: %v", key, m)
		}
	}
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, XLSX, sample()); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got := f.GetSheetList(); len(got) != 1 || got[0] != "Transactions" {
		t.Fatalf("sheets = %v", got)
	}
	liquid, err := f.GetCellValue("Transactions", "F2")
	if err != nil || liquid != "45" {
		t.Fatalf("F2 = %q, %v", liquid, err)
	}
	label, _ := f.GetCellValue("Transactions", "A5")
	net, _ := f.GetCellValue("Transactions", "G5")
	if label != "Totals" || net != "955" {
		t.Fatalf("totals row = %q / %q", label, net)
	}
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, PDF, sample()); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	if got := []rune(truncate(strings.Repeat("x", 100), 18)); len(got) != 10 || got[9] != '…' {
		t.Fatalf("truncate = %q", string(got))
	}
}
