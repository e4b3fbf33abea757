package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
)

func lookup() Lookup {
	return Lookup{
		Categories: []core.Category{
			{ID: 1, Name: "Salário", Type: core.CategoryIncome},
			{ID: 2, Name: "Food", Type: core.CategoryExpense, SubCategories: []core.SubCategory{{ID: 21, Name: "Restaurant"}}},
			{ID: 3, Name: "Other", Type: core.CategoryIncome},
			{ID: 4, Name: "Other", Type: core.CategoryExpense},
		},
		Accounts: []core.Account{{ID: 7, Name: "Nubank"}},
		Fields: []core.CustomField{
			{ID: 5, Name: "Invoice", Type: core.FieldText, TransactionType: core.ScopeAll},
		},
	}
}

func TestReadCSVSemicolonAndLatin1(t *testing.T) {
	// "Descrição" encoded as Windows-1252.
	data := []byte("Descri\xe7\xe3o;Valor;Data\n Caf\xe9 ;12,50;01/03/2025\n;;\n")
	tbl, err := ReadCSV(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Headers) != 3 || tbl.Headers[0] != "Descrição" {
		t.Fatalf("headers = %q", tbl.Headers)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][0] != "Café" || tbl.Rows[0][1] != "12,50" {
		t.Fatalf("rows = %q", tbl.Rows)
	}
}

func TestReadCSVPadsShortRows(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("\xef\xbb\xbfa,b,c\n1\n1,2,3,4\n"))
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Headers[0] != "a" {
		t.Fatalf("BOM not stripped: %q", tbl.Headers[0])
	}
	if len(tbl.Rows[0]) != 3 || len(tbl.Rows[1]) != 3 {
		t.Fatalf("rows not normalised: %q", tbl.Rows)
	}
}

func TestReadEmpty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("\n\n")); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := Read("data.ods", strings.NewReader("")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Name", "Amount", "Date", "Category", "Account"},
		{"Rent", -1200, 45717, "Other", "Nubank"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	tbl, err := Read("upload.XLSX", &buf)
	if err != nil {
		t.Fatal(err)
	}
	txs, err := Convert(tbl, AutoMap(tbl.Headers, Targets(nil)), lookup(), core.NewDate(2025, 3, 10))
	if err != nil {
		t.Fatal(err)
	}
	tx := txs[0]
	if tx.Type != core.Expense || tx.CategoryID != 4 || tx.DueDate.String() != "2025-03-01" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if tx.Balance.LiquidValue.String() != "1200" {
		t.Fatalf("liquid = %s", tx.Balance.LiquidValue)
	}
}

func TestAutoMap(t *testing.T) {
	targets := Targets(lookup().Fields)
	m := AutoMap([]string{"Data de Vencimento", "DESCRIÇÃO", "Valor (R$)", "Conta", "Categoria", "Invoice", "Pago"}, targets)
	want := Mapping{
		KeyName:         "DESCRIÇÃO",
		KeyValue:        "Valor (R$)",
		KeyDueDate:      "Data de Vencimento",
		KeyAccount:      "Conta",
		KeyCategory:     "Categoria",
		KeyConfirmed:    "Pago",
		"customField:5": "Invoice",
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s mapped to %q, want %q (all: %v)", k, m[k], v, m)
		}
	}
	if len(m) != len(want) {
		t.Fatalf("unexpected extra mappings: %v", m)
	}
}

func TestAutoMapPositional(t *testing.T) {
	m := AutoMap([]string{"c1", "c2", "c3", "c4", "c5"}, Targets(nil))
	want := []string{KeyName, KeyValue, KeyDueDate, KeyCategory, KeyAccount}
	for i, k := range want {
		if m[k] != []string{"c1", "c2", "c3", "c4", "c5"}[i] {
			t.Fatalf("%s -> %q", k, m[k])
		}
	}
}

func TestMappingValidate(t *testing.T) {
	targets := Targets(nil)
	headers := []string{"a", "b", "c", "d", "e"}
	full := Mapping{KeyName: "a", KeyValue: "b", KeyDueDate: "c", KeyCategory: "d", KeyAccount: "e"}

	if err := full.Validate(headers, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := full.Validate(headers[:4], targets); !errors.Is(err, ErrTooFewColumns) {
		t.Fatalf("expected ErrTooFewColumns, got %v", err)
	}

	tests := []struct {
		name string
		m    Mapping
		err  error
	}{
		{"missing required", Mapping{KeyName: "a", KeyValue: "b", KeyDueDate: "c", KeyCategory: "d"}, ErrUnmappedTarget},
		{"unknown header", Mapping{KeyName: "a", KeyValue: "b", KeyDueDate: "c", KeyCategory: "d", KeyAccount: "zz"}, ErrUnknownHeader},
		{"duplicate header", Mapping{KeyName: "a", KeyValue: "a", KeyDueDate: "c", KeyCategory: "d", KeyAccount: "e"}, ErrDuplicateHeader},
		{"unknown target", Mapping{KeyName: "a", KeyValue: "b", KeyDueDate: "c", KeyCategory: "d", KeyAccount: "e", "color": "a"}, ErrUnknownTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.m.Validate(headers, targets); !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2025-03-04":           "2025-03-04",
		"04/03/2025":           "2025-03-04",
		"04-03-2025":           "2025-03-04",
		"4/3/2025":             "2025-03-04",
		"2025-03-04T15:00:00Z": "2025-03-04",
		"45720":                "2025-03-04",
	}
	for in, want := range cases {
		got, err := ParseDate(in)
		if err != nil || got.String() != want {
			t.Fatalf("ParseDate(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	for _, in := range []string{"", "tomorrow", "31/02/2025"} {
		if _, err := ParseDate(in); !errors.Is(err, core.ErrInvalidDate) {
			t.Fatalf("ParseDate(%q) expected error, got %v", in, err)
		}
	}
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"Sim": true, "não": false, "YES": true, "0": false, "": false, "true": true} {
		got, err := ParseBool(in)
		if err != nil || got != want {
			t.Fatalf("ParseBool(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseBool("maybe"); !errors.Is(err, ErrInvalidBool) {
		t.Fatalf("expected ErrInvalidBool, got %v", err)
	}
}

func TestConvert(t *testing.T) {
	csvData := "Tipo;Descrição;Valor;Vencimento;Categoria;Subcategoria;Conta;Pago;Invoice\n" +
		"receita;Salary;5.000,00;05/03/2025;salario;;nubank;sim;\n" +
		"despesa;Dinner;120,40;06/03/2025;Food;restaurant;Nubank;não;F-9\n"
	tbl, err := ReadCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatal(err)
	}
	lk := lookup()
	m := AutoMap(tbl.Headers, Targets(lk.Fields))
	m[KeyDueDate] = "Vencimento"
	txs, err := Convert(tbl, m, lk, core.NewDate(2025, 3, 10))
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	in, out := txs[0], txs[1]
	if in.Type != core.Income || in.CategoryID != 1 || in.AccountID != 7 || !in.IsConfirmed || in.ConfirmationDate.String() != "2025-03-05" {
		t.Fatalf("income row: %+v", in)
	}
	if in.Balance.Value.String() != "5000" || in.RegistrationDate.String() != "2025-03-10" {
		t.Fatalf("income balance/date: %+v", in)
	}
	if out.Type != core.Expense || out.SubCategoryID == nil || *out.SubCategoryID != 21 || out.IsConfirmed {
		t.Fatalf("expense row: %+v", out)
	}
	if len(out.CustomFields) != 1 || out.CustomFields[0].Value != "F-9" {
		t.Fatalf("custom fields: %+v", out.CustomFields)
	}
}

func TestConvertAggregatesRowErrors(t *testing.T) {
	csvData := "name,value,dueDate,category,account\n" +
		"ok,10,2025-03-01,Food,Nubank\n" +
		"bad value,ten,2025-03-01,Food,Nubank\n" +
		"bad account,10,2025-03-01,Food,Itau\n"
	tbl, err := ReadCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatal(err)
	}
	m := AutoMap(tbl.Headers, Targets(nil))
	txs, err := Convert(tbl, m, lookup(), core.NewDate(2025, 3, 10))
	if txs != nil {
		t.Fatal("no transactions expected when a row fails")
	}
	if !errors.Is(err, core.ErrInvalidAmount) || !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected both row errors, got %v", err)
	}
	var re *RowError
	if !errors.As(err, &re) || re.Line != 3 {
		t.Fatalf("first row error should point at line 3, got %v", re)
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Fatalf("message should name line 4: %v", err)
	}
}
