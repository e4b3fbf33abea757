package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/editmany"
	"saldo/internal/export"
)

var clock = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", ScopeOne, false},
		{"one", ScopeOne, false},
		{"following", ScopeFollowing, false},
		{"all", ScopeAll, false},
		{"some", "", true},
	}
	for _, tt := range tests {
		got, err := ParseScope(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseScope(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseScope(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateExpandsInstallments(t *testing.T) {
	f := newFixture(t)
	pub := &fakePublisher{}
	svc := f.service(pub, clock)

	tpl := f.repeated("Laptop", date(2025, 1, 31), 3)
	tpl.IsConfirmed = true
	created, err := svc.Create(context.Background(), tpl)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("Create() stored %d rows, want 3", len(created))
	}

	wantDue := []core.Date{date(2025, 1, 31), date(2025, 2, 28), date(2025, 3, 31)}
	for i, tx := range created {
		if !tx.DueDate.Equal(wantDue[i].Time) {
			t.Errorf("installment %d due %s, want %s", i+1, tx.DueDate, wantDue[i])
		}
		if tx.RepeatGroupID == "" || tx.RepeatGroupID != created[0].RepeatGroupID {
			t.Errorf("installment %d group = %q, want %q", i+1, tx.RepeatGroupID, created[0].RepeatGroupID)
		}
		if tx.RepeatSettings.CurrentCount != i+1 {
			t.Errorf("installment %d current count = %d", i+1, tx.RepeatSettings.CurrentCount)
		}
		if !tx.Balance.LiquidValue.Equal(decimal.NewFromInt(50)) {
			t.Errorf("installment %d liquid = %s, want 50", i+1, tx.Balance.LiquidValue)
		}
	}
	if !created[0].IsConfirmed || created[0].ConfirmationDate == nil {
		t.Error("first installment should keep its confirmation")
	}
	if created[1].IsConfirmed || created[2].IsConfirmed {
		t.Error("later installments should start unconfirmed")
	}
	if !created[0].RegistrationDate.Equal(date(2025, 3, 5).Time) {
		t.Errorf("registration date = %s, want today", created[0].RegistrationDate)
	}
	if len(pub.synced) != 3 {
		t.Errorf("published %d sync messages, want 3", len(pub.synced))
	}
}

func TestCreateComputesLiquidValue(t *testing.T) {
	f := newFixture(t)
	svc := f.service(nil, clock)

	tx := f.expense("Energy bill", "200", date(2025, 3, 10))
	tx.Balance.DiscountPercentage = core.DecimalPtr(decimal.NewFromInt(10))
	tx.Balance.Interest = core.DecimalPtr(decimal.RequireFromString("5.25"))
	created, err := svc.Create(context.Background(), tx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if want := decimal.RequireFromString("185.25"); !created[0].Balance.LiquidValue.Equal(want) {
		t.Errorf("liquid = %s, want %s", created[0].Balance.LiquidValue, want)
	}
}

func TestCreateRejectsInvalidTransactions(t *testing.T) {
	f := newFixture(t)
	svc := f.service(nil, clock)

	tests := []struct {
		name   string
		mutate func(*core.Transaction)
		want   error
	}{
		{"blank name", func(tx *core.Transaction) { tx.Name = "   " }, core.ErrEmptyName},
		{"zero value", func(tx *core.Transaction) { tx.Balance.Value = decimal.Zero }, core.ErrInvalidValue},
		{"category of other type", func(tx *core.Transaction) { tx.CategoryID = f.salary.ID }, core.ErrCategoryMismatch},
		{"unknown account", func(tx *core.Transaction) { tx.AccountID = 999 }, core.ErrNotFound},
		{"discount above value", func(tx *core.Transaction) {
			tx.Balance.Discount = core.DecimalPtr(decimal.NewFromInt(500))
		}, core.ErrNegativeLiquid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := f.expense("Rent", "100", date(2025, 3, 1))
			tt.mutate(&tx)
			_, err := svc.Create(context.Background(), tx)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}

	all, err := svc.List(context.Background(), core.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("rejected transactions were stored: %d", len(all))
	}
}

func TestUpdateFollowingShiftsLaterInstallments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	created, err := svc.Create(ctx, f.repeated("Gym", date(2025, 1, 10), 4))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	in := created[1]
	in.Name = "Gym plus"
	in.DueDate = date(2025, 2, 12)
	updated, err := svc.Update(ctx, in.ID, in, ScopeFollowing)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(updated) != 3 {
		t.Fatalf("Update() touched %d rows, want 3", len(updated))
	}

	group, err := f.repo.ListGroup(ctx, created[0].RepeatGroupID)
	if err != nil {
		t.Fatalf("ListGroup() error = %v", err)
	}
	want := []struct {
		name string
		due  core.Date
	}{
		{"Gym", date(2025, 1, 10)},
		{"Gym plus", date(2025, 2, 12)},
		{"Gym plus", date(2025, 3, 12)},
		{"Gym plus", date(2025, 4, 12)},
	}
	for i, tx := range group {
		if tx.Name != want[i].name || !tx.DueDate.Equal(want[i].due.Time) {
			t.Errorf("installment %d = %q %s, want %q %s", i+1, tx.Name, tx.DueDate, want[i].name, want[i].due)
		}
	}
}

func TestUpdateScopes(t *testing.T) {
	tests := []struct {
		scope Scope
		want  []string
	}{
		{ScopeOne, []string{"Gym", "Renamed", "Gym"}},
		{ScopeFollowing, []string{"Gym", "Renamed", "Renamed"}},
		{ScopeAll, []string{"Renamed", "Renamed", "Renamed"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			svc := f.service(nil, clock)

			created, err := svc.Create(ctx, f.repeated("Gym", date(2025, 1, 10), 3))
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			in := created[1]
			in.Name = "Renamed"
			if _, err := svc.Update(ctx, in.ID, in, tt.scope); err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			group, err := f.repo.ListGroup(ctx, created[0].RepeatGroupID)
			if err != nil {
				t.Fatalf("ListGroup() error = %v", err)
			}
			for i, tx := range group {
				if tx.Name != tt.want[i] {
					t.Errorf("installment %d name = %q, want %q", i+1, tx.Name, tt.want[i])
				}
			}
		})
	}
}

func TestUpdateStaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	created, err := svc.Create(ctx, f.expense("Rent", "900", date(2025, 3, 1)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	in := created[0]
	in.Name = "Rent March"
	if _, err := svc.Update(ctx, in.ID, in, ScopeOne); err != nil {
		t.Fatalf("first Update() error = %v", err)
	}
	in.Name = "Rent again"
	if _, err := svc.Update(ctx, in.ID, in, ScopeOne); !errors.Is(err, core.ErrVersionConflict) {
		t.Errorf("stale Update() error = %v, want ErrVersionConflict", err)
	}
	if _, err := svc.Update(ctx, 999, in, ScopeOne); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Update(999) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteScopes(t *testing.T) {
	tests := []struct {
		scope Scope
		left  int
	}{
		{ScopeOne, 3},
		{ScopeFollowing, 1},
		{ScopeAll, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			pub := &fakePublisher{}
			svc := f.service(pub, clock)

			created, err := svc.Create(ctx, f.repeated("Gym", date(2025, 1, 10), 4))
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			removed, err := svc.Delete(ctx, created[1].ID, tt.scope)
			if err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if len(removed) != 4-tt.left {
				t.Errorf("Delete() removed %d rows, want %d", len(removed), 4-tt.left)
			}
			if len(pub.deleted) != len(removed) {
				t.Errorf("published %d deletes, want %d", len(pub.deleted), len(removed))
			}
			group, err := f.repo.ListGroup(ctx, created[0].RepeatGroupID)
			if err != nil {
				t.Fatalf("ListGroup() error = %v", err)
			}
			if len(group) != tt.left {
				t.Errorf("group has %d rows left, want %d", len(group), tt.left)
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	created, err := svc.Create(ctx, f.expense("Rent", "900", date(2025, 3, 1)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id := created[0].ID

	tx, err := svc.Confirm(ctx, id, true, core.Date{})
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if !tx.IsConfirmed || tx.ConfirmationDate == nil || !tx.ConfirmationDate.Equal(date(2025, 3, 5).Time) {
		t.Errorf("Confirm() = %v %v, want confirmed today", tx.IsConfirmed, tx.ConfirmationDate)
	}

	tx, err = svc.Confirm(ctx, id, true, date(2025, 3, 2))
	if err != nil {
		t.Fatalf("Confirm(date) error = %v", err)
	}
	if !tx.ConfirmationDate.Equal(date(2025, 3, 2).Time) {
		t.Errorf("confirmation date = %s, want 2025-03-02", tx.ConfirmationDate)
	}

	tx, err = svc.Confirm(ctx, id, false, core.Date{})
	if err != nil {
		t.Fatalf("Confirm(false) error = %v", err)
	}
	if tx.IsConfirmed || tx.ConfirmationDate != nil {
		t.Error("unconfirming should clear the confirmation date")
	}
}

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestEditMany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := f.service(pub, clock)

	a, err := svc.Create(ctx, f.expense("Rent", "900", date(2025, 3, 1)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	b, err := svc.Create(ctx, f.expense("Water", "40", date(2025, 3, 8)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	pub.synced = nil

	updated, err := svc.EditMany(ctx, editmany.Request{
		IDs: []int64{a[0].ID, b[0].ID, a[0].ID},
		Fields: map[editmany.Field]editmany.Edit{
			editmany.AccountID: {Choice: editmany.Other, Value: raw(f.savings.ID)},
			editmany.Name:      {Choice: editmany.Same},
		},
		CustomFields: map[int64]editmany.Edit{
			f.method.ID: {Choice: editmany.Other, Value: raw("cash")},
		},
	})
	if err != nil {
		t.Fatalf("EditMany() error = %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("EditMany() updated %d rows, want 2", len(updated))
	}
	for _, tx := range updated {
		if tx.AccountID != f.savings.ID {
			t.Errorf("%s account = %d, want %d", tx.Name, tx.AccountID, f.savings.ID)
		}
		if len(tx.CustomFields) != 1 || tx.CustomFields[0].Value != "cash" {
			t.Errorf("%s custom fields = %v", tx.Name, tx.CustomFields)
		}
	}
	if updated[0].Name != "Rent" || updated[1].Name != "Water" {
		t.Errorf("names changed: %q %q", updated[0].Name, updated[1].Name)
	}
	if len(pub.synced) != 2 {
		t.Errorf("published %d sync messages, want 2", len(pub.synced))
	}
}

func TestEditManyIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	a, _ := svc.Create(ctx, f.expense("Rent", "900", date(2025, 3, 1)))
	b, _ := svc.Create(ctx, f.expense("Water", "40", date(2025, 3, 8)))

	// A 100 discount fits the rent but not the water bill.
	_, err := svc.EditMany(ctx, editmany.Request{
		IDs: []int64{a[0].ID, b[0].ID},
		Fields: map[editmany.Field]editmany.Edit{
			editmany.Discount: {Choice: editmany.Other, Value: raw("100")},
		},
	})
	if !errors.Is(err, ErrValidation) || !errors.Is(err, core.ErrNegativeLiquid) {
		t.Fatalf("EditMany() error = %v, want ErrValidation and ErrNegativeLiquid", err)
	}

	rent, err := svc.Get(ctx, a[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rent.Balance.Discount != nil || rent.Version != a[0].Version {
		t.Errorf("rent was modified: discount %v version %d", rent.Balance.Discount, rent.Version)
	}
}

func TestEditManySelectionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	if _, err := svc.EditSummary(ctx, nil); !errors.Is(err, editmany.ErrNoSelection) {
		t.Errorf("EditSummary(nil) error = %v, want ErrNoSelection", err)
	}
	if _, err := svc.EditSummary(ctx, []int64{42}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("EditSummary(42) error = %v, want ErrNotFound", err)
	}
	_, err := svc.EditMany(ctx, editmany.Request{
		IDs:    []int64{1},
		Fields: map[editmany.Field]editmany.Edit{editmany.Name: {Choice: editmany.Clear}},
	})
	if !errors.Is(err, editmany.ErrRequiredField) {
		t.Errorf("EditMany(clear name) error = %v, want ErrRequiredField", err)
	}
}

func TestEditSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	a, _ := svc.Create(ctx, f.expense("Rent", "900", date(2025, 3, 1)))
	b, _ := svc.Create(ctx, f.expense("Water", "40", date(2025, 3, 8)))

	sum, err := svc.EditSummary(ctx, []int64{a[0].ID, b[0].ID})
	if err != nil {
		t.Fatalf("EditSummary() error = %v", err)
	}
	if sum.Count != 2 {
		t.Errorf("Count = %d, want 2", sum.Count)
	}
	if !sum.Fields[editmany.AccountID].Same {
		t.Error("account should be shared")
	}
	if sum.Fields[editmany.Name].Same {
		t.Error("name should differ")
	}
}

func TestMonthSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	paid := f.expense("Rent", "900", date(2025, 3, 1))
	paid.IsConfirmed = true
	salary := core.Transaction{
		Type:        core.Income,
		Name:        "Salary",
		Balance:     core.Balance{Value: decimal.NewFromInt(3000)},
		DueDate:     date(2025, 3, 28),
		CategoryID:  f.salary.ID,
		AccountID:   f.account.ID,
		IsConfirmed: true,
	}
	for _, tx := range []core.Transaction{
		paid,
		salary,
		f.expense("Water", "40", date(2025, 3, 8)),
		f.expense("April rent", "900", date(2025, 4, 1)),
	} {
		if _, err := svc.Create(ctx, tx); err != nil {
			t.Fatalf("Create(%s) error = %v", tx.Name, err)
		}
	}

	ov, err := svc.MonthSummary(ctx, 2025, 3)
	if err != nil {
		t.Fatalf("MonthSummary() error = %v", err)
	}
	if !ov.Totals.Net.Equal(decimal.NewFromInt(2100)) {
		t.Errorf("net = %s, want 2100", ov.Totals.Net)
	}
	if ov.Pending.Count != 1 || !ov.Pending.Expense.Equal(decimal.NewFromInt(40)) {
		t.Errorf("pending = %+v, want one 40 expense", ov.Pending)
	}
	if len(ov.ByCategory) != 2 {
		t.Errorf("by category = %v, want 2 entries", ov.ByCategory)
	}
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := f.service(pub, clock)

	const file = "Description,Amount,Date,Category,Account\n" +
		"Rent,-900.00,01/03/2025,Home,Checking\n" +
		"March salary,3000,28/03/2025,Salary,Checking\n"

	preview, err := svc.PreviewImport(ctx, "bank.csv", strings.NewReader(file))
	if err != nil {
		t.Fatalf("PreviewImport() error = %v", err)
	}
	if preview.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", preview.RowCount)
	}

	created, err := svc.Import(ctx, "bank.csv", strings.NewReader(file), preview.Suggested)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("Import() stored %d rows, want 2", len(created))
	}
	if created[0].Type != core.Expense || created[0].CategoryID != f.home.ID {
		t.Errorf("first row = %s in %d, want expense in Home", created[0].Type, created[0].CategoryID)
	}
	if created[1].Type != core.Income || !created[1].Balance.LiquidValue.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("second row = %s %s, want income 3000", created[1].Type, created[1].Balance.LiquidValue)
	}
	if len(pub.synced) != 2 {
		t.Errorf("published %d sync messages, want 2", len(pub.synced))
	}
}

func TestImportRejectsWholeFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	const file = "Description,Amount,Date,Category,Account\n" +
		"Rent,-900.00,01/03/2025,Home,Checking\n" +
		"Boat,-50,02/03/2025,Leisure,Checking\n"
	preview, err := svc.PreviewImport(ctx, "bank.csv", strings.NewReader(file))
	if err != nil {
		t.Fatalf("PreviewImport() error = %v", err)
	}
	if _, err := svc.Import(ctx, "bank.csv", strings.NewReader(file), preview.Suggested); !errors.Is(err, ErrValidation) {
		t.Fatalf("Import() error = %v, want ErrValidation", err)
	}
	all, _ := svc.List(ctx, core.Filter{})
	if len(all) != 0 {
		t.Errorf("partial import stored %d rows", len(all))
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	if _, err := svc.Create(ctx, f.expense("Rent", "900", date(2025, 3, 1))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, f.expense("April rent", "900", date(2025, 4, 1))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var buf strings.Builder
	err := svc.Export(ctx, &buf, export.CSV, core.Filter{From: date(2025, 3, 1), To: date(2025, 3, 31)})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Rent") || !strings.Contains(out, "Checking") || !strings.Contains(out, "Home") {
		t.Errorf("export missing resolved names:\n%s", out)
	}
	if strings.Contains(out, "April rent") {
		t.Errorf("export ignored the date filter:\n%s", out)
	}
}
