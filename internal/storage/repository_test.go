package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "saldo.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

type fixture struct {
	account  core.Account
	category core.Category
	tag      core.Category
	field    core.CustomField
}

func seed(t *testing.T, repo *SQLiteRepository) fixture {
	t.Helper()
	ctx := context.Background()
	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Checking", Balance: decimal.NewFromInt(1000)})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	cat, err := repo.CreateCategory(ctx, core.Category{
		Name:          "Home",
		Type:          core.CategoryExpense,
		SubCategories: []core.SubCategory{{Name: "Rent"}, {Name: "Energy"}},
	})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	tag, err := repo.CreateCategory(ctx, core.Category{Name: "Work", Type: core.CategoryTag})
	if err != nil {
		t.Fatalf("CreateCategory(tag) error = %v", err)
	}
	field, err := repo.CreateCustomField(ctx, core.CustomField{
		Name:            "Method",
		Type:            core.FieldSelect,
		Options:         []string{"card", "cash"},
		TransactionType: core.ScopeAll,
	})
	if err != nil {
		t.Fatalf("CreateCustomField() error = %v", err)
	}
	return fixture{account: acc, category: cat, tag: tag, field: field}
}

func sampleTransaction(f fixture, name string, due core.Date) core.Transaction {
	sub := f.category.SubCategories[0].ID
	return core.Transaction{
		Type: core.Expense,
		Name: name,
		Balance: core.Balance{
			Value:       decimal.RequireFromString("120.50"),
			Discount:    core.DecimalPtr(decimal.RequireFromString("0.50")),
			LiquidValue: decimal.NewFromInt(120),
		},
		Frequency:     core.FrequencyNone,
		DueDate:       due,
		CategoryID:    f.category.ID,
		SubCategoryID: &sub,
		AccountID:     f.account.ID,
		Tags:          []core.TagRef{{TagID: f.tag.ID}},
		CustomFields:  []core.CustomFieldValue{{ID: f.field.ID, Value: "card"}},
	}
}

func TestCategoriesNestSubcategories(t *testing.T) {
	repo := newTestRepo(t)
	f := seed(t, repo)

	cats, err := repo.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("got %d categories, want 2", len(cats))
	}
	got, err := repo.GetCategory(context.Background(), f.category.ID)
	if err != nil {
		t.Fatalf("GetCategory() error = %v", err)
	}
	if len(got.SubCategories) != 2 || got.SubCategories[0].Name != "Energy" {
		t.Errorf("subcategories = %+v, want Energy and Rent", got.SubCategories)
	}
}

func TestCreateAndLoadTransactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	f := seed(t, repo)

	created, err := repo.CreateTransactions(ctx, []core.Transaction{
		sampleTransaction(f, "Rent", core.NewDate(2025, 3, 5)),
		sampleTransaction(f, "Power", core.NewDate(2025, 4, 5)),
	})
	if err != nil {
		t.Fatalf("CreateTransactions() error = %v", err)
	}
	if created[0].ID == 0 || created[0].Version != 1 {
		t.Fatalf("created = %+v, want id and version 1", created[0])
	}

	got, err := repo.GetTransaction(ctx, created[0].ID)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.Name != "Rent" || !got.Balance.LiquidValue.Equal(decimal.NewFromInt(120)) {
		t.Errorf("got %+v", got)
	}
	if got.Balance.Discount == nil || !got.Balance.Discount.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("discount = %v, want 0.5", got.Balance.Discount)
	}
	if len(got.Tags) != 1 || got.Tags[0].TagID != f.tag.ID {
		t.Errorf("tags = %+v", got.Tags)
	}
	if len(got.CustomFields) != 1 || got.CustomFields[0].Value != "card" {
		t.Errorf("custom fields = %+v", got.CustomFields)
	}
	if !got.DueDate.Equal(core.NewDate(2025, 3, 5).Time) {
		t.Errorf("due date = %s", got.DueDate)
	}

	march, err := repo.ListTransactions(ctx, core.Filter{From: core.NewDate(2025, 3, 1), To: core.NewDate(2025, 3, 31)})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(march) != 1 || march[0].ID != created[0].ID {
		t.Errorf("march = %+v, want only Rent", march)
	}
}

func TestCreateTransactionsIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	f := seed(t, repo)

	bad := sampleTransaction(f, "Broken", core.NewDate(2025, 3, 6))
	bad.AccountID = 999
	_, err := repo.CreateTransactions(ctx, []core.Transaction{sampleTransaction(f, "Rent", core.NewDate(2025, 3, 5)), bad})
	if err == nil {
		t.Fatal("expected error for unknown account")
	}
	all, err := repo.ListTransactions(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("got %d transactions after failed batch, want 0", len(all))
	}
}

func TestUpdateTransactionsVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	f := seed(t, repo)

	created, err := repo.CreateTransactions(ctx, []core.Transaction{sampleTransaction(f, "Rent", core.NewDate(2025, 3, 5))})
	if err != nil {
		t.Fatalf("CreateTransactions() error = %v", err)
	}
	tx := created[0]
	tx.Name = "Rent March"
	tx.Tags = nil
	updated, err := repo.UpdateTransactions(ctx, []core.Transaction{tx})
	if err != nil {
		t.Fatalf("UpdateTransactions() error = %v", err)
	}
	if updated[0].Version != 2 {
		t.Errorf("version = %d, want 2", updated[0].Version)
	}
	got, _ := repo.GetTransaction(ctx, tx.ID)
	if got.Name != "Rent March" || len(got.Tags) != 0 {
		t.Errorf("got %+v", got)
	}

	// tx still carries version 1
	if _, err := repo.UpdateTransactions(ctx, []core.Transaction{tx}); !errors.Is(err, core.ErrVersionConflict) {
		t.Errorf("stale update error = %v, want ErrVersionConflict", err)
	}
	tx.ID = 999
	if _, err := repo.UpdateTransactions(ctx, []core.Transaction{tx}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing update error = %v, want ErrNotFound", err)
	}
}

func TestDeleteReferencedAccount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	f := seed(t, repo)

	created, err := repo.CreateTransactions(ctx, []core.Transaction{sampleTransaction(f, "Rent", core.NewDate(2025, 3, 5))})
	if err != nil {
		t.Fatalf("CreateTransactions() error = %v", err)
	}
	if err := repo.DeleteAccount(ctx, f.account.ID); !errors.Is(err, core.ErrInUse) {
		t.Errorf("DeleteAccount() error = %v, want ErrInUse", err)
	}
	if err := repo.DeleteTransactions(ctx, []int64{created[0].ID}); err != nil {
		t.Fatalf("DeleteTransactions() error = %v", err)
	}
	if err := repo.DeleteAccount(ctx, f.account.ID); err != nil {
		t.Errorf("DeleteAccount() after cleanup error = %v", err)
	}
	if err := repo.DeleteTransactions(ctx, []int64{created[0].ID}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestSyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	f := seed(t, repo)

	created, err := repo.CreateTransactions(ctx, []core.Transaction{sampleTransaction(f, "Rent", core.NewDate(2025, 3, 5))})
	if err != nil {
		t.Fatalf("CreateTransactions() error = %v", err)
	}
	pending, err := repo.GetPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSync() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != created[0].ID || pending[0].Version != 1 {
		t.Fatalf("pending = %+v", pending)
	}

	// An outdated version leaves the row pending.
	if err := repo.MarkSynced(ctx, created[0].ID, 0); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if pending, _ = repo.GetPendingSync(ctx, 10); len(pending) != 1 {
		t.Fatalf("pending after stale mark = %d, want 1", len(pending))
	}
	if err := repo.MarkSynced(ctx, created[0].ID, 1); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if pending, _ = repo.GetPendingSync(ctx, 10); len(pending) != 0 {
		t.Errorf("pending after mark = %d, want 0", len(pending))
	}
}

func TestMigrationsRoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "saldo.db") + dsnPragmas

	version, err := RunMigrations(dsn)
	if err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}

	// A second run is a no-op.
	if again, err := RunMigrations(dsn); err != nil || again != version {
		t.Errorf("RunMigrations() again = %d, %v", again, err)
	}

	if err := ResetSchema(dsn); err != nil {
		t.Fatalf("ResetSchema() error = %v", err)
	}
	if version, err := RunMigrations(dsn); err != nil || version != 2 {
		t.Errorf("RunMigrations() after reset = %d, %v", version, err)
	}
}

func TestDeleteOccurrencesKeepsSeriesMark(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	f := seed(t, repo)

	var txs []core.Transaction
	for i := 1; i <= 3; i++ {
		tx := sampleTransaction(f, "Gym", core.NewDate(2025, i, 5))
		tx.Frequency = core.FrequencyRecurring
		tx.RepeatGroupID = "gym"
		tx.RepeatSettings = &core.RepeatSettings{Interval: core.Monthly, CurrentCount: i}
		txs = append(txs, tx)
	}
	created, err := repo.CreateTransactions(ctx, txs)
	if err != nil {
		t.Fatalf("CreateTransactions() error = %v", err)
	}

	if err := repo.DeleteOccurrences(ctx, []int64{created[2].ID}, SeriesMark{GroupID: "gym", LastCount: 3}); err != nil {
		t.Fatalf("DeleteOccurrences() error = %v", err)
	}
	// A later, lower mark never rewinds the series.
	if err := repo.DeleteOccurrences(ctx, []int64{created[1].ID}, SeriesMark{GroupID: "gym", LastCount: 2, EndCount: 1}); err != nil {
		t.Fatalf("DeleteOccurrences() error = %v", err)
	}
	marks, err := repo.SeriesMarks(ctx)
	if err != nil {
		t.Fatalf("SeriesMarks() error = %v", err)
	}
	if got := marks["gym"]; got.LastCount != 3 || got.EndCount != 1 {
		t.Errorf("mark = %+v, want last 3 end 1", got)
	}

	// Unknown ids roll the mark back with the delete.
	if err := repo.DeleteOccurrences(ctx, []int64{999}, SeriesMark{GroupID: "other", LastCount: 9}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteOccurrences(unknown) error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteOccurrences(ctx, []int64{created[0].ID}, SeriesMark{GroupID: "gym", LastCount: 1}); err != nil {
		t.Fatalf("DeleteOccurrences() error = %v", err)
	}
	if marks, _ = repo.SeriesMarks(ctx); len(marks) != 0 {
		t.Errorf("marks after the series is gone = %+v, want none", marks)
	}
}
