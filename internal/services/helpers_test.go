package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/storage"
)

type fakePublisher struct {
	mu      sync.Mutex
	synced  []int64
	deleted []int64
	err     error
}

func (p *fakePublisher) PublishTransactionSync(_ context.Context, id, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synced = append(p.synced, id)
	return p.err
}

func (p *fakePublisher) PublishTransactionDelete(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return p.err
}

type fixture struct {
	repo    *storage.SQLiteRepository
	account core.Account
	savings core.Account
	home    core.Category
	salary  core.Category
	tag     core.Category
	method  core.CustomField
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "saldo.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	f := fixture{repo: repo}
	if f.account, err = repo.CreateAccount(ctx, core.Account{Name: "Checking", Balance: decimal.NewFromInt(1000)}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if f.savings, err = repo.CreateAccount(ctx, core.Account{Name: "Savings"}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if f.home, err = repo.CreateCategory(ctx, core.Category{
		Name:          "Home",
		Type:          core.CategoryExpense,
		SubCategories: []core.SubCategory{{Name: "Rent"}},
	}); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if f.salary, err = repo.CreateCategory(ctx, core.Category{Name: "Salary", Type: core.CategoryIncome}); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if f.tag, err = repo.CreateCategory(ctx, core.Category{Name: "Work", Type: core.CategoryTag}); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if f.method, err = repo.CreateCustomField(ctx, core.CustomField{
		Name:            "Method",
		Type:            core.FieldSelect,
		Options:         []string{"card", "cash"},
		TransactionType: core.ScopeAll,
	}); err != nil {
		t.Fatalf("CreateCustomField() error = %v", err)
	}
	return f
}

func (f fixture) service(pub Publisher, now time.Time) *TransactionService {
	s := NewTransactionService(f.repo, pub)
	s.now = func() time.Time { return now }
	return s
}

func (f fixture) expense(name string, value string, due core.Date) core.Transaction {
	return core.Transaction{
		Type:       core.Expense,
		Name:       name,
		Balance:    core.Balance{Value: decimal.RequireFromString(value)},
		DueDate:    due,
		CategoryID: f.home.ID,
		AccountID:  f.account.ID,
	}
}

func (f fixture) repeated(name string, due core.Date, count int) core.Transaction {
	tx := f.expense(name, "50", due)
	tx.Frequency = core.FrequencyRepeat
	tx.RepeatSettings = &core.RepeatSettings{InitialInstallment: 1, Count: count, Interval: core.Monthly}
	return tx
}

func date(y, m, d int) core.Date { return core.NewDate(y, m, d) }
