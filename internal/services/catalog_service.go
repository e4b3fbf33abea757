package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"saldo/internal/core"
	"saldo/internal/storage"
)

// CatalogService manages accounts, categories and custom field definitions.
type CatalogService struct {
	storage *storage.SQLiteRepository
}

func NewCatalogService(storage *storage.SQLiteRepository) *CatalogService {
	return &CatalogService{storage: storage}
}

// Accounts returns every account with current and forecast balances.
func (s *CatalogService) Accounts(ctx context.Context) ([]core.Account, error) {
	accounts, err := s.storage.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.storage.ListTransactions(ctx, core.Filter{})
	if err != nil {
		return nil, err
	}
	for i, a := range accounts {
		accounts[i] = core.AccountBalances(a, txs)
	}
	return accounts, nil
}

func (s *CatalogService) Account(ctx context.Context, id int64) (core.Account, error) {
	a, err := s.storage.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	txs, err := s.storage.ListTransactions(ctx, core.Filter{AccountID: id})
	if err != nil {
		return core.Account{}, err
	}
	return core.AccountBalances(a, txs), nil
}

func (s *CatalogService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if err := a.Validate(); err != nil {
		return core.Account{}, invalid(err)
	}
	created, err := s.storage.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account created", "id", created.ID, "name", created.Name)
	return core.AccountBalances(created, nil), nil
}

func (s *CatalogService) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if err := a.Validate(); err != nil {
		return core.Account{}, invalid(err)
	}
	if _, err := s.storage.UpdateAccount(ctx, a); err != nil {
		return core.Account{}, err
	}
	return s.Account(ctx, a.ID)
}

func (s *CatalogService) DeleteAccount(ctx context.Context, id int64) error {
	return s.storage.DeleteAccount(ctx, id)
}

func (s *CatalogService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.storage.ListCategories(ctx)
}

func (s *CatalogService) Category(ctx context.Context, id int64) (core.Category, error) {
	return s.storage.GetCategory(ctx, id)
}

func cleanCategory(c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return c, err
	}
	for i, sub := range c.SubCategories {
		c.SubCategories[i].Name = strings.TrimSpace(sub.Name)
		if c.SubCategories[i].Name == "" {
			return c, fmt.Errorf("subcategory %d: %w", i+1, core.ErrEmptyName)
		}
	}
	return c, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c, err := cleanCategory(c)
	if err != nil {
		return core.Category{}, invalid(err)
	}
	created, err := s.storage.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "id", created.ID, "name", created.Name, "type", created.Type)
	return created, nil
}

// UpdateCategory renames or retypes a category. Subcategories are managed
// through AddSubCategory and DeleteSubCategory.
func (s *CatalogService) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.SubCategories = nil
	c, err := cleanCategory(c)
	if err != nil {
		return core.Category{}, invalid(err)
	}
	return s.storage.UpdateCategory(ctx, c)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	return s.storage.DeleteCategory(ctx, id)
}

func (s *CatalogService) AddSubCategory(ctx context.Context, parentID int64, sub core.SubCategory) (core.SubCategory, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	if sub.Name == "" {
		return core.SubCategory{}, invalid(core.ErrEmptyName)
	}
	created, err := s.storage.AddSubCategory(ctx, parentID, sub)
	if err != nil {
		return core.SubCategory{}, err
	}
	return created, nil
}

func (s *CatalogService) DeleteSubCategory(ctx context.Context, parentID, subID int64) error {
	return s.storage.DeleteSubCategory(ctx, parentID, subID)
}

func (s *CatalogService) CustomFields(ctx context.Context) ([]core.CustomField, error) {
	return s.storage.ListCustomFields(ctx)
}

func (s *CatalogService) CustomField(ctx context.Context, id int64) (core.CustomField, error) {
	return s.storage.GetCustomField(ctx, id)
}

func cleanField(f core.CustomField) (core.CustomField, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.TransactionType == "" {
		f.TransactionType = core.ScopeAll
	}
	opts := make([]string, 0, len(f.Options))
	for _, o := range f.Options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	f.Options = opts
	if f.Type != core.FieldSelect {
		f.Options = []string{}
	}
	return f, f.Validate()
}

func (s *CatalogService) CreateCustomField(ctx context.Context, f core.CustomField) (core.CustomField, error) {
	f, err := cleanField(f)
	if err != nil {
		return core.CustomField{}, invalid(err)
	}
	created, err := s.storage.CreateCustomField(ctx, f)
	if err != nil {
		return core.CustomField{}, err
	}
	slog.InfoContext(ctx, "Custom field created", "id", created.ID, "name", created.Name, "type", created.Type)
	return created, nil
}

func (s *CatalogService) UpdateCustomField(ctx context.Context, f core.CustomField) (core.CustomField, error) {
	f, err := cleanField(f)
	if err != nil {
		return core.CustomField{}, invalid(err)
	}
	return s.storage.UpdateCustomField(ctx, f)
}

func (s *CatalogService) DeleteCustomField(ctx context.Context, id int64) error {
	return s.storage.DeleteCustomField(ctx, id)
}
