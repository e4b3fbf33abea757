package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func accountFromRow(a Account) core.Account {
	balance, err := decimal.NewFromString(a.OpeningBalance)
	if err != nil {
		balance = decimal.Zero
	}
	return core.Account{ID: a.ID, Name: a.Name, Balance: balance, BankID: a.BankID}
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	row, err := r.queries.CreateAccount(ctx, CreateAccountParams{
		Name:           a.Name,
		OpeningBalance: a.Balance.String(),
		BankID:         a.BankID,
	})
	if err != nil {
		return core.Account{}, translate(err, "create account")
	}
	return accountFromRow(row), nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row, err := r.queries.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, translate(err, "get account")
	}
	return accountFromRow(row), nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, translate(err, "list accounts")
	}
	out := make([]core.Account, len(rows))
	for i, row := range rows {
		out[i] = accountFromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	n, err := r.queries.UpdateAccount(ctx, UpdateAccountParams{
		Name:           a.Name,
		OpeningBalance: a.Balance.String(),
		BankID:         a.BankID,
		ID:             a.ID,
	})
	if err := affected(n, err, "update account"); err != nil {
		return core.Account{}, err
	}
	return r.GetAccount(ctx, a.ID)
}

// DeleteAccount fails with core.ErrInUse while transactions reference it.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteAccount(ctx, id)
	return affected(n, err, "delete account")
}
