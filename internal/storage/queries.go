package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Account struct {
	ID             int64
	Name           string
	OpeningBalance string
	BankID         string
}

type Category struct {
	ID       int64
	ParentID sql.NullInt64
	Name     string
	Icon     string
	Type     string
}

type CustomField struct {
	ID              int64
	Name            string
	Type            string
	Options         string
	Required        bool
	TransactionType string
}

type Transaction struct {
	ID                 int64
	Type               string
	Name               string
	Value              string
	Discount           sql.NullString
	DiscountPercentage sql.NullString
	Interest           sql.NullString
	InterestPercentage sql.NullString
	LiquidValue        string
	Frequency          string
	InitialInstallment sql.NullInt64
	InstallmentCount   sql.NullInt64
	RepeatInterval     sql.NullString
	CurrentCount       sql.NullInt64
	RepeatGroupID      sql.NullString
	DueDate            string
	RegistrationDate   sql.NullString
	ConfirmationDate   sql.NullString
	IsConfirmed        bool
	CategoryID         int64
	SubCategoryID      sql.NullInt64
	AccountID          int64
	Version            int64
	SyncStatus         string
	UpdatedAt          sql.NullTime
}

type TransactionTag struct {
	TransactionID int64
	Position      int64
	TagID         int64
	SubTagID      sql.NullInt64
}

type TransactionCustomField struct {
	TransactionID int64
	FieldID       int64
	Value         string
}

// accounts

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (name, opening_balance, bank_id) VALUES (?, ?, ?)
RETURNING id, name, opening_balance, bank_id`

type CreateAccountParams struct {
	Name           string
	OpeningBalance string
	BankID         string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount, arg.Name, arg.OpeningBalance, arg.BankID)
	var i Account
	err := row.Scan(&i.ID, &i.Name, &i.OpeningBalance, &i.BankID)
	return i, err
}

const getAccount = `-- name: GetAccount :one
SELECT id, name, opening_balance, bank_id FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id int64) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccount, id)
	var i Account
	err := row.Scan(&i.ID, &i.Name, &i.OpeningBalance, &i.BankID)
	return i, err
}

const listAccounts = `-- name: ListAccounts :many
SELECT id, name, opening_balance, bank_id FROM accounts ORDER BY name COLLATE NOCASE, id`

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var i Account
		if err := rows.Scan(&i.ID, &i.Name, &i.OpeningBalance, &i.BankID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateAccount = `-- name: UpdateAccount :execrows
UPDATE accounts SET name = ?, opening_balance = ?, bank_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

type UpdateAccountParams struct {
	Name           string
	OpeningBalance string
	BankID         string
	ID             int64
}

func (q *Queries) UpdateAccount(ctx context.Context, arg UpdateAccountParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateAccount, arg.Name, arg.OpeningBalance, arg.BankID, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAccount = `-- name: DeleteAccount :execrows
DELETE FROM accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAccount, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// categories

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (parent_id, name, icon, type) VALUES (?, ?, ?, ?)
RETURNING id, parent_id, name, icon, type`

type CreateCategoryParams struct {
	ParentID sql.NullInt64
	Name     string
	Icon     string
	Type     string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRowContext(ctx, createCategory, arg.ParentID, arg.Name, arg.Icon, arg.Type)
	var i Category
	err := row.Scan(&i.ID, &i.ParentID, &i.Name, &i.Icon, &i.Type)
	return i, err
}

const getCategory = `-- name: GetCategory :one
SELECT id, parent_id, name, icon, type FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategory, id)
	var i Category
	err := row.Scan(&i.ID, &i.ParentID, &i.Name, &i.Icon, &i.Type)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT id, parent_id, name, icon, type FROM categories
ORDER BY parent_id IS NOT NULL, name COLLATE NOCASE, id`

// ListCategories returns top-level rows before subcategories.
func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.ParentID, &i.Name, &i.Icon, &i.Type); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateCategory = `-- name: UpdateCategory :execrows
UPDATE categories SET name = ?, icon = ?, type = ? WHERE id = ? AND parent_id IS NULL`

type UpdateCategoryParams struct {
	Name string
	Icon string
	Type string
	ID   int64
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateCategory, arg.Name, arg.Icon, arg.Type, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateSubCategoryTypes = `-- name: UpdateSubCategoryTypes :exec
UPDATE categories SET type = ? WHERE parent_id = ?`

func (q *Queries) UpdateSubCategoryTypes(ctx context.Context, typ string, parentID int64) error {
	_, err := q.db.ExecContext(ctx, updateSubCategoryTypes, typ, parentID)
	return err
}

const deleteCategory = `-- name: DeleteCategory :execrows
DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSubCategory = `-- name: DeleteSubCategory :execrows
DELETE FROM categories WHERE id = ? AND parent_id = ?`

func (q *Queries) DeleteSubCategory(ctx context.Context, id, parentID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSubCategory, id, parentID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// custom fields

const createCustomField = `-- name: CreateCustomField :one
INSERT INTO custom_fields (name, type, options, required, transaction_type) VALUES (?, ?, ?, ?, ?)
RETURNING id, name, type, options, required, transaction_type`

type CreateCustomFieldParams struct {
	Name            string
	Type            string
	Options         string
	Required        bool
	TransactionType string
}

func (q *Queries) CreateCustomField(ctx context.Context, arg CreateCustomFieldParams) (CustomField, error) {
	row := q.db.QueryRowContext(ctx, createCustomField, arg.Name, arg.Type, arg.Options, arg.Required, arg.TransactionType)
	var i CustomField
	err := row.Scan(&i.ID, &i.Name, &i.Type, &i.Options, &i.Required, &i.TransactionType)
	return i, err
}

const getCustomField = `-- name: GetCustomField :one
SELECT id, name, type, options, required, transaction_type FROM custom_fields WHERE id = ?`

func (q *Queries) GetCustomField(ctx context.Context, id int64) (CustomField, error) {
	row := q.db.QueryRowContext(ctx, getCustomField, id)
	var i CustomField
	err := row.Scan(&i.ID, &i.Name, &i.Type, &i.Options, &i.Required, &i.TransactionType)
	return i, err
}

const listCustomFields = `-- name: ListCustomFields :many
SELECT id, name, type, options, required, transaction_type FROM custom_fields ORDER BY id`

func (q *Queries) ListCustomFields(ctx context.Context) ([]CustomField, error) {
	rows, err := q.db.QueryContext(ctx, listCustomFields)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CustomField
	for rows.Next() {
		var i CustomField
		if err := rows.Scan(&i.ID, &i.Name, &i.Type, &i.Options, &i.Required, &i.TransactionType); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateCustomField = `-- name: UpdateCustomField :execrows
UPDATE custom_fields SET name = ?, type = ?, options = ?, required = ?, transaction_type = ? WHERE id = ?`

type UpdateCustomFieldParams struct {
	Name            string
	Type            string
	Options         string
	Required        bool
	TransactionType string
	ID              int64
}

func (q *Queries) UpdateCustomField(ctx context.Context, arg UpdateCustomFieldParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateCustomField, arg.Name, arg.Type, arg.Options, arg.Required, arg.TransactionType, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteCustomField = `-- name: DeleteCustomField :execrows
DELETE FROM custom_fields WHERE id = ?`

func (q *Queries) DeleteCustomField(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCustomField, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// transactions

const transactionColumns = `id, type, name, value, discount, discount_percentage, interest,
interest_percentage, liquid_value, frequency, initial_installment, installment_count,
repeat_interval, current_count, repeat_group_id, due_date, registration_date,
confirmation_date, is_confirmed, category_id, sub_category_id, account_id, version,
sync_status, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (Transaction, error) {
	var i Transaction
	err := s.Scan(
		&i.ID, &i.Type, &i.Name, &i.Value, &i.Discount, &i.DiscountPercentage, &i.Interest,
		&i.InterestPercentage, &i.LiquidValue, &i.Frequency, &i.InitialInstallment, &i.InstallmentCount,
		&i.RepeatInterval, &i.CurrentCount, &i.RepeatGroupID, &i.DueDate, &i.RegistrationDate,
		&i.ConfirmationDate, &i.IsConfirmed, &i.CategoryID, &i.SubCategoryID, &i.AccountID, &i.Version,
		&i.SyncStatus, &i.UpdatedAt,
	)
	return i, err
}

const insertTransaction = `-- name: InsertTransaction :one
INSERT INTO transactions (
    type, name, value, discount, discount_percentage, interest, interest_percentage,
    liquid_value, frequency, initial_installment, installment_count, repeat_interval,
    current_count, repeat_group_id, due_date, registration_date, confirmation_date,
    is_confirmed, category_id, sub_category_id, account_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id, version`

// TransactionParams carries every writable column of a transaction.
type TransactionParams struct {
	Type               string
	Name               string
	Value              string
	Discount           sql.NullString
	DiscountPercentage sql.NullString
	Interest           sql.NullString
	InterestPercentage sql.NullString
	LiquidValue        string
	Frequency          string
	InitialInstallment sql.NullInt64
	InstallmentCount   sql.NullInt64
	RepeatInterval     sql.NullString
	CurrentCount       sql.NullInt64
	RepeatGroupID      sql.NullString
	DueDate            string
	RegistrationDate   sql.NullString
	ConfirmationDate   sql.NullString
	IsConfirmed        bool
	CategoryID         int64
	SubCategoryID      sql.NullInt64
	AccountID          int64
}

func (p TransactionParams) args() []any {
	return []any{
		p.Type, p.Name, p.Value, p.Discount, p.DiscountPercentage, p.Interest, p.InterestPercentage,
		p.LiquidValue, p.Frequency, p.InitialInstallment, p.InstallmentCount, p.RepeatInterval,
		p.CurrentCount, p.RepeatGroupID, p.DueDate, p.RegistrationDate, p.ConfirmationDate,
		p.IsConfirmed, p.CategoryID, p.SubCategoryID, p.AccountID,
	}
}

func (q *Queries) InsertTransaction(ctx context.Context, arg TransactionParams) (id, version int64, err error) {
	row := q.db.QueryRowContext(ctx, insertTransaction, arg.args()...)
	err = row.Scan(&id, &version)
	return id, version, err
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const updateTransaction = `-- name: UpdateTransaction :one
UPDATE transactions SET
    type = ?, name = ?, value = ?, discount = ?, discount_percentage = ?, interest = ?,
    interest_percentage = ?, liquid_value = ?, frequency = ?, initial_installment = ?,
    installment_count = ?, repeat_interval = ?, current_count = ?, repeat_group_id = ?,
    due_date = ?, registration_date = ?, confirmation_date = ?, is_confirmed = ?,
    category_id = ?, sub_category_id = ?, account_id = ?,
    version = version + 1, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND version = ?
RETURNING version`

// UpdateTransaction writes arg when the stored version still equals
// expectedVersion and returns the new version; sql.ErrNoRows otherwise.
func (q *Queries) UpdateTransaction(ctx context.Context, id, expectedVersion int64, arg TransactionParams) (int64, error) {
	args := append(arg.args(), id, expectedVersion)
	row := q.db.QueryRowContext(ctx, updateTransaction, args...)
	var version int64
	err := row.Scan(&version)
	return version, err
}

const deleteTransaction = `-- name: DeleteTransaction :execrows
DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// tags and custom values

const insertTag = `-- name: InsertTag :exec
INSERT INTO transaction_tags (transaction_id, position, tag_id, sub_tag_id) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertTag(ctx context.Context, arg TransactionTag) error {
	_, err := q.db.ExecContext(ctx, insertTag, arg.TransactionID, arg.Position, arg.TagID, arg.SubTagID)
	return err
}

const deleteTags = `-- name: DeleteTags :exec
DELETE FROM transaction_tags WHERE transaction_id = ?`

func (q *Queries) DeleteTags(ctx context.Context, transactionID int64) error {
	_, err := q.db.ExecContext(ctx, deleteTags, transactionID)
	return err
}

const insertCustomValue = `-- name: InsertCustomValue :exec
INSERT INTO transaction_custom_fields (transaction_id, field_id, value) VALUES (?, ?, ?)`

func (q *Queries) InsertCustomValue(ctx context.Context, arg TransactionCustomField) error {
	_, err := q.db.ExecContext(ctx, insertCustomValue, arg.TransactionID, arg.FieldID, arg.Value)
	return err
}

const deleteCustomValues = `-- name: DeleteCustomValues :exec
DELETE FROM transaction_custom_fields WHERE transaction_id = ?`

func (q *Queries) DeleteCustomValues(ctx context.Context, transactionID int64) error {
	_, err := q.db.ExecContext(ctx, deleteCustomValues, transactionID)
	return err
}

// sync bookkeeping

const getPendingSync = `-- name: GetPendingSync :many
SELECT id, version, updated_at FROM transactions
WHERE sync_status = 'pending' ORDER BY updated_at, id LIMIT ?`

type GetPendingSyncRow struct {
	ID        int64
	Version   int64
	UpdatedAt sql.NullTime
}

func (q *Queries) GetPendingSync(ctx context.Context, limit int64) ([]GetPendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSync, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPendingSyncRow
	for rows.Next() {
		var i GetPendingSyncRow
		if err := rows.Scan(&i.ID, &i.Version, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markSynced = `-- name: MarkSynced :execrows
UPDATE transactions SET sync_status = 'synced' WHERE id = ? AND version = ?`

// MarkSynced only applies when no newer version was written meanwhile.
func (q *Queries) MarkSynced(ctx context.Context, id, version int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markSynced, id, version)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markSyncError = `-- name: MarkSyncError :exec
UPDATE transactions SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markSyncError, id)
	return err
}

type RecurringSeries struct {
	RepeatGroupID string
	LastCount     int64
	EndCount      sql.NullInt64
}

const upsertRecurringSeries = `-- name: UpsertRecurringSeries :exec
INSERT INTO recurring_series (repeat_group_id, last_count, end_count) VALUES (?, ?, ?)
ON CONFLICT (repeat_group_id) DO UPDATE SET
    last_count = MAX(last_count, excluded.last_count),
    end_count = CASE
        WHEN excluded.end_count IS NULL THEN end_count
        WHEN end_count IS NULL THEN excluded.end_count
        ELSE MIN(end_count, excluded.end_count)
    END`

// UpsertRecurringSeries only ever raises last_count and lowers end_count.
func (q *Queries) UpsertRecurringSeries(ctx context.Context, arg RecurringSeries) error {
	_, err := q.db.ExecContext(ctx, upsertRecurringSeries, arg.RepeatGroupID, arg.LastCount, arg.EndCount)
	return err
}

const deleteEmptyRecurringSeries = `-- name: DeleteEmptyRecurringSeries :exec
DELETE FROM recurring_series
WHERE repeat_group_id = ?
  AND NOT EXISTS (SELECT 1 FROM transactions WHERE repeat_group_id = ?)`

func (q *Queries) DeleteEmptyRecurringSeries(ctx context.Context, groupID string) error {
	_, err := q.db.ExecContext(ctx, deleteEmptyRecurringSeries, groupID, groupID)
	return err
}

const listRecurringSeries = `-- name: ListRecurringSeries :many
SELECT repeat_group_id, last_count, end_count FROM recurring_series`

func (q *Queries) ListRecurringSeries(ctx context.Context) ([]RecurringSeries, error) {
	rows, err := q.db.QueryContext(ctx, listRecurringSeries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringSeries
	for rows.Next() {
		var i RecurringSeries
		if err := rows.Scan(&i.RepeatGroupID, &i.LastCount, &i.EndCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
