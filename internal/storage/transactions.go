package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// PendingSync is the minimal data needed to enqueue a sync message.
type PendingSync struct {
	ID        int64
	Version   int64
	UpdatedAt time.Time
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullInt(v int64, valid bool) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: valid}
}

func paramsFrom(t core.Transaction) TransactionParams {
	p := TransactionParams{
		Type:               string(t.Type),
		Name:               strings.TrimSpace(t.Name),
		Value:              t.Balance.Value.String(),
		Discount:           nullDecimal(t.Balance.Discount),
		DiscountPercentage: nullDecimal(t.Balance.DiscountPercentage),
		Interest:           nullDecimal(t.Balance.Interest),
		InterestPercentage: nullDecimal(t.Balance.InterestPercentage),
		LiquidValue:        t.Balance.LiquidValue.String(),
		Frequency:          string(t.Frequency),
		RepeatGroupID:      sql.NullString{String: t.RepeatGroupID, Valid: t.RepeatGroupID != ""},
		DueDate:            t.DueDate.String(),
		RegistrationDate:   nullDate(t.RegistrationDate),
		IsConfirmed:        t.IsConfirmed,
		CategoryID:         t.CategoryID,
		AccountID:          t.AccountID,
	}
	if p.Frequency == "" {
		p.Frequency = string(core.FrequencyNone)
	}
	if rs := t.RepeatSettings; rs != nil {
		p.InitialInstallment = nullInt(int64(rs.InitialInstallment), true)
		p.InstallmentCount = nullInt(int64(rs.Count), true)
		p.RepeatInterval = sql.NullString{String: string(rs.Interval), Valid: rs.Interval != ""}
		p.CurrentCount = nullInt(int64(rs.CurrentCount), true)
	}
	if t.ConfirmationDate != nil {
		p.ConfirmationDate = nullDate(*t.ConfirmationDate)
	}
	if t.SubCategoryID != nil {
		p.SubCategoryID = nullInt(*t.SubCategoryID, true)
	}
	return p
}

func parseDecimal(s sql.NullString) *decimal.Decimal {
	if !s.Valid {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func parseDate(s sql.NullString) core.Date {
	if !s.Valid {
		return core.Date{}
	}
	d, err := core.ParseDate(s.String)
	if err != nil {
		return core.Date{}
	}
	return d
}

func transactionFromRow(row Transaction) core.Transaction {
	value, _ := decimal.NewFromString(row.Value)
	liquid, _ := decimal.NewFromString(row.LiquidValue)
	t := core.Transaction{
		ID:   row.ID,
		Type: core.TransactionType(row.Type),
		Name: row.Name,
		Balance: core.Balance{
			Value:              value,
			Discount:           parseDecimal(row.Discount),
			DiscountPercentage: parseDecimal(row.DiscountPercentage),
			Interest:           parseDecimal(row.Interest),
			InterestPercentage: parseDecimal(row.InterestPercentage),
			LiquidValue:        liquid,
		},
		Frequency:        core.Frequency(row.Frequency),
		RepeatGroupID:    row.RepeatGroupID.String,
		DueDate:          parseDate(sql.NullString{String: row.DueDate, Valid: true}),
		RegistrationDate: parseDate(row.RegistrationDate),
		IsConfirmed:      row.IsConfirmed,
		CategoryID:       row.CategoryID,
		AccountID:        row.AccountID,
		Version:          row.Version,
		Tags:             []core.TagRef{},
		CustomFields:     []core.CustomFieldValue{},
	}
	if row.Frequency != string(core.FrequencyNone) && row.CurrentCount.Valid {
		t.RepeatSettings = &core.RepeatSettings{
			InitialInstallment: int(row.InitialInstallment.Int64),
			Count:              int(row.InstallmentCount.Int64),
			Interval:           core.Interval(row.RepeatInterval.String),
			CurrentCount:       int(row.CurrentCount.Int64),
		}
	}
	if d := parseDate(row.ConfirmationDate); !d.IsZero() {
		t.ConfirmationDate = &d
	}
	if row.SubCategoryID.Valid {
		id := row.SubCategoryID.Int64
		t.SubCategoryID = &id
	}
	return t
}

// filterClause renders f as a WHERE clause over the transactions table.
func filterClause(f core.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.AccountID != 0 {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.CategoryID != 0 {
		conds = append(conds, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Confirmed != nil {
		conds = append(conds, "is_confirmed = ?")
		args = append(args, *f.Confirmed)
	}
	if !f.From.IsZero() {
		conds = append(conds, "due_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "due_date <= ?")
		args = append(args, f.To.String())
	}
	if f.GroupID != "" {
		conds = append(conds, "repeat_group_id = ?")
		args = append(args, f.GroupID)
	}
	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), args
}

// load reads transactions matching where together with their tags and
// custom field values.
func load(ctx context.Context, db DBTX, where string, args []any) ([]core.Transaction, error) {
	q := New(db)
	rows, err := q.listTransactions(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE "+where+" ORDER BY due_date, id", args...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, len(rows))
	index := make(map[int64]int, len(rows))
	for i, row := range rows {
		out[i] = transactionFromRow(row)
		index[row.ID] = i
	}
	if len(out) == 0 {
		return out, nil
	}

	sub := "SELECT id FROM transactions WHERE " + where
	tagRows, err := db.QueryContext(ctx,
		"SELECT transaction_id, tag_id, sub_tag_id FROM transaction_tags WHERE transaction_id IN ("+sub+") ORDER BY transaction_id, position", args...)
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var (
			txID, tagID int64
			subTag      sql.NullInt64
		)
		if err := tagRows.Scan(&txID, &tagID, &subTag); err != nil {
			return nil, err
		}
		ref := core.TagRef{TagID: tagID}
		if subTag.Valid {
			id := subTag.Int64
			ref.SubTagID = &id
		}
		i := index[txID]
		out[i].Tags = append(out[i].Tags, ref)
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	cfRows, err := db.QueryContext(ctx,
		"SELECT transaction_id, field_id, value FROM transaction_custom_fields WHERE transaction_id IN ("+sub+") ORDER BY transaction_id, field_id", args...)
	if err != nil {
		return nil, err
	}
	defer cfRows.Close()
	for cfRows.Next() {
		var (
			txID int64
			v    core.CustomFieldValue
		)
		if err := cfRows.Scan(&txID, &v.ID, &v.Value); err != nil {
			return nil, err
		}
		i := index[txID]
		out[i].CustomFields = append(out[i].CustomFields, v)
	}
	return out, cfRows.Err()
}

func writeRelations(ctx context.Context, q *Queries, t core.Transaction) error {
	if err := q.DeleteTags(ctx, t.ID); err != nil {
		return err
	}
	for i, tag := range t.Tags {
		arg := TransactionTag{TransactionID: t.ID, Position: int64(i), TagID: tag.TagID}
		if tag.SubTagID != nil {
			arg.SubTagID = nullInt(*tag.SubTagID, true)
		}
		if err := q.InsertTag(ctx, arg); err != nil {
			return err
		}
	}
	if err := q.DeleteCustomValues(ctx, t.ID); err != nil {
		return err
	}
	for _, v := range t.CustomFields {
		if strings.TrimSpace(v.Value) == "" {
			continue
		}
		if err := q.InsertCustomValue(ctx, TransactionCustomField{TransactionID: t.ID, FieldID: v.ID, Value: v.Value}); err != nil {
			return err
		}
	}
	return nil
}

// CreateTransactions inserts txs atomically and returns them with ids and
// versions assigned.
func (r *SQLiteRepository) CreateTransactions(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, len(txs))
	err := r.inTx(ctx, func(q *Queries, _ *sql.Tx) error {
		for i, t := range txs {
			id, version, err := q.InsertTransaction(ctx, paramsFrom(t))
			if err != nil {
				return translate(err, fmt.Sprintf("insert transaction %q", t.Name))
			}
			t.ID, t.Version = id, version
			if err := writeRelations(ctx, q, t); err != nil {
				return translate(err, fmt.Sprintf("write relations of transaction %d", id))
			}
			out[i] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "Transactions saved to SQLite", "count", len(out))
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	txs, err := load(ctx, r.db, "id = ?", []any{id})
	if err != nil {
		return core.Transaction{}, translate(err, "get transaction")
	}
	if len(txs) == 0 {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, core.ErrNotFound)
	}
	return txs[0], nil
}

// GetTransactions returns the transactions with the given ids, in due order.
func (r *SQLiteRepository) GetTransactions(ctx context.Context, ids []int64) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return []core.Transaction{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	where := "id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	txs, err := load(ctx, r.db, where, args)
	if err != nil {
		return nil, translate(err, "get transactions")
	}
	return txs, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	where, args := filterClause(f)
	txs, err := load(ctx, r.db, where, args)
	if err != nil {
		return nil, translate(err, "list transactions")
	}
	return txs, nil
}

// ListGroup returns the occurrences of one repeat group in due order.
func (r *SQLiteRepository) ListGroup(ctx context.Context, groupID string) ([]core.Transaction, error) {
	txs, err := load(ctx, r.db, "repeat_group_id = ?", []any{groupID})
	if err != nil {
		return nil, translate(err, "list group")
	}
	return txs, nil
}

// ListRecurring returns every stored occurrence of recurring series.
func (r *SQLiteRepository) ListRecurring(ctx context.Context) ([]core.Transaction, error) {
	txs, err := load(ctx, r.db, "frequency = 'recurring' AND repeat_group_id IS NOT NULL", nil)
	if err != nil {
		return nil, translate(err, "list recurring")
	}
	return txs, nil
}

// UpdateTransactions writes txs atomically. Each transaction's Version must
// match the stored one, otherwise nothing is written and
// core.ErrVersionConflict is returned.
func (r *SQLiteRepository) UpdateTransactions(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, len(txs))
	err := r.inTx(ctx, func(q *Queries, _ *sql.Tx) error {
		for i, t := range txs {
			version, err := q.UpdateTransaction(ctx, t.ID, t.Version, paramsFrom(t))
			if errors.Is(err, sql.ErrNoRows) {
				if _, getErr := q.GetTransaction(ctx, t.ID); errors.Is(getErr, sql.ErrNoRows) {
					return fmt.Errorf("update transaction %d: %w", t.ID, core.ErrNotFound)
				}
				return fmt.Errorf("update transaction %d: %w", t.ID, core.ErrVersionConflict)
			}
			if err != nil {
				return translate(err, fmt.Sprintf("update transaction %d", t.ID))
			}
			t.Version = version
			if err := writeRelations(ctx, q, t); err != nil {
				return translate(err, fmt.Sprintf("write relations of transaction %d", t.ID))
			}
			out[i] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTransactions removes ids atomically; unknown ids fail the batch.
func (r *SQLiteRepository) DeleteTransactions(ctx context.Context, ids []int64) error {
	return r.inTx(ctx, func(q *Queries, _ *sql.Tx) error {
		for _, id := range ids {
			n, err := q.DeleteTransaction(ctx, id)
			if err := affected(n, err, fmt.Sprintf("delete transaction %d", id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SeriesMark remembers how far a recurring series got. LastCount is the
// highest occurrence ever stored; EndCount, when set, is where the series
// was cut short.
type SeriesMark struct {
	GroupID   string
	LastCount int
	EndCount  int
}

// DeleteOccurrences removes ids like DeleteTransactions and records mark for
// their series in the same transaction. The mark goes away with the last
// occurrence of the series.
func (r *SQLiteRepository) DeleteOccurrences(ctx context.Context, ids []int64, mark SeriesMark) error {
	return r.inTx(ctx, func(q *Queries, _ *sql.Tx) error {
		for _, id := range ids {
			n, err := q.DeleteTransaction(ctx, id)
			if err := affected(n, err, fmt.Sprintf("delete transaction %d", id)); err != nil {
				return err
			}
		}
		end := sql.NullInt64{Int64: int64(mark.EndCount), Valid: mark.EndCount > 0}
		if err := q.UpsertRecurringSeries(ctx, RecurringSeries{
			RepeatGroupID: mark.GroupID,
			LastCount:     int64(mark.LastCount),
			EndCount:      end,
		}); err != nil {
			return translate(err, "mark recurring series")
		}
		if err := q.DeleteEmptyRecurringSeries(ctx, mark.GroupID); err != nil {
			return translate(err, "drop recurring series mark")
		}
		return nil
	})
}

// SeriesMarks returns the recorded marks keyed by repeat group.
func (r *SQLiteRepository) SeriesMarks(ctx context.Context) (map[string]SeriesMark, error) {
	rows, err := r.queries.ListRecurringSeries(ctx)
	if err != nil {
		return nil, translate(err, "list recurring series")
	}
	out := make(map[string]SeriesMark, len(rows))
	for _, row := range rows {
		out[row.RepeatGroupID] = SeriesMark{
			GroupID:   row.RepeatGroupID,
			LastCount: int(row.LastCount),
			EndCount:  int(row.EndCount.Int64),
		}
	}
	return out, nil
}

// GetPendingSync returns transactions that still need to reach the mirror.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.queries.GetPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, translate(err, "get pending sync")
	}
	out := make([]PendingSync, len(rows))
	for i, row := range rows {
		out[i] = PendingSync{ID: row.ID, Version: row.Version, UpdatedAt: row.UpdatedAt.Time}
	}
	return out, nil
}

// MarkSynced flags version as mirrored. A newer version stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version int64) error {
	n, err := r.queries.MarkSynced(ctx, id, version)
	if err != nil {
		return translate(err, "mark synced")
	}
	if n == 0 {
		slog.DebugContext(ctx, "Transaction changed since sync message, leaving pending", "id", id, "version", version)
		return nil
	}
	slog.DebugContext(ctx, "Transaction marked as synced", "id", id, "version", version)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkSyncError(ctx, id); err != nil {
		return translate(err, "mark sync error")
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}
