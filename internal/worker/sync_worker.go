package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/export"
	applog "saldo/internal/log"
	"saldo/internal/sheets"
	"saldo/internal/storage"
)

// SyncWorker mirrors transactions from SQLite into a spreadsheet
type SyncWorker struct {
	storage *storage.SQLiteRepository
	mirror  sheets.TransactionMirror

	mu     sync.Mutex
	header []string
}

func NewSyncWorker(storage *storage.SQLiteRepository, mirror sheets.TransactionMirror) *SyncWorker {
	return &SyncWorker{
		storage: storage,
		mirror:  mirror,
	}
}

// HandleMessage dispatches one AMQP message. A returned error makes the
// consumer requeue the message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	switch msg.Action {
	case amqp.ActionDelete:
		return w.DeleteTransaction(ctx, msg.ID)
	default:
		return w.SyncTransaction(ctx, msg.ID, msg.Version)
	}
}

// SyncTransaction writes the stored state of transaction id to the mirror
// and marks that version synced. A transaction deleted in the meantime is
// removed from the mirror instead.
func (w *SyncWorker) SyncTransaction(ctx context.Context, id, version int64) error {
	tx, err := w.storage.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Transaction no longer exists, removing from mirror", applog.FieldTransactionID, id)
		return w.DeleteTransaction(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	if tx.Version > version {
		slog.DebugContext(ctx, "Newer version stored, syncing it instead",
			applog.FieldTransactionID, id,
			"message_version", version,
			"stored_version", tx.Version)
	}

	data, err := w.exportData(ctx, tx)
	if err != nil {
		return err
	}
	if err := w.ensureHeader(ctx, data.Fields); err != nil {
		return fmt.Errorf("ensure sheet header: %w", err)
	}

	cells := append([]string{strconv.FormatInt(tx.ID, 10)}, export.Rows(data)[0]...)
	if err := w.mirror.Upsert(ctx, tx.ID, cells); err != nil {
		return fmt.Errorf("write transaction to mirror: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, tx.ID, tx.Version); err != nil {
		// The row is mirrored; the next sweep rewrites it.
		slog.ErrorContext(ctx, "Failed to mark as synced", applog.FieldTransactionID, id, applog.FieldError, err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		applog.FieldTransactionID, tx.ID,
		"version", tx.Version,
		"name", tx.Name,
		"liquid_value", tx.Balance.LiquidValue.String())
	return nil
}

// DeleteTransaction removes transaction id from the mirror
func (w *SyncWorker) DeleteTransaction(ctx context.Context, id int64) error {
	if err := w.mirror.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction from mirror: %w", err)
	}
	slog.InfoContext(ctx, "Successfully deleted transaction from mirror", applog.FieldTransactionID, id)
	return nil
}

func (w *SyncWorker) exportData(ctx context.Context, tx core.Transaction) (export.Data, error) {
	cats, err := w.storage.CategoryIndex(ctx)
	if err != nil {
		return export.Data{}, fmt.Errorf("load categories: %w", err)
	}
	accounts, err := w.storage.ListAccounts(ctx)
	if err != nil {
		return export.Data{}, fmt.Errorf("load accounts: %w", err)
	}
	fields, err := w.storage.ListCustomFields(ctx)
	if err != nil {
		return export.Data{}, fmt.Errorf("load custom fields: %w", err)
	}
	idx := make(map[int64]core.Account, len(accounts))
	for _, a := range accounts {
		idx[a.ID] = a
	}
	return export.Data{
		Transactions: []core.Transaction{tx},
		Categories:   cats,
		Accounts:     idx,
		Fields:       fields,
	}, nil
}

// ensureHeader rewrites the header row when the custom fields changed.
func (w *SyncWorker) ensureHeader(ctx context.Context, fields []core.CustomField) error {
	header := append([]string{"ID"}, export.Headers(fields)...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if slices.Equal(w.header, header) {
		return nil
	}
	if err := w.mirror.EnsureHeader(ctx, header); err != nil {
		return err
	}
	w.header = header
	return nil
}
