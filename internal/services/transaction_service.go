package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/editmany"
	"saldo/internal/storage"
)

// ErrValidation marks failures caused by the caller's input.
var ErrValidation = errors.New("validation failed")

var ErrInvalidScope = errors.New("scope must be one, following or all")

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Scope selects which members of a repeat group an update or delete touches.
type Scope string

const (
	ScopeOne       Scope = "one"
	ScopeFollowing Scope = "following"
	ScopeAll       Scope = "all"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScopeOne, nil
	case ScopeOne, ScopeFollowing, ScopeAll:
		return sc, nil
	}
	return "", ErrInvalidScope
}

// Publisher announces changes to the sync worker.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, id, version int64) error
	PublishTransactionDelete(ctx context.Context, id int64) error
}

// TransactionService orchestrates transaction operations across SQLite and AMQP
type TransactionService struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
	now       func() time.Time
}

func NewTransactionService(storage *storage.SQLiteRepository, publisher Publisher) *TransactionService {
	return &TransactionService{
		storage:   storage,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *TransactionService) today() core.Date {
	return core.DateOf(s.now())
}

// catalog is the taxonomy transactions are checked and rendered against.
type catalog struct {
	categories []core.Category
	byID       map[int64]core.Category
	accounts   []core.Account
	accountIdx map[int64]core.Account
	fields     []core.CustomField
}

func loadCatalog(ctx context.Context, repo *storage.SQLiteRepository) (catalog, error) {
	var c catalog
	var err error
	if c.categories, err = repo.ListCategories(ctx); err != nil {
		return c, err
	}
	if c.accounts, err = repo.ListAccounts(ctx); err != nil {
		return c, err
	}
	if c.fields, err = repo.ListCustomFields(ctx); err != nil {
		return c, err
	}
	c.byID = make(map[int64]core.Category, len(c.categories))
	for _, cat := range c.categories {
		c.byID[cat.ID] = cat
	}
	c.accountIdx = make(map[int64]core.Account, len(c.accounts))
	for _, a := range c.accounts {
		c.accountIdx[a.ID] = a
	}
	return c, nil
}

func (c catalog) check(tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if _, ok := c.accountIdx[tx.AccountID]; !ok {
		return fmt.Errorf("%w: account %d", core.ErrNotFound, tx.AccountID)
	}
	return tx.ValidateReferences(c.byID, c.fields)
}

// normalize fills defaults the client may omit.
func (s *TransactionService) normalize(tx core.Transaction) core.Transaction {
	tx.Name = strings.TrimSpace(tx.Name)
	if tx.Frequency == "" {
		tx.Frequency = core.FrequencyNone
	}
	if tx.Frequency == core.FrequencyNone {
		tx.RepeatSettings = nil
		tx.RepeatGroupID = ""
	}
	if tx.RegistrationDate.IsZero() {
		tx.RegistrationDate = s.today()
	}
	tx = s.confirmation(tx)
	if tx.Tags == nil {
		tx.Tags = []core.TagRef{}
	}
	if tx.CustomFields == nil {
		tx.CustomFields = []core.CustomFieldValue{}
	}
	return tx
}

// confirmation keeps IsConfirmed and ConfirmationDate consistent.
func (s *TransactionService) confirmation(tx core.Transaction) core.Transaction {
	switch {
	case !tx.IsConfirmed:
		tx.ConfirmationDate = nil
	case tx.ConfirmationDate == nil || tx.ConfirmationDate.IsZero():
		d := s.today()
		tx.ConfirmationDate = &d
	}
	return tx
}

// Create validates tx, expands installments and saves every occurrence in
// one database transaction. A sync message is published per stored row.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) ([]core.Transaction, error) {
	tx = s.normalize(tx)
	tx.ID, tx.Version = 0, 0
	balance, err := tx.Balance.WithLiquid()
	if err != nil {
		return nil, invalid(err)
	}
	tx.Balance = balance

	cat, err := loadCatalog(ctx, s.storage)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := cat.check(tx); err != nil {
		return nil, invalid(err)
	}

	items, err := core.ExpandInstallments(tx, uuid.NewString())
	if err != nil {
		return nil, invalid(err)
	}
	created, err := s.storage.CreateTransactions(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"name", tx.Name,
		"type", tx.Type,
		"frequency", tx.Frequency,
		"occurrences", len(created),
		"liquid_value", tx.Balance.LiquidValue.String())
	s.publishSync(ctx, created)
	return created, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, f)
}

// members returns target plus the other group members scope reaches.
func (s *TransactionService) members(ctx context.Context, target core.Transaction, scope Scope) ([]core.Transaction, error) {
	if scope == ScopeOne || target.RepeatGroupID == "" {
		return []core.Transaction{target}, nil
	}
	group, err := s.storage.ListGroup(ctx, target.RepeatGroupID)
	if err != nil {
		return nil, err
	}
	if scope == ScopeAll {
		return group, nil
	}
	out := group[:0]
	for _, m := range group {
		if m.ID == target.ID || position(m) >= position(target) {
			out = append(out, m)
		}
	}
	return out, nil
}

func position(tx core.Transaction) int {
	if tx.RepeatSettings == nil {
		return 0
	}
	return tx.RepeatSettings.CurrentCount
}

// shared copies what every member of a group has in common.
func shared(dst, src core.Transaction) core.Transaction {
	dst.Type = src.Type
	dst.Name = src.Name
	dst.Balance = src.Balance
	dst.CategoryID = src.CategoryID
	dst.SubCategoryID = src.SubCategoryID
	dst.AccountID = src.AccountID
	dst.Tags = slices.Clone(src.Tags)
	dst.CustomFields = slices.Clone(src.CustomFields)
	return dst
}

// Update replaces the editable fields of transaction id with those of in.
// With a group scope the same values reach the other members and a moved
// due date shifts them by the same number of intervals. in.Version, when
// set, must match the stored version.
func (s *TransactionService) Update(ctx context.Context, id int64, in core.Transaction, scope Scope) ([]core.Transaction, error) {
	current, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Version != 0 && in.Version != current.Version {
		return nil, fmt.Errorf("update transaction %d: %w", id, core.ErrVersionConflict)
	}

	next := shared(current, in)
	next.Name = strings.TrimSpace(next.Name)
	next.DueDate = in.DueDate
	if !in.RegistrationDate.IsZero() {
		next.RegistrationDate = in.RegistrationDate
	}
	next.IsConfirmed = in.IsConfirmed
	next.ConfirmationDate = in.ConfirmationDate
	next = s.confirmation(next)
	if next.Balance, err = next.Balance.WithLiquid(); err != nil {
		return nil, invalid(err)
	}
	if next.Tags == nil {
		next.Tags = []core.TagRef{}
	}

	cat, err := loadCatalog(ctx, s.storage)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := cat.check(next); err != nil {
		return nil, invalid(err)
	}

	members, err := s.members(ctx, current, scope)
	if err != nil {
		return nil, fmt.Errorf("list group: %w", err)
	}
	var stepper core.Stepper
	moved := !next.DueDate.Equal(current.DueDate.Time) && current.RepeatSettings != nil
	if moved {
		if stepper, err = core.StepperFor(current.RepeatSettings.Interval); err != nil {
			return nil, invalid(err)
		}
	}

	batch := make([]core.Transaction, 0, len(members))
	for _, m := range members {
		if m.ID == current.ID {
			batch = append(batch, next)
			continue
		}
		m = shared(m, next)
		if moved && m.RepeatSettings != nil {
			m.DueDate = stepper.Nth(next.DueDate, m.RepeatSettings.CurrentCount-current.RepeatSettings.CurrentCount)
		}
		batch = append(batch, m)
	}

	updated, err := s.storage.UpdateTransactions(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction updated", "id", id, "scope", scope, "affected", len(updated))
	s.publishSync(ctx, updated)
	return updated, nil
}

// Delete removes transaction id and, depending on scope, its group members.
// It returns the removed rows.
func (s *TransactionService) Delete(ctx context.Context, id int64, scope Scope) ([]core.Transaction, error) {
	current, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, current, scope)
	if err != nil {
		return nil, fmt.Errorf("list group: %w", err)
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	if current.Frequency == core.FrequencyRecurring && current.RepeatGroupID != "" {
		mark, err := s.seriesMark(ctx, current, scope)
		if err != nil {
			return nil, fmt.Errorf("list group: %w", err)
		}
		if err := s.storage.DeleteOccurrences(ctx, ids, mark); err != nil {
			return nil, fmt.Errorf("delete transaction: %w", err)
		}
	} else if err := s.storage.DeleteTransactions(ctx, ids); err != nil {
		return nil, fmt.Errorf("delete transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "scope", scope, "affected", len(ids))
	for _, m := range members {
		s.publishDelete(ctx, m.ID)
	}
	return members, nil
}

// seriesMark keeps the recurring worker from re-creating deleted
// occurrences: it records the highest occurrence stored so far and, when
// the tail of the series goes, the last one that remains.
func (s *TransactionService) seriesMark(ctx context.Context, target core.Transaction, scope Scope) (storage.SeriesMark, error) {
	group, err := s.storage.ListGroup(ctx, target.RepeatGroupID)
	if err != nil {
		return storage.SeriesMark{}, err
	}
	mark := storage.SeriesMark{GroupID: target.RepeatGroupID}
	for _, m := range group {
		mark.LastCount = max(mark.LastCount, position(m))
	}
	if scope == ScopeFollowing {
		mark.EndCount = position(target) - 1
	}
	return mark, nil
}

// Confirm flips the confirmation state of one transaction. A zero date
// confirms as of today.
func (s *TransactionService) Confirm(ctx context.Context, id int64, confirmed bool, date core.Date) (core.Transaction, error) {
	tx, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.IsConfirmed = confirmed
	tx.ConfirmationDate = nil
	if confirmed && !date.IsZero() {
		tx.ConfirmationDate = &date
	}
	tx = s.confirmation(tx)

	updated, err := s.storage.UpdateTransactions(ctx, []core.Transaction{tx})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("confirm transaction: %w", err)
	}
	s.publishSync(ctx, updated)
	return updated[0], nil
}

func (s *TransactionService) selection(ctx context.Context, ids []int64) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, invalid(editmany.ErrNoSelection)
	}
	ids = slices.Compact(slices.Sorted(slices.Values(ids)))
	txs, err := s.storage.GetTransactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(txs) != len(ids) {
		found := make(map[int64]bool, len(txs))
		for _, tx := range txs {
			found[tx.ID] = true
		}
		var missing []int64
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("transactions %v: %w", missing, core.ErrNotFound)
	}
	return txs, nil
}

// EditSummary reports which fields the selected transactions share.
func (s *TransactionService) EditSummary(ctx context.Context, ids []int64) (editmany.Summary, error) {
	txs, err := s.selection(ctx, ids)
	if err != nil {
		return editmany.Summary{}, err
	}
	return editmany.Summarize(txs), nil
}

// EditMany resolves req into a patch and applies it to every selected
// transaction. Either every record validates and is written, or nothing is.
func (s *TransactionService) EditMany(ctx context.Context, req editmany.Request) ([]core.Transaction, error) {
	patch, err := editmany.Resolve(req)
	if err != nil {
		return nil, invalid(err)
	}
	txs, err := s.selection(ctx, req.IDs)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return txs, nil
	}

	cat, err := loadCatalog(ctx, s.storage)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	today := s.today()
	batch := make([]core.Transaction, 0, len(txs))
	var errs []error
	for _, tx := range txs {
		next, err := patch.Apply(tx, cat.byID, today)
		if err == nil {
			if err = cat.check(next); err != nil {
				err = fmt.Errorf("transaction %d: %w", tx.ID, err)
			}
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch = append(batch, next)
	}
	if len(errs) > 0 {
		return nil, invalid(errors.Join(errs...))
	}

	updated, err := s.storage.UpdateTransactions(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("save edits: %w", err)
	}
	slog.InfoContext(ctx, "Edit-many applied", "count", len(updated))
	s.publishSync(ctx, updated)
	return updated, nil
}

// MonthSummary aggregates the transactions due in year/month.
func (s *TransactionService) MonthSummary(ctx context.Context, year, month int) (core.MonthOverview, error) {
	from := core.NewDate(year, month, 1)
	to := core.Date{Time: from.AddDate(0, 1, -1)}
	txs, err := s.storage.ListTransactions(ctx, core.Filter{From: from, To: to})
	if err != nil {
		return core.MonthOverview{}, err
	}
	cats, err := s.storage.CategoryIndex(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return core.Summarize(year, month, txs, cats), nil
}

func (s *TransactionService) publishSync(ctx context.Context, txs []core.Transaction) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return
	}
	for _, tx := range txs {
		if err := s.publisher.PublishTransactionSync(ctx, tx.ID, tx.Version); err != nil {
			// The row stays pending and is picked up by the worker sweep.
			slog.ErrorContext(ctx, "Failed to publish sync message", "id", tx.ID, "error", err)
		}
	}
}

func (s *TransactionService) publishDelete(ctx context.Context, id int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message")
		return
	}
	if err := s.publisher.PublishTransactionDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
	}
}
