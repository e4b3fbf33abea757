package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"saldo/internal/core"
	"saldo/internal/storage"
)

// RecurringProcessor materialises the next occurrences of recurring series once they fall due
type RecurringProcessor struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
}

// NewRecurringProcessor creates a new recurring transaction processor
func NewRecurringProcessor(storage *storage.SQLiteRepository, publisher Publisher) *RecurringProcessor {
	return &RecurringProcessor{
		storage:   storage,
		publisher: publisher,
	}
}

// series groups the stored occurrences of one recurring transaction.
type series struct {
	anchor core.Transaction
	latest core.Transaction
}

func groupSeries(txs []core.Transaction) []series {
	idx := map[string]int{}
	var out []series
	for _, tx := range txs {
		if tx.RepeatSettings == nil {
			continue
		}
		i, ok := idx[tx.RepeatGroupID]
		if !ok {
			idx[tx.RepeatGroupID] = len(out)
			out = append(out, series{anchor: tx, latest: tx})
			continue
		}
		if tx.RepeatSettings.CurrentCount < out[i].anchor.RepeatSettings.CurrentCount {
			out[i].anchor = tx
		}
		if tx.RepeatSettings.CurrentCount > out[i].latest.RepeatSettings.CurrentCount {
			out[i].latest = tx
		}
	}
	return out
}

// resume applies mark to s: numbering continues after the highest
// occurrence ever stored, and a series cut short ends where it was cut.
func (s series) resume(mark storage.SeriesMark) series {
	rs := *s.latest.RepeatSettings
	rs.CurrentCount = max(rs.CurrentCount, mark.LastCount)
	if mark.EndCount > 0 && (rs.Count == 0 || mark.EndCount < rs.Count) {
		rs.Count = mark.EndCount
	}
	s.latest.RepeatSettings = &rs
	return s
}

// dueOccurrences returns the occurrences of s that should exist at now and
// are not stored yet.
func dueOccurrences(s series, now time.Time) ([]core.Transaction, error) {
	var out []core.Transaction
	latest := s.latest
	for {
		next, err := core.NextOccurrence(s.anchor, latest)
		if errors.Is(err, core.ErrSeriesComplete) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if !core.IsDue(next.DueDate, now) {
			return out, nil
		}
		out = append(out, next)
		latest = next
	}
}

// ProcessDue creates every recurring occurrence due at now. Missed runs are
// caught up, one occurrence per elapsed interval.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	recurring, err := p.storage.ListRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list recurring transactions: %w", err)
	}
	marks, err := p.storage.SeriesMarks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read recurring series marks: %w", err)
	}
	all := groupSeries(recurring)

	slog.InfoContext(ctx, "Processing recurring transactions",
		"series", len(all),
		"processing_date", now.Format(time.DateOnly))

	processedCount := 0
	for _, s := range all {
		if mark, ok := marks[s.latest.RepeatGroupID]; ok {
			s = s.resume(mark)
		}
		due, err := dueOccurrences(s, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to compute next occurrence",
				"group", s.latest.RepeatGroupID,
				"error", err)
			continue
		}
		if len(due) == 0 {
			continue
		}

		created, err := p.storage.CreateTransactions(ctx, due)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create recurring occurrences",
				"group", s.latest.RepeatGroupID,
				"name", s.latest.Name,
				"error", err)
			continue
		}
		for _, tx := range created {
			p.publish(ctx, tx)
			slog.InfoContext(ctx, "Created recurring occurrence",
				"group", tx.RepeatGroupID,
				"name", tx.Name,
				"occurrence", tx.InstallmentLabel(),
				"due_date", tx.DueDate.String(),
				"liquid_value", tx.Balance.LiquidValue.String())
		}
		processedCount += len(created)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"processed", processedCount,
		"total_checked", len(all))

	return processedCount, nil
}

func (p *RecurringProcessor) publish(ctx context.Context, tx core.Transaction) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishTransactionSync(ctx, tx.ID, tx.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", tx.ID, "error", err)
	}
}
