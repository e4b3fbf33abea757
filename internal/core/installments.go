package core

import (
	"errors"
	"fmt"
	"time"
)

var ErrSeriesComplete = errors.New("series complete")

// ExpandInstallments splits a repeated transaction into one transaction per
// installment, from InitialInstallment to Count. Each copy shares groupID and
// is due one interval after the previous one. Only the installment matching
// the template keeps its confirmation state; later ones start unconfirmed.
// Transactions that do not repeat are returned unchanged.
func ExpandInstallments(tpl Transaction, groupID string) ([]Transaction, error) {
	switch tpl.Frequency {
	case FrequencyRepeat:
	case FrequencyRecurring:
		tx := tpl
		rs := *tpl.RepeatSettings
		if rs.CurrentCount < 1 {
			rs.CurrentCount = 1
		}
		tx.RepeatSettings = &rs
		tx.RepeatGroupID = groupID
		return []Transaction{tx}, nil
	default:
		return []Transaction{tpl}, nil
	}

	rs := tpl.RepeatSettings
	if rs == nil {
		return nil, ErrInvalidRepeat
	}
	stepper, err := StepperFor(rs.Interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRepeat, err)
	}
	out := make([]Transaction, 0, rs.Count-rs.InitialInstallment+1)
	for i := rs.InitialInstallment; i <= rs.Count; i++ {
		tx := tpl
		settings := *rs
		settings.CurrentCount = i
		tx.RepeatSettings = &settings
		tx.RepeatGroupID = groupID
		tx.DueDate = stepper.Nth(tpl.DueDate, i-rs.InitialInstallment)
		tx.Tags = append([]TagRef(nil), tpl.Tags...)
		tx.CustomFields = append([]CustomFieldValue(nil), tpl.CustomFields...)
		if i != rs.InitialInstallment {
			tx.IsConfirmed = false
			tx.ConfirmationDate = nil
		}
		out = append(out, tx)
	}
	return out, nil
}

// NextOccurrence builds the occurrence that follows latest in a recurring
// series anchored at anchor (the earliest stored occurrence, whose day of
// month is preserved). It returns ErrSeriesComplete once Count is reached.
func NextOccurrence(anchor, latest Transaction) (Transaction, error) {
	if latest.Frequency != FrequencyRecurring || latest.RepeatSettings == nil || anchor.RepeatSettings == nil {
		return Transaction{}, ErrInvalidRepeat
	}
	rs := *latest.RepeatSettings
	if rs.Count > 0 && rs.CurrentCount >= rs.Count {
		return Transaction{}, ErrSeriesComplete
	}
	stepper, err := StepperFor(rs.Interval)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", ErrInvalidRepeat, err)
	}
	next := latest
	next.ID = 0
	next.Version = 0
	rs.CurrentCount++
	next.RepeatSettings = &rs
	next.DueDate = stepper.Nth(anchor.DueDate, rs.CurrentCount-anchor.RepeatSettings.CurrentCount)
	next.IsConfirmed = false
	next.ConfirmationDate = nil
	next.Tags = append([]TagRef(nil), latest.Tags...)
	next.CustomFields = append([]CustomFieldValue(nil), latest.CustomFields...)
	return next, nil
}

// IsDue reports whether an occurrence dated d should exist at now.
func IsDue(d Date, now time.Time) bool {
	return !d.After(DateOf(now).Time)
}
