package services

import (
	"context"
	"slices"
	"testing"
	"time"

	"saldo/internal/core"
)

func (f fixture) recurring(name string, due core.Date, count int) core.Transaction {
	tx := f.expense(name, "15", due)
	tx.Frequency = core.FrequencyRecurring
	tx.RepeatSettings = &core.RepeatSettings{Count: count, Interval: core.Monthly}
	return tx
}

func TestNewRecurringProcessor(t *testing.T) {
	processor := NewRecurringProcessor(nil, nil)
	if processor == nil {
		t.Fatal("NewRecurringProcessor should return non-nil processor")
	}
	if _, err := processor.ProcessDue(context.Background(), time.Now()); err == nil {
		t.Error("expected error without storage")
	}
}

func TestProcessDueCatchesUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	created, err := svc.Create(ctx, f.recurring("Streaming", date(2025, 1, 31), 0))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(created) != 1 || created[0].RepeatSettings.CurrentCount != 1 {
		t.Fatalf("recurring create = %+v, want one first occurrence", created)
	}

	pub := &fakePublisher{}
	processor := NewRecurringProcessor(f.repo, pub)

	n, err := processor.ProcessDue(ctx, time.Date(2025, 4, 2, 3, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ProcessDue() created %d, want 2", n)
	}
	if len(pub.synced) != 2 {
		t.Errorf("published %d sync messages, want 2", len(pub.synced))
	}

	group, err := f.repo.ListGroup(ctx, created[0].RepeatGroupID)
	if err != nil {
		t.Fatalf("ListGroup() error = %v", err)
	}
	wantDue := []core.Date{date(2025, 1, 31), date(2025, 2, 28), date(2025, 3, 31)}
	if len(group) != len(wantDue) {
		t.Fatalf("series has %d occurrences, want %d", len(group), len(wantDue))
	}
	for i, tx := range group {
		if !tx.DueDate.Equal(wantDue[i].Time) {
			t.Errorf("occurrence %d due %s, want %s", i+1, tx.DueDate, wantDue[i])
		}
		if tx.RepeatSettings.CurrentCount != i+1 {
			t.Errorf("occurrence %d current count = %d", i+1, tx.RepeatSettings.CurrentCount)
		}
	}

	// A second run on the same day is a no-op.
	if n, err = processor.ProcessDue(ctx, time.Date(2025, 4, 2, 4, 0, 0, 0, time.UTC)); err != nil || n != 0 {
		t.Errorf("second ProcessDue() = %d, %v, want 0", n, err)
	}
}

func TestProcessDueStopsAtCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	if _, err := svc.Create(ctx, f.recurring("Course", date(2025, 1, 10), 2)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	processor := NewRecurringProcessor(f.repo, nil)

	n, err := processor.ProcessDue(ctx, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ProcessDue() created %d, want 1", n)
	}
}

func TestProcessDueSkipsRepeatGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(nil, clock)

	if _, err := svc.Create(ctx, f.repeated("Laptop", date(2025, 1, 10), 3)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	n, err := NewRecurringProcessor(f.repo, nil).ProcessDue(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if n != 0 {
		t.Errorf("ProcessDue() created %d for an installment plan, want 0", n)
	}
}

func TestDeletedOccurrencesStayDeleted(t *testing.T) {
	march := time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		delete int // index into the series, 0 = January
		scope  Scope
		// occurrences created by a run in March and then in June
		wantMarch, wantJune int
		wantCounts          []int
	}{
		{"following cuts the series", 1, ScopeFollowing, 0, 0, []int{1}},
		{"latest alone is skipped", 2, ScopeOne, 0, 3, []int{1, 2, 4, 5, 6}},
		{"earlier one leaves the rest running", 1, ScopeOne, 0, 3, []int{1, 3, 4, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			svc := f.service(nil, clock)

			created, err := svc.Create(ctx, f.recurring("Gym", date(2025, 1, 5), 0))
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			processor := NewRecurringProcessor(f.repo, nil)
			if n, err := processor.ProcessDue(ctx, march); err != nil || n != 2 {
				t.Fatalf("ProcessDue() = %d, %v, want 2", n, err)
			}

			group, err := f.repo.ListGroup(ctx, created[0].RepeatGroupID)
			if err != nil {
				t.Fatalf("ListGroup() error = %v", err)
			}
			if _, err := svc.Delete(ctx, group[tt.delete].ID, tt.scope); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}

			if n, err := processor.ProcessDue(ctx, march); err != nil || n != tt.wantMarch {
				t.Errorf("ProcessDue(March) after delete = %d, %v, want %d", n, err, tt.wantMarch)
			}
			if n, err := processor.ProcessDue(ctx, time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)); err != nil || n != tt.wantJune {
				t.Errorf("ProcessDue(June) = %d, %v, want %d", n, err, tt.wantJune)
			}

			group, err = f.repo.ListGroup(ctx, created[0].RepeatGroupID)
			if err != nil {
				t.Fatalf("ListGroup() error = %v", err)
			}
			var counts []int
			for _, tx := range group {
				counts = append(counts, tx.RepeatSettings.CurrentCount)
				if want := date(2025, tx.RepeatSettings.CurrentCount, 5); !tx.DueDate.Equal(want.Time) {
					t.Errorf("occurrence %d due %s, want %s", tx.RepeatSettings.CurrentCount, tx.DueDate, want)
				}
			}
			if !slices.Equal(counts, tt.wantCounts) {
				t.Errorf("occurrences = %v, want %v", counts, tt.wantCounts)
			}
		})
	}
}
