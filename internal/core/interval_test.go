package core

import "testing"

func TestSteppers(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		start    Date
		n        int
		want     string
	}{
		{"daily", Daily, NewDate(2025, 12, 31), 1, "2026-01-01"},
		{"weekly", Weekly, NewDate(2025, 1, 1), 2, "2025-01-15"},
		{"biweekly", Biweekly, NewDate(2025, 2, 20), 1, "2025-03-06"},
		{"monthly clamps to february", Monthly, NewDate(2025, 1, 31), 1, "2025-02-28"},
		{"monthly keeps anchor day", Monthly, NewDate(2025, 1, 31), 2, "2025-03-31"},
		{"monthly leap year", Monthly, NewDate(2024, 1, 30), 1, "2024-02-29"},
		{"monthly across year", Monthly, NewDate(2025, 11, 15), 3, "2026-02-15"},
		{"quarterly", Quarterly, NewDate(2025, 11, 30), 1, "2026-02-28"},
		{"semiannual", Semiannual, NewDate(2025, 8, 31), 1, "2026-02-28"},
		{"yearly leap day", Yearly, NewDate(2024, 2, 29), 1, "2025-02-28"},
		{"zero is start", Monthly, NewDate(2025, 5, 5), 0, "2025-05-05"},
		{"backwards", Monthly, NewDate(2025, 1, 31), -1, "2024-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := StepperFor(tt.interval)
			if err != nil {
				t.Fatalf("StepperFor: %v", err)
			}
			if got := s.Nth(tt.start, tt.n).String(); got != tt.want {
				t.Fatalf("Nth(%s, %d) = %s, want %s", tt.start, tt.n, got, tt.want)
			}
		})
	}
}

func TestStepperForUnknown(t *testing.T) {
	if _, err := StepperFor("fortnightly"); err == nil {
		t.Fatal("expected error for unknown interval")
	}
	for _, i := range Intervals() {
		if _, err := StepperFor(i); err != nil {
			t.Fatalf("interval %s has no stepper", i)
		}
	}
}
