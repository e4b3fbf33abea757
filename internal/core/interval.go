package core

import (
	"fmt"
	"time"
)

const (
	Daily      Interval = "daily"
	Weekly     Interval = "weekly"
	Biweekly   Interval = "biweekly"
	Monthly    Interval = "monthly"
	Quarterly  Interval = "quarterly"
	Semiannual Interval = "semiannual"
	Yearly     Interval = "yearly"
)

type Interval string

// Stepper computes occurrence dates for one interval type. Occurrence n of a
// series anchored at start is Nth(start, n); n=0 is the start itself.
type Stepper interface {
	Nth(start Date, n int) Date
}

// DayStepper advances by a fixed number of days.
type DayStepper struct{ Days int }

func (s DayStepper) Nth(start Date, n int) Date {
	return Date{Time: start.AddDate(0, 0, s.Days*n)}
}

// MonthStepper advances by whole months keeping the anchor day, clamped to
// the last day of shorter months (Jan 31 -> Feb 28 -> Mar 31).
type MonthStepper struct{ Months int }

func (s MonthStepper) Nth(start Date, n int) Date {
	total := int(start.Month()) - 1 + s.Months*n
	year := start.Year() + total/12
	month := total%12 + 1
	if total < 0 && total%12 != 0 {
		year--
		month += 12
	}
	day := start.Day()
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

func lastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// steppers maps intervals to their corresponding strategy.
var steppers = map[Interval]Stepper{
	Daily:      DayStepper{Days: 1},
	Weekly:     DayStepper{Days: 7},
	Biweekly:   DayStepper{Days: 14},
	Monthly:    MonthStepper{Months: 1},
	Quarterly:  MonthStepper{Months: 3},
	Semiannual: MonthStepper{Months: 6},
	Yearly:     MonthStepper{Months: 12},
}

// StepperFor returns the strategy for an interval.
func StepperFor(i Interval) (Stepper, error) {
	s, ok := steppers[i]
	if !ok {
		return nil, fmt.Errorf("unknown interval: %q", i)
	}
	return s, nil
}

// Intervals lists the supported intervals in ascending length.
func Intervals() []Interval {
	return []Interval{Daily, Weekly, Biweekly, Monthly, Quarterly, Semiannual, Yearly}
}
