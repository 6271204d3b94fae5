// Package core holds the billing domain model and the date arithmetic the
// recurrence engine is built on.
//
// This file implements period stepping with month-length clamping. Stepping
// is dispatched through a per-frequency registry so a new frequency only
// needs a registry entry, not changes to the generator.
package core

import (
	"fmt"
	"time"
)

// Clock supplies the current instant. The system clock is the only
// production implementation; tests substitute fixed instants.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// periodMonths maps each frequency to its length in months. All supported
// frequencies are whole-month multiples, so one clamped month-stepping
// routine covers them all.
var periodMonths = map[Frequency]int{
	Monthly:   1,
	Quarterly: 3,
	Yearly:    12,
}

// AddPeriods returns d advanced by n periods of the given frequency.
//
// Day-of-month is clamped to the last valid day of the target month:
// Jan 31 + 1 month is Feb 28 (Feb 29 in leap years), never an overflow into
// March. Yearly steps preserve month and day except Feb 29, which clamps to
// Feb 28 on non-leap years. n may be negative.
func AddPeriods(d Date, f Frequency, n int) (Date, error) {
	if d.IsZero() {
		return Date{}, ErrInvalidDate
	}
	months, ok := periodMonths[f]
	if !ok {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
	}
	return addMonthsClamped(d, months*n), nil
}

// PeriodsBetween returns the number of whole periods between a and b,
// floor-rounded: the largest n >= 0 such that AddPeriods(a, f, n) does not
// exceed b. Returns 0 when b is before a.
func PeriodsBetween(a, b Date, f Frequency) (int, error) {
	if a.IsZero() || b.IsZero() {
		return 0, ErrInvalidDate
	}
	months, ok := periodMonths[f]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
	}
	if b.Before(a.Time) {
		return 0, nil
	}

	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	n := ((by-ay)*12 + int(bm) - int(am)) / months
	if n < 0 {
		n = 0
	}
	// The month-count estimate can overshoot by one when the day-of-month
	// has not been reached yet; walk it back onto the floor.
	for n > 0 {
		if c := addMonthsClamped(a, months*n); !c.After(b.Time) {
			break
		}
		n--
	}
	for {
		if c := addMonthsClamped(a, months*(n+1)); c.After(b.Time) {
			break
		}
		n++
	}
	return n, nil
}

// addMonthsClamped advances d by the given number of calendar months,
// clamping the day to the length of the target month. It deliberately avoids
// time.AddDate, which normalizes Jan 31 + 1 month into Mar 2/3.
func addMonthsClamped(d Date, months int) Date {
	y, m, day := d.Date()
	total := y*12 + int(m) - 1 + months
	ty := total / 12
	tm := time.Month(total%12 + 1)
	if last := daysIn(ty, tm); day > last {
		day = last
	}
	return NewDate(ty, int(tm), day)
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
