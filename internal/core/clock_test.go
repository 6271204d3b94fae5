package core

import "testing"

func TestAddPeriodsClampsMonthEnd(t *testing.T) {
	cases := []struct {
		name string
		in   Date
		freq Frequency
		n    int
		want Date
	}{
		{"jan 31 plus one month", NewDate(2024, 1, 31), Monthly, 1, NewDate(2024, 2, 29)},
		{"jan 31 plus one month non-leap", NewDate(2025, 1, 31), Monthly, 1, NewDate(2025, 2, 28)},
		{"jan 31 plus two months", NewDate(2025, 1, 31), Monthly, 2, NewDate(2025, 3, 31)},
		{"mid-month unaffected", NewDate(2025, 1, 15), Monthly, 1, NewDate(2025, 2, 15)},
		{"quarterly nov 30", NewDate(2024, 11, 30), Quarterly, 1, NewDate(2025, 2, 28)},
		{"quarterly year rollover", NewDate(2024, 11, 15), Quarterly, 2, NewDate(2025, 5, 15)},
		{"yearly leap day", NewDate(2024, 2, 29), Yearly, 1, NewDate(2025, 2, 28)},
		{"yearly leap day to leap year", NewDate(2024, 2, 29), Yearly, 4, NewDate(2028, 2, 29)},
		{"zero periods", NewDate(2025, 6, 10), Monthly, 0, NewDate(2025, 6, 10)},
		{"negative step", NewDate(2025, 3, 31), Monthly, -1, NewDate(2025, 2, 28)},
		{"december rollover", NewDate(2025, 12, 31), Monthly, 1, NewDate(2026, 1, 31)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AddPeriods(tc.in, tc.freq, tc.n)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want.Time) {
				t.Fatalf("got %s, want %s", got.Format("2006-01-02"), tc.want.Format("2006-01-02"))
			}
		})
	}
}

func TestAddPeriodsRejectsInvalidInput(t *testing.T) {
	if _, err := AddPeriods(Date{}, Monthly, 1); err == nil {
		t.Fatal("expected error for zero date")
	}
	if _, err := AddPeriods(NewDate(2025, 1, 1), Frequency("weekly"), 1); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}

func TestPeriodsBetween(t *testing.T) {
	cases := []struct {
		name string
		a, b Date
		freq Frequency
		want int
	}{
		{"same day", NewDate(2025, 1, 15), NewDate(2025, 1, 15), Monthly, 0},
		{"one day short", NewDate(2025, 1, 15), NewDate(2025, 2, 14), Monthly, 0},
		{"exactly one month", NewDate(2025, 1, 15), NewDate(2025, 2, 15), Monthly, 1},
		{"three and a half months", NewDate(2025, 1, 15), NewDate(2025, 4, 30), Monthly, 3},
		{"b before a", NewDate(2025, 3, 1), NewDate(2025, 1, 1), Monthly, 0},
		{"quarterly", NewDate(2024, 1, 1), NewDate(2024, 12, 31), Quarterly, 3},
		{"yearly", NewDate(2020, 6, 1), NewDate(2025, 5, 31), Yearly, 4},
		// Clamped anchors: occurrence k of a Jan-31 rule lands on the
		// clamped day, so Feb 28 is already one full period.
		{"clamped anchor reached", NewDate(2025, 1, 31), NewDate(2025, 2, 28), Monthly, 1},
		{"clamped anchor not reached", NewDate(2025, 1, 31), NewDate(2025, 2, 27), Monthly, 0},
		{"clamped anchor long run", NewDate(2025, 1, 31), NewDate(2025, 4, 30), Monthly, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PeriodsBetween(tc.a, tc.b, tc.freq)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPeriodsBetweenRoundTripsAddPeriods(t *testing.T) {
	start := NewDate(2024, 1, 31)
	for n := 0; n < 48; n++ {
		stepped, err := AddPeriods(start, Monthly, n)
		if err != nil {
			t.Fatalf("AddPeriods(%d): %v", n, err)
		}
		back, err := PeriodsBetween(start, stepped, Monthly)
		if err != nil {
			t.Fatalf("PeriodsBetween(%d): %v", n, err)
		}
		if back != n {
			t.Fatalf("n=%d: round-trip gave %d", n, back)
		}
	}
}
