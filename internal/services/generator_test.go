package services

import (
	"errors"
	"testing"

	"fatture/internal/core"
)

func testRule() core.RecurrenceRule {
	return core.RecurrenceRule{
		ID:        "r1",
		OrgID:     "org1",
		EntityRef: "svc-hosting",
		ClientID:  "client1",
		Kind:      core.KindInvoice,
		Frequency: core.Monthly,
		Amount:    core.Money{Cents: 10000},
		StartDate: core.NewDate(2024, 1, 15),
		Status:    core.RuleActive,
	}
}

func dates(ds ...core.Date) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Format("2006-01-02")
	}
	return out
}

func assertDates(t *testing.T, got []core.Date, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", dates(got...), want)
	}
	for i, d := range got {
		if d.Format("2006-01-02") != want[i] {
			t.Fatalf("got %v, want %v", dates(got...), want)
		}
	}
}

func TestDueOccurrencesWithoutWatermark(t *testing.T) {
	g := NewGenerator(0)

	rule := testRule()
	got, err := g.DueOccurrences(rule, core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15")
}

func TestDueOccurrencesResumesAfterWatermark(t *testing.T) {
	g := NewGenerator(0)

	rule := testRule()
	rule.Watermark = core.NewDate(2024, 2, 15)
	got, err := g.DueOccurrences(rule, core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2024-03-15", "2024-04-15")
}

func TestDueOccurrencesWatermarkCurrent(t *testing.T) {
	g := NewGenerator(0)

	rule := testRule()
	rule.Watermark = core.NewDate(2024, 4, 15)
	got, err := g.DueOccurrences(rule, core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no occurrences, got %v", dates(got...))
	}
}

func TestDueOccurrencesMonthEndAnchoring(t *testing.T) {
	g := NewGenerator(0)

	// A Jan-31 rule clamps into February but returns to the 31st in March.
	rule := testRule()
	rule.StartDate = core.NewDate(2025, 1, 31)
	got, err := g.DueOccurrences(rule, core.NewDate(2025, 4, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2025-01-31", "2025-02-28", "2025-03-31")

	// Watermark on the clamped date resumes on the unclamped anchor.
	rule.Watermark = core.NewDate(2025, 2, 28)
	got, err = g.DueOccurrences(rule, core.NewDate(2025, 4, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2025-03-31")
}

func TestDueOccurrencesRespectsEndDate(t *testing.T) {
	g := NewGenerator(0)

	rule := testRule()
	rule.EndDate = core.NewDate(2024, 2, 1)
	got, err := g.DueOccurrences(rule, core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2024-01-15")
}

func TestDueOccurrencesSkipsInertRules(t *testing.T) {
	g := NewGenerator(0)

	ended := testRule()
	ended.Status = core.RuleEnded
	if got, err := g.DueOccurrences(ended, core.NewDate(2024, 4, 20)); err != nil || len(got) != 0 {
		t.Fatalf("ended rule: got %v, err %v", dates(got...), err)
	}

	future := testRule()
	future.StartDate = core.NewDate(2030, 1, 1)
	if got, err := g.DueOccurrences(future, core.NewDate(2024, 4, 20)); err != nil || len(got) != 0 {
		t.Fatalf("future rule: got %v, err %v", dates(got...), err)
	}
}

func TestDueOccurrencesQuarterlyAndYearly(t *testing.T) {
	g := NewGenerator(0)

	quarterly := testRule()
	quarterly.Frequency = core.Quarterly
	got, err := g.DueOccurrences(quarterly, core.NewDate(2024, 12, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2024-01-15", "2024-04-15", "2024-07-15", "2024-10-15")

	yearly := testRule()
	yearly.Frequency = core.Yearly
	got, err = g.DueOccurrences(yearly, core.NewDate(2026, 1, 14))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, "2024-01-15", "2025-01-15")
}

func TestDueOccurrencesOverflowCap(t *testing.T) {
	g := NewGenerator(12)

	rule := testRule()
	rule.StartDate = core.NewDate(2020, 1, 1)
	got, err := g.DueOccurrences(rule, core.NewDate(2024, 1, 1))
	if !errors.Is(err, core.ErrRecurrenceOverflow) {
		t.Fatalf("expected ErrRecurrenceOverflow, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no occurrences on overflow, got %v", dates(got...))
	}
}

func TestDueOccurrencesRejectsInvalidRule(t *testing.T) {
	g := NewGenerator(0)

	rule := testRule()
	rule.Amount = core.Money{}
	if _, err := g.DueOccurrences(rule, core.NewDate(2024, 4, 20)); !errors.Is(err, core.ErrInvalidRecurrenceRule) {
		t.Fatalf("expected ErrInvalidRecurrenceRule, got %v", err)
	}
}
