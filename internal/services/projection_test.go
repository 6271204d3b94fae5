package services

import (
	"context"
	"testing"

	"fatture/internal/core"
	"fatture/internal/storage"
)

func paidEntry(id string, kind core.EntryKind, due core.Date, cents int64) core.LedgerEntry {
	entry := core.LedgerEntry{
		ID:      id,
		OrgID:   "org1",
		Kind:    kind,
		Amount:  core.Money{Cents: cents},
		DueDate: due,
		Status:  core.EntryPaid,
	}
	if kind == core.KindInvoice {
		entry.ClientID = "client1"
	}
	return entry
}

func TestBuildProjectionHistoricalMonthsUseActuals(t *testing.T) {
	snapshot := ProjectionSnapshot{
		PaidEntries: []core.LedgerEntry{
			paidEntry("i1", core.KindInvoice, core.NewDate(2024, 3, 10), 100000),
			paidEntry("i2", core.KindInvoice, core.NewDate(2024, 4, 5), 120000),
			paidEntry("x1", core.KindExpense, core.NewDate(2024, 4, 12), 30000),
		},
	}

	points := BuildProjection(snapshot, core.NewDate(2024, 4, 20), 1, 0, DefaultProjectionConfig())
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}

	march := points[0]
	if march.Period != "2024-03" || !march.IsHistorical || march.IsCurrent || march.IsProjected {
		t.Fatalf("march flags wrong: %+v", march)
	}
	if march.Income.Cents != 100000 || march.Expense.Cents != 0 || march.Net.Cents != 100000 {
		t.Fatalf("march totals wrong: %+v", march)
	}

	april := points[1]
	if april.Period != "2024-04" || !april.IsHistorical || !april.IsCurrent {
		t.Fatalf("april flags wrong: %+v", april)
	}
	if april.Income.Cents != 120000 || april.Expense.Cents != 30000 || april.Net.Cents != 90000 {
		t.Fatalf("april totals wrong: %+v", april)
	}
}

func TestBuildProjectionFutureIncomeCompounds(t *testing.T) {
	rule := testRule()
	rule.Amount = core.Money{Cents: 100000}
	snapshot := ProjectionSnapshot{ActiveRules: []core.RecurrenceRule{rule}}

	cfg := ProjectionConfig{GrowthRatePct: 10, InflationRatePct: 0, LookbackMonths: 6}
	points := BuildProjection(snapshot, core.NewDate(2024, 4, 20), 0, 2, cfg)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}

	// 100000 * 1.1 and * 1.21, rounded to whole cents.
	if points[1].Income.Cents != 110000 {
		t.Fatalf("month +1 income %d, want 110000", points[1].Income.Cents)
	}
	if points[2].Income.Cents != 121000 {
		t.Fatalf("month +2 income %d, want 121000", points[2].Income.Cents)
	}
	for _, p := range points[1:] {
		if !p.IsProjected || p.IsHistorical {
			t.Fatalf("future point flags wrong: %+v", p)
		}
	}
}

func TestBuildProjectionNormalizesNonMonthlyRules(t *testing.T) {
	quarterly := testRule()
	quarterly.ID = "rq"
	quarterly.Frequency = core.Quarterly
	quarterly.Amount = core.Money{Cents: 30000}

	yearly := testRule()
	yearly.ID = "ry"
	yearly.Frequency = core.Yearly
	yearly.Amount = core.Money{Cents: 120000}

	snapshot := ProjectionSnapshot{ActiveRules: []core.RecurrenceRule{quarterly, yearly}}
	cfg := ProjectionConfig{GrowthRatePct: 0, InflationRatePct: 0, LookbackMonths: 6}

	points := BuildProjection(snapshot, core.NewDate(2024, 4, 20), 0, 1, cfg)
	// 30000/3 + 120000/12 = 10000 + 10000 per month.
	if points[1].Income.Cents != 20000 {
		t.Fatalf("normalized income %d, want 20000", points[1].Income.Cents)
	}
}

func TestBuildProjectionExpenseUsesLookbackAverage(t *testing.T) {
	snapshot := ProjectionSnapshot{
		PaidEntries: []core.LedgerEntry{
			paidEntry("x1", core.KindExpense, core.NewDate(2024, 3, 1), 30000),
			paidEntry("x2", core.KindExpense, core.NewDate(2024, 4, 1), 60000),
		},
	}
	// Two-month lookback: (30000 + 60000) / 2 = 45000, no inflation.
	cfg := ProjectionConfig{GrowthRatePct: 0, InflationRatePct: 0, LookbackMonths: 2}

	points := BuildProjection(snapshot, core.NewDate(2024, 4, 20), 0, 1, cfg)
	if points[1].Expense.Cents != 45000 {
		t.Fatalf("projected expense %d, want 45000", points[1].Expense.Cents)
	}
	if points[1].Net.Cents != -45000 {
		t.Fatalf("projected net %d, want -45000", points[1].Net.Cents)
	}
}

func TestBuildProjectionExcludesRulesOutsideMonth(t *testing.T) {
	notStarted := testRule()
	notStarted.ID = "r-later"
	notStarted.StartDate = core.NewDate(2025, 1, 1)

	expired := testRule()
	expired.ID = "r-expired"
	expired.EndDate = core.NewDate(2024, 4, 30)

	snapshot := ProjectionSnapshot{ActiveRules: []core.RecurrenceRule{notStarted, expired}}
	cfg := ProjectionConfig{GrowthRatePct: 0, InflationRatePct: 0, LookbackMonths: 6}

	points := BuildProjection(snapshot, core.NewDate(2024, 4, 20), 0, 1, cfg)
	// May 2024: r-later has not started, r-expired ended in April.
	if points[1].Income.Cents != 0 {
		t.Fatalf("income %d, want 0", points[1].Income.Cents)
	}
}

func TestProjectFetchesSnapshotFromRepository(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seedOrg(t, repo, "org1")
	seedRule(t, repo, testRule())
	if err := repo.InsertEntry(context.Background(), paidEntry("i1", core.KindInvoice, core.NewDate(2024, 4, 5), 50000)); err != nil {
		t.Fatalf("insert entry: %v", err)
	}

	engine := NewProjectionEngine(repo, ProjectionConfig{GrowthRatePct: 0, InflationRatePct: 0, LookbackMonths: 6})
	points, err := engine.Project(context.Background(), "org1", core.NewDate(2024, 4, 20), 1, 1)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[1].Income.Cents != 50000 {
		t.Fatalf("current month income %d, want 50000", points[1].Income.Cents)
	}
	// testRule is a 100.00 monthly invoice rule.
	if points[2].Income.Cents != 10000 {
		t.Fatalf("projected income %d, want 10000", points[2].Income.Cents)
	}
}

func TestProjectRejectsBadInput(t *testing.T) {
	engine := NewProjectionEngine(storage.NewMemoryRepository(), DefaultProjectionConfig())
	if _, err := engine.Project(context.Background(), "", core.NewDate(2024, 4, 20), 1, 1); err == nil {
		t.Fatal("expected error for empty org")
	}
	if _, err := engine.Project(context.Background(), "org1", core.NewDate(2024, 4, 20), -1, 1); err == nil {
		t.Fatal("expected error for negative window")
	}
}
