package services

import (
	"context"
	"fmt"
	"time"

	"fatture/internal/core"
	"fatture/internal/storage"

	"github.com/shopspring/decimal"
)

// ProjectionConfig carries the estimation knobs. The percentages compound
// per future month-offset.
type ProjectionConfig struct {
	GrowthRatePct    float64
	InflationRatePct float64
	LookbackMonths   int
}

func DefaultProjectionConfig() ProjectionConfig {
	return ProjectionConfig{
		GrowthRatePct:    5.0,
		InflationRatePct: 2.0,
		LookbackMonths:   6,
	}
}

// ProjectionSnapshot is the data a projection is computed from. The engine
// fetches it once per request; BuildProjection is pure over it.
type ProjectionSnapshot struct {
	PaidEntries []core.LedgerEntry
	ActiveRules []core.RecurrenceRule
}

// ProjectionEngine blends historical ledger facts with forward estimates
// from active recurrence rules. Read-only.
type ProjectionEngine struct {
	repo storage.Repository
	cfg  ProjectionConfig
}

func NewProjectionEngine(repo storage.Repository, cfg ProjectionConfig) *ProjectionEngine {
	if cfg.LookbackMonths < 1 {
		cfg.LookbackMonths = DefaultProjectionConfig().LookbackMonths
	}
	return &ProjectionEngine{repo: repo, cfg: cfg}
}

// Project returns one ProjectionPoint per month in
// [asOf - monthsBack, asOf + monthsForward].
func (e *ProjectionEngine) Project(ctx context.Context, orgID string, asOf core.Date, monthsBack, monthsForward int) ([]core.ProjectionPoint, error) {
	if orgID == "" {
		return nil, core.ErrEmptyOrganization
	}
	if err := asOf.Validate(); err != nil {
		return nil, err
	}
	if monthsBack < 0 || monthsForward < 0 {
		return nil, fmt.Errorf("negative projection window (back=%d, forward=%d)", monthsBack, monthsForward)
	}

	// The snapshot reaches back far enough to cover both the displayed
	// historical months and the trailing-average lookback.
	reach := monthsBack
	if e.cfg.LookbackMonths-1 > reach {
		reach = e.cfg.LookbackMonths - 1
	}
	from := startOfMonth(shiftMonth(asOf, -reach))
	to := endOfMonth(asOf)

	entries, err := e.repo.QueryEntries(ctx, orgID, storage.EntryFilter{
		Statuses: []core.EntryStatus{core.EntryPaid},
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query paid entries: %v", core.ErrStorageUnavailable, err)
	}
	rules, err := e.repo.ListActiveRules(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: list active rules: %v", core.ErrStorageUnavailable, err)
	}

	snapshot := ProjectionSnapshot{PaidEntries: entries, ActiveRules: rules}
	return BuildProjection(snapshot, asOf, monthsBack, monthsForward, e.cfg), nil
}

// BuildProjection computes the month series from an explicit snapshot.
//
// Months up to and including the asOf month aggregate actual paid entries
// and are never estimated. Future months estimate income as the
// monthly-normalized sum of active invoice-rule amounts compounded by the
// growth rate, and expense as the trailing lookback average of paid expenses
// compounded by the inflation rate.
func BuildProjection(snapshot ProjectionSnapshot, asOf core.Date, monthsBack, monthsForward int, cfg ProjectionConfig) []core.ProjectionPoint {
	if cfg.LookbackMonths < 1 {
		cfg.LookbackMonths = DefaultProjectionConfig().LookbackMonths
	}
	current := monthIndex(asOf)

	type monthTotals struct {
		income  int64
		expense int64
	}
	actuals := make(map[int]monthTotals)
	for _, entry := range snapshot.PaidEntries {
		if entry.Status != core.EntryPaid {
			continue
		}
		idx := monthIndex(entry.DueDate)
		totals := actuals[idx]
		if entry.Kind == core.KindInvoice {
			totals.income += entry.Amount.Cents
		} else {
			totals.expense += entry.Amount.Cents
		}
		actuals[idx] = totals
	}

	// Trailing average over the lookback window ending at the current
	// month; months without expenses count as zero.
	var lookbackSum int64
	for i := 0; i < cfg.LookbackMonths; i++ {
		lookbackSum += actuals[current-i].expense
	}
	expenseBase := decimal.NewFromInt(lookbackSum).Div(decimal.NewFromInt(int64(cfg.LookbackMonths)))

	growth := decimal.NewFromFloat(1 + cfg.GrowthRatePct/100)
	inflation := decimal.NewFromFloat(1 + cfg.InflationRatePct/100)

	points := make([]core.ProjectionPoint, 0, monthsBack+monthsForward+1)
	for offset := -monthsBack; offset <= monthsForward; offset++ {
		idx := current + offset
		point := core.ProjectionPoint{Period: periodLabel(idx)}

		if offset <= 0 {
			totals := actuals[idx]
			point.IsHistorical = true
			point.IsCurrent = offset == 0
			point.Income = core.Money{Cents: totals.income}
			point.Expense = core.Money{Cents: totals.expense}
		} else {
			factor := growth.Pow(decimal.NewFromInt(int64(offset)))
			income := incomeBaseFor(snapshot.ActiveRules, idx).Mul(factor)
			expense := expenseBase.Mul(inflation.Pow(decimal.NewFromInt(int64(offset))))
			point.IsProjected = true
			point.Income = core.Money{Cents: income.Round(0).IntPart()}
			point.Expense = core.Money{Cents: expense.Round(0).IntPart()}
		}
		point.Net = core.Money{Cents: point.Income.Cents - point.Expense.Cents}
		points = append(points, point)
	}
	return points
}

// incomeBaseFor sums the monthly share of every invoice rule that is live in
// the given month: monthly rules contribute their full amount, quarterly a
// third, yearly a twelfth.
func incomeBaseFor(rules []core.RecurrenceRule, idx int) decimal.Decimal {
	base := decimal.Zero
	for _, rule := range rules {
		if rule.Kind != core.KindInvoice || rule.Status != core.RuleActive {
			continue
		}
		if monthIndex(rule.StartDate) > idx {
			continue
		}
		if !rule.EndDate.IsEmpty() && monthIndex(rule.EndDate) < idx {
			continue
		}
		amount := decimal.NewFromInt(rule.Amount.Cents)
		switch rule.Frequency {
		case core.Monthly:
			base = base.Add(amount)
		case core.Quarterly:
			base = base.Add(amount.Div(decimal.NewFromInt(3)))
		case core.Yearly:
			base = base.Add(amount.Div(decimal.NewFromInt(12)))
		}
	}
	return base
}

// monthIndex linearizes year+month so month arithmetic is plain integers.
func monthIndex(d core.Date) int {
	y, m, _ := d.Date()
	return y*12 + int(m) - 1
}

func periodLabel(idx int) string {
	return fmt.Sprintf("%04d-%02d", idx/12, idx%12+1)
}

func shiftMonth(d core.Date, months int) core.Date {
	idx := monthIndex(d) + months
	return core.NewDate(idx/12, idx%12+1, 1)
}

func startOfMonth(d core.Date) core.Date {
	y, m, _ := d.Date()
	return core.NewDate(y, int(m), 1)
}

func endOfMonth(d core.Date) core.Date {
	y, m, _ := d.Date()
	return core.Date{Time: time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)}
}
