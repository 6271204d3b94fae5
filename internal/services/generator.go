// Package services implements the billing engine: recurrence generation,
// ledger materialization, cash-flow projection and defaulter detection.
package services

import (
	"fmt"

	"fatture/internal/core"
)

// DefaultOccurrenceCap bounds catch-up backlogs from malformed rules.
const DefaultOccurrenceCap = 1000

// Generator computes the occurrence dates of a recurrence rule that are due
// and not yet materialized.
type Generator struct {
	cap int
}

// NewGenerator creates a generator with the given occurrence cap per rule
// and run. A non-positive cap falls back to DefaultOccurrenceCap.
func NewGenerator(cap int) *Generator {
	if cap <= 0 {
		cap = DefaultOccurrenceCap
	}
	return &Generator{cap: cap}
}

// DueOccurrences returns the ordered occurrence dates of rule that are due
// at asOf and not covered by the watermark.
//
// The watermark is the last materialized occurrence, so generation resumes
// one period after it; with no watermark the start date itself is the first
// occurrence. Candidates are anchored on the start date (occurrence k is
// start + k periods) so a Jan-31 monthly rule produces Feb 28 and then
// Mar 31 instead of drifting to the 28th. Ended rules and rules starting
// after asOf yield nothing. Exceeding the cap returns ErrRecurrenceOverflow
// and no occurrences, so operators see the backlog instead of a silent
// truncation.
func (g *Generator) DueOccurrences(rule core.RecurrenceRule, asOf core.Date) ([]core.Date, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := asOf.Validate(); err != nil {
		return nil, err
	}
	if rule.Status == core.RuleEnded {
		return nil, nil
	}
	if rule.StartDate.After(asOf.Time) {
		return nil, nil
	}

	bound := asOf
	if !rule.EndDate.IsEmpty() && rule.EndDate.Before(asOf.Time) {
		bound = rule.EndDate
	}

	next := 0
	if !rule.Watermark.IsEmpty() {
		n, err := core.PeriodsBetween(rule.StartDate, rule.Watermark, rule.Frequency)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		next = n + 1
	}

	var out []core.Date
	for {
		candidate, err := core.AddPeriods(rule.StartDate, rule.Frequency, next)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if candidate.After(bound.Time) {
			break
		}
		if len(out) >= g.cap {
			return nil, fmt.Errorf("%w: rule %s exceeds %d occurrences", core.ErrRecurrenceOverflow, rule.ID, g.cap)
		}
		out = append(out, candidate)
		next++
	}
	return out, nil
}
