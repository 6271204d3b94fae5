package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fatture/internal/core"
	"fatture/internal/log"
	"fatture/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// EntryPublisher announces newly created ledger entries to the export
// pipeline. Publishing is best-effort; the export worker has its own backlog
// sweep for anything that is lost.
type EntryPublisher interface {
	PublishEntryCreated(ctx context.Context, entryID, orgID string) error
}

// RuleFailure is one rule the run could not fully process. The rule's
// watermark is untouched past the last committed occurrence, so the next
// scheduled run retries it safely.
type RuleFailure struct {
	OrgID  string
	RuleID string
	Err    error
}

// Summary reports one materialization run.
type Summary struct {
	EntriesCreated int
	CreatedByOrg   map[string]int
	RulesEnded     int
	OverdueMarked  int64
	Failures       []RuleFailure
}

// Materializer turns due recurrence occurrences into ledger entries exactly
// once per (rule, occurrence date).
type Materializer struct {
	repo        storage.Repository
	generator   *Generator
	publisher   EntryPublisher // optional
	parallelism int
}

func NewMaterializer(repo storage.Repository, generator *Generator, publisher EntryPublisher, parallelism int) *Materializer {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Materializer{
		repo:        repo,
		generator:   generator,
		publisher:   publisher,
		parallelism: parallelism,
	}
}

// Materialize processes every active organization. Organizations run in
// parallel up to the configured limit; a failing organization never aborts
// the others.
func (m *Materializer) Materialize(ctx context.Context, asOf core.Date) (Summary, error) {
	orgs, err := m.repo.ListActiveOrganizations(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: list organizations: %v", core.ErrStorageUnavailable, err)
	}

	slog.InfoContext(ctx, "Materialization run starting",
		log.FieldComponent, log.ComponentMaterializer,
		"organizations", len(orgs),
		log.FieldAsOf, asOf.Format("2006-01-02"))

	summary := Summary{CreatedByOrg: make(map[string]int)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(m.parallelism)
	for _, org := range orgs {
		org := org
		g.Go(func() error {
			orgSummary, err := m.MaterializeOrg(ctx, org.ID, asOf)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Whole-organization failure: report it, retry next tick.
				summary.Failures = append(summary.Failures, RuleFailure{OrgID: org.ID, Err: err})
				return nil
			}
			summary.EntriesCreated += orgSummary.EntriesCreated
			summary.RulesEnded += orgSummary.RulesEnded
			summary.OverdueMarked += orgSummary.OverdueMarked
			summary.Failures = append(summary.Failures, orgSummary.Failures...)
			if n := orgSummary.EntriesCreated; n > 0 {
				summary.CreatedByOrg[org.ID] = n
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Materialization run complete",
		log.FieldComponent, log.ComponentMaterializer,
		log.FieldCreated, summary.EntriesCreated,
		"rules_ended", summary.RulesEnded,
		log.FieldFailed, len(summary.Failures))

	return summary, nil
}

// MaterializeOrg processes a single organization. Rules are processed
// sequentially; occurrences within a rule strictly in chronological order,
// stopping at the first failure so the watermark never skips a gap.
func (m *Materializer) MaterializeOrg(ctx context.Context, orgID string, asOf core.Date) (Summary, error) {
	rules, err := m.repo.ListActiveRules(ctx, orgID)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: list active rules: %v", core.ErrStorageUnavailable, err)
	}

	summary := Summary{CreatedByOrg: make(map[string]int)}
	for _, rule := range rules {
		created, err := m.materializeRule(ctx, rule, asOf)
		summary.EntriesCreated += created
		if err != nil {
			slog.ErrorContext(ctx, "Rule materialization failed",
				log.FieldComponent, log.ComponentMaterializer,
				log.FieldOrgID, orgID,
				log.FieldRuleID, rule.ID,
				log.FieldError, err)
			summary.Failures = append(summary.Failures, RuleFailure{OrgID: orgID, RuleID: rule.ID, Err: err})
			continue
		}

		// A rule whose end date has passed will never produce another
		// occurrence; retire it so future scans skip it.
		if !rule.EndDate.IsEmpty() && asOf.After(rule.EndDate.Time) {
			if err := m.repo.EndRule(ctx, orgID, rule.ID); err != nil {
				summary.Failures = append(summary.Failures, RuleFailure{OrgID: orgID, RuleID: rule.ID, Err: err})
				continue
			}
			summary.RulesEnded++
		}
	}
	if summary.EntriesCreated > 0 {
		summary.CreatedByOrg[orgID] = summary.EntriesCreated
	}

	marked, err := m.repo.MarkOverdue(ctx, orgID, asOf)
	if err != nil {
		slog.ErrorContext(ctx, "Overdue transition failed",
			log.FieldComponent, log.ComponentMaterializer,
			log.FieldOrgID, orgID,
			log.FieldError, err)
	} else {
		summary.OverdueMarked = marked
	}

	return summary, nil
}

func (m *Materializer) materializeRule(ctx context.Context, rule core.RecurrenceRule, asOf core.Date) (int, error) {
	occurrences, err := m.generator.DueOccurrences(rule, asOf)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, occ := range occurrences {
		entry := core.LedgerEntry{
			ID:          uuid.NewString(),
			OrgID:       rule.OrgID,
			RuleID:      rule.ID,
			Kind:        rule.Kind,
			Amount:      rule.Amount,
			DueDate:     occ,
			Status:      initialStatus(rule.Kind),
			ClientID:    rule.ClientID,
			Description: rule.EntityRef,
		}

		wasCreated, err := m.repo.MaterializeOccurrence(ctx, entry)
		if err != nil {
			// Later occurrences are not attempted: committing them now would
			// leave a hole behind the watermark.
			return created, fmt.Errorf("occurrence %s: %w", occ.Format("2006-01-02"), err)
		}
		if !wasCreated {
			// Lost the race against a concurrent run; the occurrence exists.
			slog.DebugContext(ctx, "Occurrence already materialized",
				log.FieldRuleID, rule.ID,
				log.FieldOccurrence, occ.Format("2006-01-02"))
			continue
		}

		created++
		slog.InfoContext(ctx, "Created ledger entry from rule",
			log.FieldOrgID, rule.OrgID,
			log.FieldRuleID, rule.ID,
			log.FieldEntryID, entry.ID,
			log.FieldOccurrence, occ.Format("2006-01-02"),
			log.FieldAmountCents, entry.Amount.Cents)

		m.publishCreated(ctx, entry)
	}
	return created, nil
}

func (m *Materializer) publishCreated(ctx context.Context, entry core.LedgerEntry) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishEntryCreated(ctx, entry.ID, entry.OrgID); err != nil {
		// Entry is committed; the export worker's backlog sweep picks it up.
		slog.ErrorContext(ctx, "Failed to publish entry created message",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldEntryID, entry.ID,
			log.FieldOrgID, entry.OrgID,
			log.FieldError, err)
	}
}

func initialStatus(kind core.EntryKind) core.EntryStatus {
	if kind == core.KindInvoice {
		return core.EntryDraft
	}
	return core.EntryPending
}
