package services

import (
	"context"
	"fmt"

	"fatture/internal/core"
	"fatture/internal/storage"
)

// DefaulterDetector finds counterparties with overdue obligations. Pure
// reader; classifying an entry as overdue here is a read-time derivation and
// never mutates ledger state.
type DefaulterDetector struct {
	repo storage.Repository
}

func NewDefaulterDetector(repo storage.Repository) *DefaulterDetector {
	return &DefaulterDetector{repo: repo}
}

// FindDefaulters returns the deduplicated at-risk counterparties of an
// organization: clients with at least one invoice that is explicitly
// overdue, or sent with a due date strictly before asOf. Entries are scanned
// in due-date order, so the result preserves first-seen order and each
// client's OldestDue is its earliest overdue invoice.
func (d *DefaulterDetector) FindDefaulters(ctx context.Context, orgID string, asOf core.Date) ([]core.Defaulter, error) {
	if orgID == "" {
		return nil, core.ErrEmptyOrganization
	}
	if err := asOf.Validate(); err != nil {
		return nil, err
	}

	entries, err := d.repo.QueryEntries(ctx, orgID, storage.EntryFilter{Kind: core.KindInvoice})
	if err != nil {
		return nil, fmt.Errorf("%w: query invoice entries: %v", core.ErrStorageUnavailable, err)
	}

	byClient := make(map[string]int)
	var defaulters []core.Defaulter
	for _, entry := range entries {
		if !isAtRisk(entry, asOf) {
			continue
		}
		idx, seen := byClient[entry.ClientID]
		if !seen {
			byClient[entry.ClientID] = len(defaulters)
			defaulters = append(defaulters, core.Defaulter{
				ClientID:  entry.ClientID,
				OldestDue: entry.DueDate,
			})
			idx = len(defaulters) - 1
		}
		defaulters[idx].OverdueCount++
		defaulters[idx].OverdueTotal.Cents += entry.Amount.Cents
	}
	return defaulters, nil
}

func isAtRisk(entry core.LedgerEntry, asOf core.Date) bool {
	switch entry.Status {
	case core.EntryOverdue:
		return true
	case core.EntrySent, core.EntryPending:
		return entry.DueDate.Before(asOf.Time)
	default:
		return false
	}
}
