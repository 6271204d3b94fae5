// Package storage defines the repository boundary of the billing engine and
// its SQLite and in-memory implementations.
//
// Every operation is scoped by an explicit organization id. There is no
// ambient tenant context; a caller that cannot name the organization cannot
// touch its records.
package storage

import (
	"context"
	"errors"

	"fatture/internal/core"
)

var ErrNotFound = errors.New("record not found")

// EntryFilter narrows ledger entry queries. Zero fields are ignored.
type EntryFilter struct {
	Kind     core.EntryKind
	Statuses []core.EntryStatus
	RuleID   string
	From     core.Date // due date lower bound, inclusive
	To       core.Date // due date upper bound, inclusive
}

// Repository is the record-level contract the engine consumes: get,
// query-by-filter, insert, update, and the conditional insert-or-skip that
// backs the at-most-once materialization guarantee.
type Repository interface {
	// Organizations.
	InsertOrganization(ctx context.Context, org core.Organization) error
	GetOrganization(ctx context.Context, orgID string) (core.Organization, error)
	ListActiveOrganizations(ctx context.Context) ([]core.Organization, error)

	// Recurrence rules.
	InsertRule(ctx context.Context, rule core.RecurrenceRule) error
	GetRule(ctx context.Context, orgID, ruleID string) (core.RecurrenceRule, error)
	ListActiveRules(ctx context.Context, orgID string) ([]core.RecurrenceRule, error)
	EndRule(ctx context.Context, orgID, ruleID string) error

	// Ledger entries. QueryEntries returns entries in due-date ascending
	// order with a stable tiebreak, which downstream scans rely on.
	InsertEntry(ctx context.Context, entry core.LedgerEntry) error
	GetEntry(ctx context.Context, orgID, entryID string) (core.LedgerEntry, error)
	QueryEntries(ctx context.Context, orgID string, f EntryFilter) ([]core.LedgerEntry, error)
	UpdateEntryStatus(ctx context.Context, orgID, entryID string, status core.EntryStatus) error

	// MaterializeOccurrence atomically inserts the entry unless one already
	// exists for its (rule id, due date) pair, and advances the rule
	// watermark to the due date. A conflict is not an error: the occurrence
	// is already materialized, the watermark still advances, and created is
	// false. Either both effects commit or neither does.
	MaterializeOccurrence(ctx context.Context, entry core.LedgerEntry) (created bool, err error)

	// MarkOverdue flips sent invoices with a due date strictly before asOf
	// to overdue. Idempotent; returns the number of rows transitioned.
	MarkOverdue(ctx context.Context, orgID string, asOf core.Date) (int64, error)

	// Export bookkeeping for the sheets pipeline.
	ListUnexportedEntries(ctx context.Context, limit int) ([]core.LedgerEntry, error)
	MarkExported(ctx context.Context, orgID, entryID string) error

	Close() error
}
