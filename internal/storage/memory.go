package storage

import (
	"context"
	"sort"
	"sync"

	"fatture/internal/core"
)

// MemoryRepository is an in-memory Repository guarded by a mutex. It backs
// the "memory" backend and keeps engine tests free of a live database.
type MemoryRepository struct {
	mu      sync.Mutex
	orgs    map[string]core.Organization
	rules   map[string]core.RecurrenceRule // keyed by rule id
	entries []core.LedgerEntry
	// occurrence index mirrors the sqlite unique constraint on
	// (rule id, due date)
	occurrences map[occurrenceKey]struct{}
	exported    map[string]bool // entry id -> exported
}

type occurrenceKey struct {
	ruleID  string
	dueDate string
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orgs:        make(map[string]core.Organization),
		rules:       make(map[string]core.RecurrenceRule),
		occurrences: make(map[occurrenceKey]struct{}),
		exported:    make(map[string]bool),
	}
}

func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) InsertOrganization(ctx context.Context, org core.Organization) error {
	if err := org.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.ID] = org
	return nil
}

func (m *MemoryRepository) GetOrganization(ctx context.Context, orgID string) (core.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[orgID]
	if !ok {
		return core.Organization{}, ErrNotFound
	}
	return org, nil
}

func (m *MemoryRepository) ListActiveOrganizations(ctx context.Context) ([]core.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orgs []core.Organization
	for _, org := range m.orgs {
		if org.Active {
			orgs = append(orgs, org)
		}
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].ID < orgs[j].ID })
	return orgs, nil
}

func (m *MemoryRepository) InsertRule(ctx context.Context, rule core.RecurrenceRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *MemoryRepository) GetRule(ctx context.Context, orgID, ruleID string) (core.RecurrenceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[ruleID]
	if !ok || rule.OrgID != orgID {
		return core.RecurrenceRule{}, ErrNotFound
	}
	return rule, nil
}

func (m *MemoryRepository) ListActiveRules(ctx context.Context, orgID string) ([]core.RecurrenceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rules []core.RecurrenceRule
	for _, rule := range m.rules {
		if rule.OrgID == orgID && rule.Status == core.RuleActive {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].StartDate.Equal(rules[j].StartDate.Time) {
			return rules[i].StartDate.Before(rules[j].StartDate.Time)
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (m *MemoryRepository) EndRule(ctx context.Context, orgID, ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[ruleID]
	if !ok || rule.OrgID != orgID {
		return ErrNotFound
	}
	rule.Status = core.RuleEnded
	m.rules[ruleID] = rule
	return nil
}

func (m *MemoryRepository) InsertEntry(ctx context.Context, entry core.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryRepository) GetEntry(ctx context.Context, orgID, entryID string) (core.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.OrgID == orgID && e.ID == entryID {
			return e, nil
		}
	}
	return core.LedgerEntry{}, ErrNotFound
}

func (m *MemoryRepository) QueryEntries(ctx context.Context, orgID string, f EntryFilter) ([]core.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range m.entries {
		if e.OrgID != orgID {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if f.RuleID != "" && e.RuleID != f.RuleID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, e.Status) {
			continue
		}
		if !f.From.IsEmpty() && e.DueDate.Before(f.From.Time) {
			continue
		}
		if !f.To.IsEmpty() && e.DueDate.After(f.To.Time) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Before(out[j].DueDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryRepository) UpdateEntryStatus(ctx context.Context, orgID, entryID string, status core.EntryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.OrgID == orgID && e.ID == entryID {
			m.entries[i].Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRepository) MaterializeOccurrence(ctx context.Context, entry core.LedgerEntry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := occurrenceKey{ruleID: entry.RuleID, dueDate: entry.DueDate.Format("2006-01-02")}
	created := false
	if _, exists := m.occurrences[key]; !exists {
		m.occurrences[key] = struct{}{}
		m.entries = append(m.entries, entry)
		created = true
	}

	if rule, ok := m.rules[entry.RuleID]; ok {
		if rule.Watermark.IsEmpty() || rule.Watermark.Before(entry.DueDate.Time) {
			rule.Watermark = entry.DueDate
			m.rules[entry.RuleID] = rule
		}
	}
	return created, nil
}

func (m *MemoryRepository) MarkOverdue(ctx context.Context, orgID string, asOf core.Date) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i, e := range m.entries {
		if e.OrgID == orgID && e.Kind == core.KindInvoice &&
			e.Status == core.EntrySent && e.DueDate.Before(asOf.Time) {
			m.entries[i].Status = core.EntryOverdue
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) ListUnexportedEntries(ctx context.Context, limit int) ([]core.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range m.entries {
		if m.exported[e.ID] {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Before(out[j].DueDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) MarkExported(ctx context.Context, orgID, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.OrgID == orgID && e.ID == entryID {
			m.exported[e.ID] = true
			return nil
		}
	}
	return ErrNotFound
}

func containsStatus(statuses []core.EntryStatus, s core.EntryStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
