package memory

import (
	"context"
	"fmt"
	"sync"

	"fatture/internal/core"
)

// Store is an in-memory EntryWriter for tests and the memory backend.
type Store struct {
	mu    sync.Mutex
	items []Row
}

// Row is one appended ledger row.
type Row struct {
	Org   core.Organization
	Entry core.LedgerEntry
}

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, org core.Organization, entry core.LedgerEntry) (string, error) {
	if err := entry.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, Row{Org: org, Entry: entry})
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.items...)
}
