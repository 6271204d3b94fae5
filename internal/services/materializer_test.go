package services

import (
	"context"
	"errors"
	"testing"

	"fatture/internal/core"
	"fatture/internal/storage"
)

func seedOrg(t *testing.T, repo storage.Repository, id string) {
	t.Helper()
	org := core.Organization{ID: id, Name: "Org " + id, Active: true}
	if err := repo.InsertOrganization(context.Background(), org); err != nil {
		t.Fatalf("insert organization: %v", err)
	}
}

func seedRule(t *testing.T, repo storage.Repository, rule core.RecurrenceRule) {
	t.Helper()
	if err := repo.InsertRule(context.Background(), rule); err != nil {
		t.Fatalf("insert rule: %v", err)
	}
}

func newTestMaterializer(repo storage.Repository) *Materializer {
	return NewMaterializer(repo, NewGenerator(0), nil, 2)
}

func TestMaterializeCreatesDueEntries(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seedOrg(t, repo, "org1")
	seedRule(t, repo, testRule())

	m := newTestMaterializer(repo)
	summary, err := m.Materialize(context.Background(), core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if summary.EntriesCreated != 4 {
		t.Fatalf("expected 4 entries, got %d", summary.EntriesCreated)
	}
	if summary.CreatedByOrg["org1"] != 4 {
		t.Fatalf("expected 4 entries for org1, got %d", summary.CreatedByOrg["org1"])
	}
	if len(summary.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", summary.Failures)
	}

	entries, err := repo.QueryEntries(context.Background(), "org1", storage.EntryFilter{RuleID: "r1"})
	if err != nil {
		t.Fatalf("query entries: %v", err)
	}
	want := []string{"2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, entry := range entries {
		if entry.DueDate.Format("2006-01-02") != want[i] {
			t.Fatalf("entry %d due %s, want %s", i, entry.DueDate.Format("2006-01-02"), want[i])
		}
		if entry.Status != core.EntryDraft {
			t.Fatalf("entry %d status %s, want draft", i, entry.Status)
		}
		if entry.Amount.Cents != 10000 {
			t.Fatalf("entry %d amount %d, want 10000", i, entry.Amount.Cents)
		}
		if entry.ClientID != "client1" {
			t.Fatalf("entry %d client %q", i, entry.ClientID)
		}
	}

	rule, err := repo.GetRule(context.Background(), "org1", "r1")
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if rule.Watermark.Format("2006-01-02") != "2024-04-15" {
		t.Fatalf("watermark %s, want 2024-04-15", rule.Watermark.Format("2006-01-02"))
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seedOrg(t, repo, "org1")
	seedRule(t, repo, testRule())

	m := newTestMaterializer(repo)
	asOf := core.NewDate(2024, 4, 20)
	if _, err := m.Materialize(context.Background(), asOf); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := m.Materialize(context.Background(), asOf)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.EntriesCreated != 0 {
		t.Fatalf("second run created %d entries, want 0", summary.EntriesCreated)
	}

	entries, _ := repo.QueryEntries(context.Background(), "org1", storage.EntryFilter{RuleID: "r1"})
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries after rerun, got %d", len(entries))
	}
}

func TestMaterializeEndsExpiredRules(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seedOrg(t, repo, "org1")
	rule := testRule()
	rule.EndDate = core.NewDate(2024, 2, 1)
	seedRule(t, repo, rule)

	m := newTestMaterializer(repo)
	summary, err := m.Materialize(context.Background(), core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if summary.EntriesCreated != 1 {
		t.Fatalf("expected 1 entry, got %d", summary.EntriesCreated)
	}
	if summary.RulesEnded != 1 {
		t.Fatalf("expected 1 rule ended, got %d", summary.RulesEnded)
	}

	got, err := repo.GetRule(context.Background(), "org1", "r1")
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if got.Status != core.RuleEnded {
		t.Fatalf("rule status %s, want ended", got.Status)
	}
}

func TestMaterializeExpenseRulesStartPending(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seedOrg(t, repo, "org1")
	rule := testRule()
	rule.ID = "r2"
	rule.Kind = core.KindExpense
	rule.ClientID = ""
	seedRule(t, repo, rule)

	m := newTestMaterializer(repo)
	if _, err := m.Materialize(context.Background(), core.NewDate(2024, 2, 1)); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	entries, _ := repo.QueryEntries(context.Background(), "org1", storage.EntryFilter{RuleID: "r2"})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Status != core.EntryPending {
			t.Fatalf("expense entry status %s, want pending", entry.Status)
		}
	}
}

func TestMaterializeIsolatesRuleFailures(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seedOrg(t, repo, "org1")

	// An overflowing rule must not block the healthy one.
	backlog := testRule()
	backlog.ID = "r-backlog"
	backlog.StartDate = core.NewDate(2014, 1, 1)
	seedRule(t, repo, backlog)

	healthy := testRule()
	healthy.ID = "r-healthy"
	seedRule(t, repo, healthy)

	m := NewMaterializer(repo, NewGenerator(24), nil, 2)
	summary, err := m.Materialize(context.Background(), core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(summary.Failures))
	}
	if summary.Failures[0].RuleID != "r-backlog" {
		t.Fatalf("failure rule %s, want r-backlog", summary.Failures[0].RuleID)
	}
	if !errors.Is(summary.Failures[0].Err, core.ErrRecurrenceOverflow) {
		t.Fatalf("failure err %v, want ErrRecurrenceOverflow", summary.Failures[0].Err)
	}
	if summary.EntriesCreated != 4 {
		t.Fatalf("expected 4 entries from healthy rule, got %d", summary.EntriesCreated)
	}
}

func TestMaterializeProcessesAllOrganizations(t *testing.T) {
	repo := storage.NewMemoryRepository()
	for _, orgID := range []string{"org1", "org2", "org3"} {
		seedOrg(t, repo, orgID)
		rule := testRule()
		rule.ID = "rule-" + orgID
		rule.OrgID = orgID
		seedRule(t, repo, rule)
	}

	m := newTestMaterializer(repo)
	summary, err := m.Materialize(context.Background(), core.NewDate(2024, 3, 1))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if summary.EntriesCreated != 9 {
		t.Fatalf("expected 9 entries, got %d", summary.EntriesCreated)
	}
	for _, orgID := range []string{"org1", "org2", "org3"} {
		if summary.CreatedByOrg[orgID] != 3 {
			t.Fatalf("org %s created %d, want 3", orgID, summary.CreatedByOrg[orgID])
		}
	}
}

func TestMaterializeMarksSentInvoicesOverdue(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seedOrg(t, repo, "org1")
	entry := core.LedgerEntry{
		ID:       "e-sent",
		OrgID:    "org1",
		Kind:     core.KindInvoice,
		Amount:   core.Money{Cents: 5000},
		DueDate:  core.NewDate(2024, 3, 1),
		Status:   core.EntrySent,
		ClientID: "client1",
	}
	if err := repo.InsertEntry(context.Background(), entry); err != nil {
		t.Fatalf("insert entry: %v", err)
	}

	m := newTestMaterializer(repo)
	summary, err := m.MaterializeOrg(context.Background(), "org1", core.NewDate(2024, 4, 20))
	if err != nil {
		t.Fatalf("materialize org: %v", err)
	}
	if summary.OverdueMarked != 1 {
		t.Fatalf("expected 1 overdue, got %d", summary.OverdueMarked)
	}

	got, _ := repo.GetEntry(context.Background(), "org1", "e-sent")
	if got.Status != core.EntryOverdue {
		t.Fatalf("entry status %s, want overdue", got.Status)
	}
}
