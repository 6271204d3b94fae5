package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fatture/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteRepository implements Repository on an embedded SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) InsertOrganization(ctx context.Context, org core.Organization) error {
	if err := org.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, active) VALUES (?, ?, ?)`,
		org.ID, org.Name, boolToInt(org.Active))
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetOrganization(ctx context.Context, orgID string) (core.Organization, error) {
	var org core.Organization
	var active int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, active FROM organizations WHERE id = ?`, orgID).
		Scan(&org.ID, &org.Name, &active)
	if err == sql.ErrNoRows {
		return core.Organization{}, ErrNotFound
	}
	if err != nil {
		return core.Organization{}, fmt.Errorf("get organization: %w", err)
	}
	org.Active = active != 0
	return org, nil
}

func (r *SQLiteRepository) ListActiveOrganizations(ctx context.Context) ([]core.Organization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, active FROM organizations WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []core.Organization
	for rows.Next() {
		var org core.Organization
		var active int64
		if err := rows.Scan(&org.ID, &org.Name, &active); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		org.Active = active != 0
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (r *SQLiteRepository) InsertRule(ctx context.Context, rule core.RecurrenceRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurrence_rules
		 (id, org_id, entity_ref, client_id, kind, frequency, amount_cents, start_date, end_date, status, watermark)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.OrgID, rule.EntityRef, nullString(rule.ClientID), string(rule.Kind), string(rule.Frequency),
		rule.Amount.Cents, fmtDate(rule.StartDate), nullDate(rule.EndDate),
		string(rule.Status), nullDate(rule.Watermark))
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetRule(ctx context.Context, orgID, ruleID string) (core.RecurrenceRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, entity_ref, client_id, kind, frequency, amount_cents, start_date, end_date, status, watermark
		 FROM recurrence_rules WHERE org_id = ? AND id = ?`, orgID, ruleID)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return core.RecurrenceRule{}, ErrNotFound
	}
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *SQLiteRepository) ListActiveRules(ctx context.Context, orgID string) ([]core.RecurrenceRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, entity_ref, client_id, kind, frequency, amount_cents, start_date, end_date, status, watermark
		 FROM recurrence_rules WHERE org_id = ? AND status = 'active' ORDER BY start_date, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *SQLiteRepository) EndRule(ctx context.Context, orgID, ruleID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurrence_rules SET status = 'ended' WHERE org_id = ? AND id = ?`,
		orgID, ruleID)
	if err != nil {
		return fmt.Errorf("end rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) InsertEntry(ctx context.Context, entry core.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_entries
		 (id, org_id, rule_id, kind, amount_cents, due_date, status, client_id, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrgID, nullString(entry.RuleID), string(entry.Kind),
		entry.Amount.Cents, fmtDate(entry.DueDate), string(entry.Status),
		nullString(entry.ClientID), entry.Description)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, orgID, entryID string) (core.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, rule_id, kind, amount_cents, due_date, status, client_id, description
		 FROM ledger_entries WHERE org_id = ? AND id = ?`, orgID, entryID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return core.LedgerEntry{}, ErrNotFound
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

func (r *SQLiteRepository) QueryEntries(ctx context.Context, orgID string, f EntryFilter) ([]core.LedgerEntry, error) {
	query := `SELECT id, org_id, rule_id, kind, amount_cents, due_date, status, client_id, description
	          FROM ledger_entries WHERE org_id = ?`
	args := []any{orgID}

	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	if len(f.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Statuses)), ",")
		query += ` AND status IN (` + placeholders + `)`
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.RuleID != "" {
		query += ` AND rule_id = ?`
		args = append(args, f.RuleID)
	}
	if !f.From.IsEmpty() {
		query += ` AND due_date >= ?`
		args = append(args, fmtDate(f.From))
	}
	if !f.To.IsEmpty() {
		query += ` AND due_date <= ?`
		args = append(args, fmtDate(f.To))
	}
	query += ` ORDER BY due_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) UpdateEntryStatus(ctx context.Context, orgID, entryID string, status core.EntryStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_entries SET status = ? WHERE org_id = ? AND id = ?`,
		string(status), orgID, entryID)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MaterializeOccurrence is the serialization point for concurrent
// materialization runs. The partial unique index on (rule_id, due_date)
// makes the insert conditional; INSERT OR IGNORE turns a lost race into a
// skip, and the watermark advance rides in the same transaction.
func (r *SQLiteRepository) MaterializeOccurrence(ctx context.Context, entry core.LedgerEntry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	if entry.RuleID == "" {
		return false, fmt.Errorf("materialize occurrence: entry has no rule id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin tx: %v", core.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO ledger_entries
		 (id, org_id, rule_id, kind, amount_cents, due_date, status, client_id, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrgID, entry.RuleID, string(entry.Kind),
		entry.Amount.Cents, fmtDate(entry.DueDate), string(entry.Status),
		nullString(entry.ClientID), entry.Description)
	if err != nil {
		return false, fmt.Errorf("%w: insert occurrence: %v", core.ErrStorageUnavailable, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert occurrence rows: %w", err)
	}

	// The watermark only moves forward; a stale concurrent run cannot
	// rewind it.
	_, err = tx.ExecContext(ctx,
		`UPDATE recurrence_rules SET watermark = ?
		 WHERE org_id = ? AND id = ? AND (watermark IS NULL OR watermark < ?)`,
		fmtDate(entry.DueDate), entry.OrgID, entry.RuleID, fmtDate(entry.DueDate))
	if err != nil {
		return false, fmt.Errorf("%w: advance watermark: %v", core.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit occurrence: %v", core.ErrStorageUnavailable, err)
	}
	return inserted > 0, nil
}

func (r *SQLiteRepository) MarkOverdue(ctx context.Context, orgID string, asOf core.Date) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_entries SET status = 'overdue'
		 WHERE org_id = ? AND kind = 'invoice' AND status = 'sent' AND due_date < ?`,
		orgID, fmtDate(asOf))
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue rows: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListUnexportedEntries(ctx context.Context, limit int) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, rule_id, kind, amount_cents, due_date, status, client_id, description
		 FROM ledger_entries WHERE exported = 0 ORDER BY due_date, id LIMIT ?`, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unexported entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, orgID, entryID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_entries SET exported = 1 WHERE org_id = ? AND id = ?`,
		orgID, entryID)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (core.RecurrenceRule, error) {
	var rule core.RecurrenceRule
	var kind, frequency, status, startDate string
	var clientID, endDate, watermark sql.NullString
	err := row.Scan(&rule.ID, &rule.OrgID, &rule.EntityRef, &clientID, &kind, &frequency,
		&rule.Amount.Cents, &startDate, &endDate, &status, &watermark)
	if err != nil {
		return core.RecurrenceRule{}, err
	}
	rule.ClientID = clientID.String
	rule.Kind = core.EntryKind(kind)
	rule.Frequency = core.Frequency(frequency)
	rule.Status = core.RuleStatus(status)
	if rule.StartDate, err = parseDate(startDate); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.EndDate, err = parseNullDate(endDate); err != nil {
		return core.RecurrenceRule{}, err
	}
	if rule.Watermark, err = parseNullDate(watermark); err != nil {
		return core.RecurrenceRule{}, err
	}
	return rule, nil
}

func scanEntry(row rowScanner) (core.LedgerEntry, error) {
	var entry core.LedgerEntry
	var kind, status, dueDate string
	var ruleID, clientID sql.NullString
	err := row.Scan(&entry.ID, &entry.OrgID, &ruleID, &kind,
		&entry.Amount.Cents, &dueDate, &status, &clientID, &entry.Description)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	entry.Kind = core.EntryKind(kind)
	entry.Status = core.EntryStatus(status)
	entry.RuleID = ruleID.String
	entry.ClientID = clientID.String
	if entry.DueDate, err = parseDate(dueDate); err != nil {
		return core.LedgerEntry{}, err
	}
	return entry, nil
}

func fmtDate(d core.Date) string {
	return d.Format(dateLayout)
}

func nullDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return fmtDate(d)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func parseNullDate(s sql.NullString) (core.Date, error) {
	if !s.Valid || s.String == "" {
		return core.Date{}, nil
	}
	return parseDate(s.String)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
