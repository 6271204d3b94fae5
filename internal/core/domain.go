package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const (
	RuleActive RuleStatus = "active"
	RuleEnded  RuleStatus = "ended"
)

const (
	KindInvoice EntryKind = "invoice"
	KindExpense EntryKind = "expense"
)

// Invoice entry statuses.
const (
	EntryDraft     EntryStatus = "draft"
	EntrySent      EntryStatus = "sent"
	EntryOverdue   EntryStatus = "overdue"
	EntryCancelled EntryStatus = "cancelled"
)

// Shared / expense entry statuses.
const (
	EntryPending EntryStatus = "pending"
	EntryPaid    EntryStatus = "paid"
)

type (
	Frequency   string
	RuleStatus  string
	EntryKind   string
	EntryStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Organization is the tenant boundary. Every other entity carries its
	// ID and every operation is scoped to exactly one organization.
	Organization struct {
		ID     string
		Name   string
		Active bool
	}

	// RecurrenceRule describes how a service or expense template repeats.
	// Frequency and amount are immutable after creation; a price change
	// means ending the rule and creating a new one.
	RecurrenceRule struct {
		ID        string
		OrgID     string
		EntityRef string // owning service or expense template
		ClientID  string // billed counterparty, invoice rules only
		Kind      EntryKind
		Frequency Frequency
		Amount    Money
		StartDate Date
		EndDate   Date // zero when open-ended
		Status    RuleStatus
		// Watermark is the last materialized occurrence date. Zero until the
		// first occurrence is created; mutated only by the materializer.
		Watermark Date
	}

	// LedgerEntry is one concrete invoice or expense instance.
	LedgerEntry struct {
		ID          string
		OrgID       string
		RuleID      string // empty for one-time entries
		Kind        EntryKind
		Amount      Money
		DueDate     Date
		Status      EntryStatus
		ClientID    string // counterparty, invoices only
		Description string
	}
)

var (
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidFrequency      = errors.New("invalid frequency")
	ErrEmptyOrganization     = errors.New("empty organization id")
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")

	// ErrRecurrenceOverflow signals that a rule would generate more
	// occurrences in one run than the configured cap allows. The rule is
	// skipped for the run, never partially processed.
	ErrRecurrenceOverflow = errors.New("recurrence occurrence cap exceeded")

	// ErrStorageUnavailable wraps transient repository failures; the affected
	// run is retried on the next schedule tick.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

func (f Frequency) IsValid() bool {
	switch f {
	case Monthly, Quarterly, Yearly:
		return true
	default:
		return false
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to a UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// IsEmpty reports whether the date is unset (optional end dates, watermarks).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (o Organization) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return ErrEmptyOrganization
	}
	if strings.TrimSpace(o.Name) == "" {
		return errors.New("empty organization name")
	}
	return nil
}

// Validate rejects malformed rules at creation time so they never reach the
// generator (date ordering, frequency, amount, tenant scoping).
func (r RecurrenceRule) Validate() error {
	if strings.TrimSpace(r.OrgID) == "" {
		return fmt.Errorf("%w: %s", ErrInvalidRecurrenceRule, ErrEmptyOrganization)
	}
	if err := r.StartDate.Validate(); err != nil {
		return fmt.Errorf("%w: invalid start date", ErrInvalidRecurrenceRule)
	}
	if !r.Frequency.IsValid() {
		return fmt.Errorf("%w: %s %q", ErrInvalidRecurrenceRule, ErrInvalidFrequency, r.Frequency)
	}
	if err := r.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRecurrenceRule, ErrInvalidAmount)
	}
	if r.Kind != KindInvoice && r.Kind != KindExpense {
		return fmt.Errorf("%w: invalid kind %q", ErrInvalidRecurrenceRule, r.Kind)
	}
	if r.Kind == KindInvoice && strings.TrimSpace(r.ClientID) == "" {
		return fmt.Errorf("%w: invoice rule requires a client id", ErrInvalidRecurrenceRule)
	}
	if !r.EndDate.IsEmpty() && r.EndDate.Before(r.StartDate.Time) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidRecurrenceRule)
	}
	if !r.Watermark.IsEmpty() {
		if r.Watermark.Before(r.StartDate.Time) {
			return fmt.Errorf("%w: watermark before start date", ErrInvalidRecurrenceRule)
		}
		if !r.EndDate.IsEmpty() && r.Watermark.After(r.EndDate.Time) {
			return fmt.Errorf("%w: watermark after end date", ErrInvalidRecurrenceRule)
		}
	}
	return nil
}

func (e LedgerEntry) Validate() error {
	if strings.TrimSpace(e.OrgID) == "" {
		return ErrEmptyOrganization
	}
	if err := e.DueDate.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Kind != KindInvoice && e.Kind != KindExpense {
		return fmt.Errorf("invalid entry kind %q", e.Kind)
	}
	if e.Kind == KindInvoice && strings.TrimSpace(e.ClientID) == "" {
		return errors.New("invoice entry requires a client id")
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}
