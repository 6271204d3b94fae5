package core

import (
	"errors"
	"testing"
	"time"
)

func validRule() RecurrenceRule {
	return RecurrenceRule{
		ID:        "r1",
		OrgID:     "org1",
		EntityRef: "svc-hosting",
		ClientID:  "client1",
		Kind:      KindInvoice,
		Frequency: Monthly,
		Amount:    Money{Cents: 10000},
		StartDate: NewDate(2024, 1, 15),
		Status:    RuleActive,
	}
}

func TestRecurrenceRuleValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RecurrenceRule)
		ok     bool
	}{
		{"valid invoice rule", func(r *RecurrenceRule) {}, true},
		{"valid expense rule without client", func(r *RecurrenceRule) {
			r.Kind = KindExpense
			r.ClientID = ""
		}, true},
		{"valid with end date and watermark", func(r *RecurrenceRule) {
			r.EndDate = NewDate(2024, 12, 15)
			r.Watermark = NewDate(2024, 3, 15)
		}, true},
		{"missing org", func(r *RecurrenceRule) { r.OrgID = " " }, false},
		{"missing start date", func(r *RecurrenceRule) { r.StartDate = Date{} }, false},
		{"bad frequency", func(r *RecurrenceRule) { r.Frequency = "weekly" }, false},
		{"zero amount", func(r *RecurrenceRule) { r.Amount = Money{} }, false},
		{"negative amount", func(r *RecurrenceRule) { r.Amount = Money{Cents: -100} }, false},
		{"bad kind", func(r *RecurrenceRule) { r.Kind = "refund" }, false},
		{"invoice without client", func(r *RecurrenceRule) { r.ClientID = "" }, false},
		{"end before start", func(r *RecurrenceRule) { r.EndDate = NewDate(2024, 1, 1) }, false},
		{"watermark before start", func(r *RecurrenceRule) { r.Watermark = NewDate(2023, 12, 15) }, false},
		{"watermark after end", func(r *RecurrenceRule) {
			r.EndDate = NewDate(2024, 6, 15)
			r.Watermark = NewDate(2024, 7, 15)
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := validRule()
			tc.mutate(&rule)
			err := rule.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidRecurrenceRule) {
					t.Fatalf("expected ErrInvalidRecurrenceRule, got %v", err)
				}
			}
		})
	}
}

func TestLedgerEntryValidate(t *testing.T) {
	valid := LedgerEntry{
		ID:       "e1",
		OrgID:    "org1",
		RuleID:   "r1",
		Kind:     KindInvoice,
		Amount:   Money{Cents: 5000},
		DueDate:  NewDate(2024, 2, 1),
		Status:   EntryDraft,
		ClientID: "client1",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noClient := valid
	noClient.ClientID = ""
	if err := noClient.Validate(); err == nil {
		t.Fatal("expected error for invoice without client")
	}

	expense := valid
	expense.Kind = KindExpense
	expense.ClientID = ""
	expense.Status = EntryPending
	if err := expense.Validate(); err != nil {
		t.Fatalf("unexpected error for expense: %v", err)
	}

	noOrg := valid
	noOrg.OrgID = ""
	if !errors.Is(noOrg.Validate(), ErrEmptyOrganization) {
		t.Fatal("expected ErrEmptyOrganization")
	}
}

func TestDateOfTruncatesToUTCDay(t *testing.T) {
	d := NewDate(2025, 8, 31)
	if got := DateOf(d.Time.Add(25 * time.Hour)); !got.Equal(NewDate(2025, 9, 1).Time) {
		t.Fatalf("got %s", got.Format("2006-01-02"))
	}
	if got := DateOf(d.Time.Add(3 * time.Hour)); !got.Equal(d.Time) {
		t.Fatalf("got %s", got.Format("2006-01-02"))
	}
}
