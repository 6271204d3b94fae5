package core

// ProjectionPoint is one month of a cash-flow projection. It is computed on
// every request and never persisted.
//
// Historical points aggregate paid ledger entries; projected points are
// estimates. Consumers must never conflate the two, which is why the flags
// travel with every point.
type ProjectionPoint struct {
	Period       string // "2024-03"
	IsHistorical bool
	IsCurrent    bool
	IsProjected  bool
	Income       Money
	Expense      Money
	Net          Money
}

// Defaulter is one at-risk counterparty found by the defaulter scan.
type Defaulter struct {
	ClientID     string
	OverdueCount int
	OverdueTotal Money
	OldestDue    Date
}
