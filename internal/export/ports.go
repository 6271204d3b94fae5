package export

import (
	"context"

	"fatture/internal/core"
)

// Ports for outbound export adapters.
type (
	// EntryWriter appends one ledger entry to an external ledger document.
	EntryWriter interface {
		Append(ctx context.Context, org core.Organization, entry core.LedgerEntry) (rowRef string, err error)
	}
)
