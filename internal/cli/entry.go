package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"fatture/internal/core"
	"fatture/internal/storage"

	"github.com/spf13/cobra"
)

var (
	flagEntryKind   string
	flagEntryStatus string
	flagEntryFrom   string
	flagEntryTo     string
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Inspect and update ledger entries",
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger entries in due-date order",
	RunE:  runEntryList,
}

var entryStatusCmd = &cobra.Command{
	Use:   "set-status <entry-id> <status>",
	Short: "Update an entry status (sent, paid, cancelled, ...)",
	Args:  cobra.ExactArgs(2),
	RunE:  runEntrySetStatus,
}

func init() {
	entryListCmd.Flags().StringVar(&flagEntryKind, "kind", "", "Filter by kind: invoice or expense")
	entryListCmd.Flags().StringVar(&flagEntryStatus, "status", "", "Filter by status")
	entryListCmd.Flags().StringVar(&flagEntryFrom, "from", "", "Due date lower bound (YYYY-MM-DD)")
	entryListCmd.Flags().StringVar(&flagEntryTo, "to", "", "Due date upper bound (YYYY-MM-DD)")

	entryCmd.AddCommand(entryListCmd)
	entryCmd.AddCommand(entryStatusCmd)
}

func runEntryList(cmd *cobra.Command, args []string) error {
	orgID, err := requireOrg()
	if err != nil {
		return err
	}

	filter := storage.EntryFilter{Kind: core.EntryKind(flagEntryKind)}
	if flagEntryStatus != "" {
		filter.Statuses = []core.EntryStatus{core.EntryStatus(flagEntryStatus)}
	}
	if flagEntryFrom != "" {
		if filter.From, err = parseDate(flagEntryFrom); err != nil {
			return err
		}
	}
	if flagEntryTo != "" {
		if filter.To, err = parseDate(flagEntryTo); err != nil {
			return err
		}
	}

	repo, _, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := repo.QueryEntries(cmd.Context(), orgID, filter)
	if err != nil {
		return fmt.Errorf("query entries: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDUE\tKIND\tAMOUNT\tSTATUS\tCLIENT\tDESCRIPTION")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			entry.ID, formatDate(entry.DueDate), entry.Kind, entry.Amount,
			entry.Status, entry.ClientID, entry.Description)
	}
	return w.Flush()
}

func runEntrySetStatus(cmd *cobra.Command, args []string) error {
	orgID, err := requireOrg()
	if err != nil {
		return err
	}

	repo, _, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	entryID, status := args[0], core.EntryStatus(args[1])
	if err := repo.UpdateEntryStatus(cmd.Context(), orgID, entryID, status); err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	fmt.Printf("Entry %s is now %s\n", entryID, status)
	return nil
}
