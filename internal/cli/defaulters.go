package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"fatture/internal/services"

	"github.com/spf13/cobra"
)

var defaultersCmd = &cobra.Command{
	Use:   "defaulters",
	Short: "List clients with overdue invoices",
	RunE:  runDefaulters,
}

func runDefaulters(cmd *cobra.Command, args []string) error {
	orgID, err := requireOrg()
	if err != nil {
		return err
	}
	asOf, err := asOfDate()
	if err != nil {
		return err
	}

	repo, _, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	detector := services.NewDefaulterDetector(repo)
	defaulters, err := detector.FindDefaulters(cmd.Context(), orgID, asOf)
	if err != nil {
		return err
	}

	if len(defaulters) == 0 {
		fmt.Println("No defaulters")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT\tOVERDUE\tTOTAL\tOLDEST DUE")
	for _, d := range defaulters {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			d.ClientID, d.OverdueCount, d.OverdueTotal, formatDate(d.OldestDue))
	}
	return w.Flush()
}
