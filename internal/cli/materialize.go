package cli

import (
	"fmt"

	"fatture/internal/services"

	"github.com/spf13/cobra"
)

var flagMaterializeAll bool

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Materialize due recurrence occurrences into ledger entries",
	Long:  "Runs one materialization pass: every due occurrence up to the reference date becomes a ledger entry, exactly once. Safe to re-run.",
	RunE:  runMaterialize,
}

func init() {
	materializeCmd.Flags().BoolVar(&flagMaterializeAll, "all", false, "Process every active organization instead of --org")
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	asOf, err := asOfDate()
	if err != nil {
		return err
	}

	repo, cfg, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	generator := services.NewGenerator(cfg.OccurrenceCap)
	materializer := services.NewMaterializer(repo, generator, nil, cfg.OrgParallelism)

	var summary services.Summary
	if flagMaterializeAll {
		summary, err = materializer.Materialize(cmd.Context(), asOf)
	} else {
		var orgID string
		if orgID, err = requireOrg(); err != nil {
			return err
		}
		summary, err = materializer.MaterializeOrg(cmd.Context(), orgID, asOf)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Created %d entries, ended %d rules, marked %d invoices overdue\n",
		summary.EntriesCreated, summary.RulesEnded, summary.OverdueMarked)
	for _, failure := range summary.Failures {
		fmt.Printf("FAILED org=%s rule=%s: %v\n", failure.OrgID, failure.RuleID, failure.Err)
	}
	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d rules failed", len(summary.Failures))
	}
	return nil
}
