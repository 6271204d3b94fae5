package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"fatture/internal/services"

	"github.com/spf13/cobra"
)

var (
	flagProjectBack    int
	flagProjectForward int
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Show historical and projected monthly cash flow",
	RunE:  runProject,
}

func init() {
	projectCmd.Flags().IntVar(&flagProjectBack, "back", 6, "Historical months to include")
	projectCmd.Flags().IntVar(&flagProjectForward, "forward", 6, "Future months to estimate")
}

func runProject(cmd *cobra.Command, args []string) error {
	orgID, err := requireOrg()
	if err != nil {
		return err
	}
	asOf, err := asOfDate()
	if err != nil {
		return err
	}

	repo, cfg, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	engine := services.NewProjectionEngine(repo, services.ProjectionConfig{
		GrowthRatePct:    cfg.GrowthRatePct,
		InflationRatePct: cfg.InflationRatePct,
		LookbackMonths:   cfg.ExpenseLookbackMonths,
	})

	points, err := engine.Project(cmd.Context(), orgID, asOf, flagProjectBack, flagProjectForward)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PERIOD\tINCOME\tEXPENSE\tNET\t")
	for _, point := range points {
		marker := ""
		switch {
		case point.IsCurrent:
			marker = "current"
		case point.IsProjected:
			marker = "projected"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			point.Period, point.Income, point.Expense, point.Net, marker)
	}
	return w.Flush()
}
