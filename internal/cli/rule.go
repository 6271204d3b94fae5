package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"fatture/internal/core"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagRuleKind      string
	flagRuleFrequency string
	flagRuleAmount    string
	flagRuleStart     string
	flagRuleEnd       string
	flagRuleClient    string
	flagRuleEntity    string
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage recurrence rules",
}

var ruleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a recurrence rule",
	RunE:  runRuleAdd,
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active recurrence rules",
	RunE:  runRuleList,
}

var ruleEndCmd = &cobra.Command{
	Use:   "end <rule-id>",
	Short: "End a recurrence rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleEnd,
}

func init() {
	ruleAddCmd.Flags().StringVar(&flagRuleKind, "kind", "invoice", "Rule kind: invoice or expense")
	ruleAddCmd.Flags().StringVar(&flagRuleFrequency, "frequency", "monthly", "Frequency: monthly, quarterly or yearly")
	ruleAddCmd.Flags().StringVar(&flagRuleAmount, "amount", "", "Amount per occurrence, e.g. 100.00")
	ruleAddCmd.Flags().StringVar(&flagRuleStart, "start", "", "First occurrence date (YYYY-MM-DD)")
	ruleAddCmd.Flags().StringVar(&flagRuleEnd, "end", "", "Optional last billable date (YYYY-MM-DD)")
	ruleAddCmd.Flags().StringVar(&flagRuleClient, "client", "", "Billed client ID (invoice rules)")
	ruleAddCmd.Flags().StringVar(&flagRuleEntity, "entity", "", "Owning service or expense template reference")
	ruleAddCmd.MarkFlagRequired("amount")
	ruleAddCmd.MarkFlagRequired("start")

	ruleCmd.AddCommand(ruleAddCmd)
	ruleCmd.AddCommand(ruleListCmd)
	ruleCmd.AddCommand(ruleEndCmd)
}

func runRuleAdd(cmd *cobra.Command, args []string) error {
	orgID, err := requireOrg()
	if err != nil {
		return err
	}

	cents, err := core.ParseDecimalToCents(flagRuleAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", flagRuleAmount, err)
	}
	start, err := parseDate(flagRuleStart)
	if err != nil {
		return err
	}
	var end core.Date
	if flagRuleEnd != "" {
		end, err = parseDate(flagRuleEnd)
		if err != nil {
			return err
		}
	}

	rule := core.RecurrenceRule{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		EntityRef: flagRuleEntity,
		ClientID:  flagRuleClient,
		Kind:      core.EntryKind(flagRuleKind),
		Frequency: core.Frequency(flagRuleFrequency),
		Amount:    core.Money{Cents: cents},
		StartDate: start,
		EndDate:   end,
		Status:    core.RuleActive,
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	repo, _, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := repo.InsertRule(cmd.Context(), rule); err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}

	fmt.Printf("Created %s rule %s: %s %s starting %s\n",
		rule.Kind, rule.ID, rule.Amount, rule.Frequency, formatDate(rule.StartDate))
	return nil
}

func runRuleList(cmd *cobra.Command, args []string) error {
	orgID, err := requireOrg()
	if err != nil {
		return err
	}

	repo, _, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	rules, err := repo.ListActiveRules(cmd.Context(), orgID)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tFREQUENCY\tAMOUNT\tSTART\tEND\tWATERMARK\tCLIENT")
	for _, rule := range rules {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rule.ID, rule.Kind, rule.Frequency, rule.Amount,
			formatDate(rule.StartDate), formatDate(rule.EndDate),
			formatDate(rule.Watermark), rule.ClientID)
	}
	return w.Flush()
}

func runRuleEnd(cmd *cobra.Command, args []string) error {
	orgID, err := requireOrg()
	if err != nil {
		return err
	}

	repo, _, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := repo.EndRule(cmd.Context(), orgID, args[0]); err != nil {
		return fmt.Errorf("end rule: %w", err)
	}
	fmt.Printf("Ended rule %s\n", args[0])
	return nil
}
