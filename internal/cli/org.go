package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"fatture/internal/core"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var flagOrgName string

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage organizations",
}

var orgAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an organization",
	RunE:  runOrgAdd,
}

var orgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List organizations",
	RunE:  runOrgList,
}

func init() {
	orgAddCmd.Flags().StringVar(&flagOrgName, "name", "", "Organization name")
	orgAddCmd.MarkFlagRequired("name")

	orgCmd.AddCommand(orgAddCmd)
	orgCmd.AddCommand(orgListCmd)
}

func runOrgAdd(cmd *cobra.Command, args []string) error {
	repo, _, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	org := core.Organization{
		ID:     uuid.NewString(),
		Name:   flagOrgName,
		Active: true,
	}
	if err := org.Validate(); err != nil {
		return err
	}
	if err := repo.InsertOrganization(cmd.Context(), org); err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}

	fmt.Printf("Created organization %s (%s)\n", org.ID, org.Name)
	return nil
}

func runOrgList(cmd *cobra.Command, args []string) error {
	repo, _, cleanup, err := openRepo()
	if err != nil {
		return err
	}
	defer cleanup()

	orgs, err := repo.ListActiveOrganizations(cmd.Context())
	if err != nil {
		return fmt.Errorf("list organizations: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, org := range orgs {
		fmt.Fprintf(w, "%s\t%s\n", org.ID, org.Name)
	}
	return w.Flush()
}
