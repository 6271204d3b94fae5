// Package cli implements the operator command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"fatture/internal/backend"
	"fatture/internal/config"
	"fatture/internal/core"
	"fatture/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagOrg  string
	flagAsOf string
)

var rootCmd = &cobra.Command{
	Use:          "fatture",
	Short:        "Recurring billing engine CLI",
	Long:         "Manage organizations, recurrence rules and ledger entries, run materialization, and inspect projections.",
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOrg, "org", "o", "", "Organization ID")
	rootCmd.PersistentFlags().StringVar(&flagAsOf, "as-of", "", "Reference date (YYYY-MM-DD, default today)")

	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(materializeCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(defaultersCmd)
}

// openRepo loads configuration and opens the configured storage backend.
// The returned cleanup function is safe to call even when nil-backed.
func openRepo() (storage.Repository, *config.Config, func(), error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	result, err := backend.NewFactory(slog.Default()).CreateRepository(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				slog.Error("Failed to close repository", "error", err)
			}
		}
	}
	return result.Repo, cfg, cleanup, nil
}

// requireOrg returns the --org flag or an error when missing.
func requireOrg() (string, error) {
	if flagOrg == "" {
		return "", fmt.Errorf("--org is required")
	}
	return flagOrg, nil
}

// asOfDate resolves --as-of, defaulting to today.
func asOfDate() (core.Date, error) {
	if flagAsOf == "" {
		return core.DateOf(time.Now()), nil
	}
	return parseDate(flagAsOf)
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return core.DateOf(t), nil
}

func formatDate(d core.Date) string {
	if d.IsEmpty() {
		return "-"
	}
	return d.Format("2006-01-02")
}
