package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hedgectl",
	Short: "Hedge Control - daily valuation pipeline for LME hedges",
	Long: `Hedge Control CLI

Runs and inspects the daily snapshot pipeline: mark-to-market, PnL,
cashflow baseline, risk flags and treasury exports over the hedge book.

Examples:
  go run ./cmd/hedgectl pipeline run --as-of 2026-01-16
  go run ./cmd/hedgectl pipeline run --as-of 2026-01-16 --mode dry_run
  go run ./cmd/hedgectl pipeline resume 7b0d5cf0-...
  go run ./cmd/hedgectl prices sync
  go run ./cmd/hedgectl scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
