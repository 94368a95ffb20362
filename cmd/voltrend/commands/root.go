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
	Use:   "voltrend",
	Short: "VolTrend - stock trading volume ingestion and concept analytics",
	Long: `VolTrend ingests daily trading-volume files in several text formats,
aggregates them into per-concept summaries and intra-concept rankings,
and flags concepts trading at a rolling-window volume high.

Usage:
  go run ./cmd/voltrend [command]

Examples:
  go run ./cmd/voltrend api
  go run ./cmd/voltrend import data/history.txt
  go run ./cmd/voltrend recalc 2024-01-15
  go run ./cmd/voltrend highs --date 2024-01-15 --window 30`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
