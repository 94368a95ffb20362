package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a trading-volume file",
	Long: `Imports one volume file through the full pipeline: format
detection, parsing, per-date aggregation and persistence. Multi-date
historical files are processed date by date with per-date failure
isolation.

Example:
  go run ./cmd/voltrend import data/daily-2024-01-15.txt
  go run ./cmd/voltrend import data/history-2023.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	job, err := a.orchestrator.StartImport(context.Background(), filepath.Base(path), info.Size(), f)
	if err != nil {
		return err
	}

	// Block until background processing is done too
	a.orchestrator.Wait()

	final, err := a.orchestrator.GetProgress(context.Background(), job.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Job %s: %s\n", final.ID, final.Status)
	fmt.Printf("  dates: %d total, %d completed, %d failed\n",
		final.TotalDates, len(final.CompletedDates), len(final.FailedDates))
	for _, f := range final.FailedDates {
		fmt.Printf("  FAILED %s: %s\n", f.Date, f.Error)
	}

	if len(final.FailedDates) > 0 {
		return fmt.Errorf("%d dates failed", len(final.FailedDates))
	}
	return nil
}
