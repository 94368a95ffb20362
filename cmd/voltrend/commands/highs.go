package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// highsCmd represents the highs command
var highsCmd = &cobra.Command{
	Use:   "highs",
	Short: "List concepts at a rolling-window volume high",
	Long: `Scans stored concept summaries and lists every concept whose
aggregate volume on the given date equals the maximum over the trailing
window.

Example:
  go run ./cmd/voltrend highs --date 2024-01-15
  go run ./cmd/voltrend highs --date 2024-01-15 --window 10`,
	RunE: runHighs,
}

var (
	highsDate   string
	highsWindow int
)

func init() {
	rootCmd.AddCommand(highsCmd)

	highsCmd.Flags().StringVar(&highsDate, "date", "", "as-of date (default today)")
	highsCmd.Flags().IntVar(&highsWindow, "window", 0, "window in days (default from config)")
}

func runHighs(cmd *cobra.Command, args []string) error {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if highsDate != "" {
		var err error
		date, err = time.Parse(contracts.DateFormat, highsDate)
		if err != nil {
			return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", highsDate)
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	highs, err := a.detector.FindInnovationHighs(context.Background(), date, highsWindow)
	if err != nil {
		return err
	}

	if len(highs) == 0 {
		fmt.Printf("No innovation highs on %s\n", date.Format(contracts.DateFormat))
		return nil
	}

	fmt.Printf("Innovation highs on %s:\n", date.Format(contracts.DateFormat))
	for _, h := range highs {
		fmt.Printf("  %-20s volume=%d stocks=%d share=%.2f%%\n",
			h.ConceptName, h.TotalVolume, h.StockCount, h.VolumePercentage)
	}
	return nil
}
