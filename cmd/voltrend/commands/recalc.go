package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// recalcCmd represents the recalc command
var recalcCmd = &cobra.Command{
	Use:   "recalc <date>",
	Short: "Rebuild one date's summaries and rankings",
	Long: `Re-derives concept summaries and rankings for an already
imported date from the stored canonical records. The original file is
not needed. Used after correcting metadata or fixing a parser issue.

Example:
  go run ./cmd/voltrend recalc 2024-01-15`,
	Args: cobra.ExactArgs(1),
	RunE: runRecalc,
}

func init() {
	rootCmd.AddCommand(recalcCmd)
}

func runRecalc(cmd *cobra.Command, args []string) error {
	date, err := time.Parse(contracts.DateFormat, args[0])
	if err != nil {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", args[0])
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.recalc.Recalculate(context.Background(), date)
	if err != nil {
		return err
	}

	fmt.Printf("Recalculated %s\n", args[0])
	fmt.Printf("  concepts:         %d\n", stats.ConceptCount)
	fmt.Printf("  rankings:         %d\n", stats.RankingCount)
	fmt.Printf("  innovation highs: %d\n", stats.InnovationHighCount)
	return nil
}
