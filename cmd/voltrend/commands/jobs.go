package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent import jobs",
	Long: `Lists the latest import jobs with their progress.

Example:
  go run ./cmd/voltrend jobs
  go run ./cmd/voltrend jobs --limit 50`,
	RunE: runJobs,
}

var jobsLimit int

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "how many jobs to show")
}

func runJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.orchestrator.ListRecent(context.Background(), jobsLimit)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No import jobs found")
		return nil
	}

	for _, j := range jobs {
		fmt.Printf("%s  %-10s  %3.0f%%  %s (%d/%d dates",
			j.StartTime.Format("2006-01-02 15:04:05"), j.Status,
			j.Progress()*100, j.Filename, j.AttemptedDates(), j.TotalDates)
		if len(j.FailedDates) > 0 {
			fmt.Printf(", %d failed", len(j.FailedDates))
		}
		fmt.Println(")")
	}
	return nil
}
