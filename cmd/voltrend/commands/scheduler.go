package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhangwt/voltrend/backend/internal/scheduler"
	"github.com/zhangwt/voltrend/backend/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the standalone import scheduler",
	Long: `Runs the cron scheduler without the API server. The daily
import job sweeps the watch directory after market close on trading
weekdays and imports every file it finds.

Example:
  go run ./cmd/voltrend scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.log)
	importJob := jobs.NewDailyImportJob(a.orchestrator, a.cfg.Import.WatchDir, a.log)
	if err := sched.AddJob(importJob); err != nil {
		return fmt.Errorf("schedule daily import: %w", err)
	}

	sched.Start()
	fmt.Printf("Scheduler running, watching %s\n", a.cfg.Import.WatchDir)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}
