package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhangwt/voltrend/backend/internal/api"
	"github.com/zhangwt/voltrend/backend/internal/api/handlers"
	"github.com/zhangwt/voltrend/backend/internal/scheduler"
	"github.com/zhangwt/voltrend/backend/internal/scheduler/jobs"
	"github.com/zhangwt/voltrend/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Starts the HTTP API server.

Endpoints:
  GET  /health                          - Health check
  POST /api/import                      - Upload a volume file
  GET  /api/import/jobs                 - Recent import jobs
  GET  /api/import/{jobID}              - Import progress
  GET  /api/concepts/summary            - Concept daily summaries
  GET  /api/concepts/{concept}/rankings - Intra-concept stock ranking
  GET  /api/concepts/highs              - Innovation highs
  GET  /api/stocks/{code}/concepts      - Reverse concept lookup
  POST /api/recalculate                 - Rebuild one date

Example:
  go run ./cmd/voltrend api
  go run ./cmd/voltrend api --port 8090 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	withScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
	apiCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "run the daily import scheduler in-process")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	rateLimiter := redis.NewRateLimiter(a.redis, "voltrend")
	importHandler := handlers.NewImportHandler(a.orchestrator, a.cfg.Import.TriggerRateLimit, rateLimiter, log)
	conceptHandler := handlers.NewConceptHandler(a.summaries, a.detector, log)
	recalcHandler := handlers.NewRecalcHandler(a.recalc, log)

	router := api.NewRouter(importHandler, conceptHandler, recalcHandler, a.db, log)
	server := api.New(a.cfg, log, router)

	var sched *scheduler.Scheduler
	if withScheduler {
		sched = scheduler.New(log)
		importJob := jobs.NewDailyImportJob(a.orchestrator, a.cfg.Import.WatchDir, log)
		if err := sched.AddJob(importJob); err != nil {
			return fmt.Errorf("schedule daily import: %w", err)
		}
		sched.Start()
	}

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
