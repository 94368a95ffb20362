package commands

import (
	"fmt"

	"github.com/zhangwt/voltrend/backend/internal/aggregate"
	"github.com/zhangwt/voltrend/backend/internal/analytics"
	"github.com/zhangwt/voltrend/backend/internal/importer"
	"github.com/zhangwt/voltrend/backend/internal/ingest"
	"github.com/zhangwt/voltrend/backend/internal/metadata"
	"github.com/zhangwt/voltrend/backend/internal/recalc"
	"github.com/zhangwt/voltrend/backend/pkg/config"
	"github.com/zhangwt/voltrend/backend/pkg/database"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
	"github.com/zhangwt/voltrend/backend/pkg/redis"
)

// app bundles the wired components every command starts from.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	registry     *ingest.Registry
	aggregator   *aggregate.Aggregator
	summaries    *aggregate.Repository
	records      *ingest.Repository
	jobs         *importer.Repository
	orchestrator *importer.Orchestrator
	detector     *analytics.Detector
	recalc       *recalc.Controller
}

// newApp loads config and wires the full pipeline.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		redis: redisClient,
	}

	resolver := metadata.NewResolver(db.Pool)
	cache := redis.NewCache(redisClient, "voltrend")
	locks := aggregate.NewDateLocks()

	a.registry = ingest.NewDefaultRegistry(cfg.Import.MaxErrorRate, log)
	a.aggregator = aggregate.New(resolver, log)
	a.summaries = aggregate.NewRepository(db.Pool)
	a.records = ingest.NewRepository(db.Pool)
	a.jobs = importer.NewRepository(db.Pool)
	a.orchestrator = importer.New(
		a.registry, a.aggregator, a.records, a.summaries, a.jobs,
		locks, cfg.Import.SyncSizeThreshold, log,
	)
	a.detector = analytics.NewDetector(
		a.summaries, cache, cfg.Detector.DefaultWindowDays, cfg.Detector.CacheTTL, log,
	)
	a.recalc = recalc.New(a.records, a.aggregator, a.summaries, a.detector, locks, log)

	return a, nil
}

// Close releases the app's connections.
func (a *app) Close() {
	a.orchestrator.Wait()
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
