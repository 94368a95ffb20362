package recalc

import (
	"context"
	"fmt"
	"time"

	"github.com/zhangwt/voltrend/backend/internal/aggregate"
	"github.com/zhangwt/voltrend/backend/internal/analytics"
	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
)

// Controller rebuilds one date's derived data from the stored canonical
// records. The original file is not needed, so this works long after
// the upload is gone. It reports the same stats shape as a fresh import
// on purpose: callers cannot tell a repair from a first run.
type Controller struct {
	records    contracts.RecordRepository
	aggregator *aggregate.Aggregator
	summaries  contracts.SummaryRepository
	detector   *analytics.Detector
	locks      *aggregate.DateLocks
	log        *logger.Logger
}

// New creates a recalculation controller. locks must be the same
// instance the import orchestrator holds.
func New(
	records contracts.RecordRepository,
	aggregator *aggregate.Aggregator,
	summaries contracts.SummaryRepository,
	detector *analytics.Detector,
	locks *aggregate.DateLocks,
	log *logger.Logger,
) *Controller {
	return &Controller{
		records:    records,
		aggregator: aggregator,
		summaries:  summaries,
		detector:   detector,
		locks:      locks,
		log:        log.WithComponent("recalc"),
	}
}

// Recalculate re-derives summaries and rankings for one trading date
// and atomically replaces whatever was stored before. A date with no
// canonical records fails with ErrNoData rather than silently wiping
// the date's analytics.
func (c *Controller) Recalculate(ctx context.Context, date time.Time) (*contracts.RecalcStats, error) {
	dateKey := date.Format(contracts.DateFormat)

	c.locks.Lock(dateKey)
	defer c.locks.Unlock(dateKey)

	records, err := c.records.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load records for %s: %w", dateKey, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("recalculate %s: %w", dateKey, contracts.ErrNoData)
	}

	summaries, rankings, err := c.aggregator.Aggregate(ctx, date, records)
	if err != nil {
		return nil, err
	}

	if err := c.summaries.ReplaceDay(ctx, date, summaries, rankings); err != nil {
		return nil, fmt.Errorf("replace summaries for %s: %w", dateKey, err)
	}

	if err := c.detector.Invalidate(ctx, date, 0); err != nil {
		c.log.WithError(err).Warnf("invalidate highs cache for %s", dateKey)
	}
	highs, err := c.detector.FindInnovationHighs(ctx, date, 0)
	if err != nil {
		return nil, fmt.Errorf("detect highs for %s: %w", dateKey, err)
	}

	stats := &contracts.RecalcStats{
		ConceptCount:        len(summaries),
		RankingCount:        len(rankings),
		InnovationHighCount: len(highs),
	}

	c.log.Infof("recalculated %s: %d concepts, %d rankings, %d highs",
		dateKey, stats.ConceptCount, stats.RankingCount, stats.InnovationHighCount)

	return stats, nil
}
