package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
	"github.com/zhangwt/voltrend/backend/pkg/redis"
)

// minObservedDays is how many days of history a concept needs inside
// the window before it can be flagged at all. A single observation is
// trivially its own maximum, which would flag every brand-new concept.
const minObservedDays = 2

// Detector finds concepts whose aggregate volume on a date is at the
// maximum over a trailing window. Pure read-side computation over
// stored summaries; results are cached, never persisted.
type Detector struct {
	repo       contracts.SummaryRepository
	cache      *redis.Cache
	windowDays int
	cacheTTL   time.Duration
	log        *logger.Logger
}

// NewDetector creates a detector with the given default window.
// cache may be a disabled client's cache; lookups then always miss.
func NewDetector(repo contracts.SummaryRepository, cache *redis.Cache, windowDays int, cacheTTL time.Duration, log *logger.Logger) *Detector {
	return &Detector{
		repo:       repo,
		cache:      cache,
		windowDays: windowDays,
		cacheTTL:   cacheTTL,
		log:        log.WithComponent("analytics.detector"),
	}
}

// DefaultWindowDays returns the detector's configured default window.
func (d *Detector) DefaultWindowDays() int {
	return d.windowDays
}

// FindInnovationHighs returns the summaries of every concept whose
// TotalVolume on asOfDate equals the maximum over the window
// [asOfDate - windowDays, asOfDate].
//
// The rule is "at the max or matching it": a day that ties an earlier
// maximum still counts as a high. Concepts with fewer than two observed
// days in the window are excluded rather than trivially flagged.
func (d *Detector) FindInnovationHighs(ctx context.Context, asOfDate time.Time, windowDays int) ([]contracts.ConceptDailySummary, error) {
	if windowDays <= 0 {
		windowDays = d.windowDays
	}
	if windowDays < minObservedDays {
		return nil, fmt.Errorf("window of %d days is too short to detect a high", windowDays)
	}

	var highs []contracts.ConceptDailySummary
	key := redis.InnovationHighKey(asOfDate.Format(contracts.DateFormat), windowDays)
	err := d.cache.GetOrSet(ctx, key, &highs, d.cacheTTL, func() (interface{}, error) {
		return d.compute(ctx, asOfDate, windowDays)
	})
	if err != nil {
		return nil, err
	}
	return highs, nil
}

// Invalidate drops the cached result for one (date, window) pair.
// Recalculation calls this before re-detecting so a repaired date never
// serves stale highs.
func (d *Detector) Invalidate(ctx context.Context, asOfDate time.Time, windowDays int) error {
	if windowDays <= 0 {
		windowDays = d.windowDays
	}
	key := redis.InnovationHighKey(asOfDate.Format(contracts.DateFormat), windowDays)
	return d.cache.Delete(ctx, key)
}

func (d *Detector) compute(ctx context.Context, asOfDate time.Time, windowDays int) ([]contracts.ConceptDailySummary, error) {
	from := asOfDate.AddDate(0, 0, -windowDays)
	asOfKey := asOfDate.Format(contracts.DateFormat)

	summaries, err := d.repo.GetSummariesInWindow(ctx, from, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("load window summaries: %w", err)
	}

	type conceptWindow struct {
		observed int
		max      int64
		asOf     *contracts.ConceptDailySummary
	}
	windows := make(map[string]*conceptWindow)

	for i := range summaries {
		s := &summaries[i]
		w := windows[s.ConceptName]
		if w == nil {
			w = &conceptWindow{}
			windows[s.ConceptName] = w
		}
		w.observed++
		if s.TotalVolume > w.max {
			w.max = s.TotalVolume
		}
		if s.DateKey() == asOfKey {
			w.asOf = s
		}
	}

	// Results come out in repository order (concept name ascending)
	// so repeated calls serialize identically.
	highs := make([]contracts.ConceptDailySummary, 0)
	seen := make(map[string]bool)
	for i := range summaries {
		s := &summaries[i]
		if seen[s.ConceptName] {
			continue
		}
		seen[s.ConceptName] = true

		w := windows[s.ConceptName]
		if w.asOf == nil || w.observed < minObservedDays {
			continue
		}
		if w.asOf.TotalVolume == w.max {
			highs = append(highs, *w.asOf)
		}
	}

	d.log.Debugf("innovation highs for %s over %d days: %d of %d concepts",
		asOfKey, windowDays, len(highs), len(windows))

	return highs, nil
}
