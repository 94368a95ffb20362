package contracts

import (
	"context"
	"time"
)

// Repository interfaces are defined here; implementations live beside
// the feature that owns the data.

// RecordRepository persists canonical trading records. This is the
// audit substrate recalculation rebuilds from, so writes for a date
// replace whatever was there before.
type RecordRepository interface {
	ReplaceDay(ctx context.Context, date time.Time, records []TradingRecord) error
	GetByDate(ctx context.Context, date time.Time) ([]TradingRecord, error)
	CountByDate(ctx context.Context, date time.Time) (int, error)
}

// SummaryRepository persists concept summaries and intra-concept
// rankings. ReplaceDay is atomic: either the date's prior rows are all
// gone and the fresh set is in, or nothing changed.
type SummaryRepository interface {
	ReplaceDay(ctx context.Context, date time.Time, summaries []ConceptDailySummary, rankings []StockConceptRanking) error

	GetSummaries(ctx context.Context, date time.Time, filter SummaryFilter, sort SummarySort) ([]ConceptDailySummary, error)
	GetSummaryHistory(ctx context.Context, concept string, from, to time.Time) ([]ConceptDailySummary, error)
	GetSummariesInWindow(ctx context.Context, from, to time.Time) ([]ConceptDailySummary, error)

	GetRankings(ctx context.Context, concept string, date time.Time) ([]StockConceptRanking, error)
	GetStockConcepts(ctx context.Context, stockCode string, date time.Time) ([]ConceptInfo, error)
}

// JobRepository stores import job progress. Save overwrites the full
// snapshot; Load must stay readable while the job is running.
type JobRepository interface {
	Save(ctx context.Context, job *ImportJob) error
	Load(ctx context.Context, jobID string) (*ImportJob, error)
	ListRecent(ctx context.Context, limit int) ([]*ImportJob, error)
}

// StockMetadataResolver is the master-data collaborator. The aggregator
// uses it for concept membership; reporting uses the convertible-bond
// flag to segregate bond-like instruments from equities.
type StockMetadataResolver interface {
	ResolveStock(ctx context.Context, normalizedCode string) (*StockMeta, error)
}
