package importer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhangwt/voltrend/backend/internal/aggregate"
	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/internal/ingest"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
)

// Orchestrator drives one file through partitioning, parsing,
// aggregation and persistence, date by date, recording progress in the
// job store after every date. It is the only writer of ImportJob state.
type Orchestrator struct {
	registry   *ingest.Registry
	aggregator *aggregate.Aggregator
	records    contracts.RecordRepository
	summaries  contracts.SummaryRepository
	jobs       contracts.JobRepository
	locks      *aggregate.DateLocks

	// Files at or below this size run inside the caller's request;
	// larger ones are handed to a background goroutine.
	syncThreshold int64

	log *logger.Logger
	wg  sync.WaitGroup
}

// New creates an import orchestrator.
func New(
	registry *ingest.Registry,
	aggregator *aggregate.Aggregator,
	records contracts.RecordRepository,
	summaries contracts.SummaryRepository,
	jobs contracts.JobRepository,
	locks *aggregate.DateLocks,
	syncThreshold int64,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:      registry,
		aggregator:    aggregator,
		records:       records,
		summaries:     summaries,
		jobs:          jobs,
		locks:         locks,
		syncThreshold: syncThreshold,
		log:           log.WithComponent("importer"),
	}
}

// StartImport partitions the input and either processes it inline
// (small files) or spawns a background worker. Either way the returned
// job is already saved and pollable by ID.
//
// Fatal pre-processing failures (unreadable input, no dates found) move
// the job straight to failed and are returned as a JobFatalError.
func (o *Orchestrator) StartImport(ctx context.Context, filename string, size int64, r io.Reader) (*contracts.ImportJob, error) {
	job := &contracts.ImportJob{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    contracts.JobPending,
		StartTime: time.Now().UTC(),
	}

	part, err := ingest.PartitionByDate(r)
	if err != nil {
		return o.failJob(ctx, job, &contracts.JobFatalError{Stage: "read", Err: err})
	}
	if len(part.Dates) == 0 {
		return o.failJob(ctx, job, &contracts.JobFatalError{Stage: "partition", Err: contracts.ErrNoData})
	}

	job.TotalDates = len(part.Dates)
	if err := o.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	o.log.Infof("import %s: %s spans %d dates (%d undated lines skipped)",
		job.ID, filename, len(part.Dates), part.Skipped)

	if size > 0 && size <= o.syncThreshold {
		o.run(ctx, job, part, filename)
		return job, nil
	}

	// The worker owns the job struct from here on; callers get a
	// snapshot and poll the store for anything newer.
	snapshot := *job

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// Detached from the triggering request's lifetime
		o.run(context.Background(), job, part, filename)
	}()

	return &snapshot, nil
}

// GetProgress returns the current snapshot of a job.
func (o *Orchestrator) GetProgress(ctx context.Context, jobID string) (*contracts.ImportJob, error) {
	return o.jobs.Load(ctx, jobID)
}

// ListRecent returns the latest jobs, newest first.
func (o *Orchestrator) ListRecent(ctx context.Context, limit int) ([]*contracts.ImportJob, error) {
	return o.jobs.ListRecent(ctx, limit)
}

// Wait blocks until every background import has finished. Used on
// shutdown and in tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run processes every partitioned date strictly in order. One date's
// failure is recorded and the loop moves on; the job completes once
// every date has been attempted.
func (o *Orchestrator) run(ctx context.Context, job *contracts.ImportJob, part *ingest.Partition, filename string) {
	job.Status = contracts.JobProcessing
	o.saveProgress(ctx, job)

	for _, dateKey := range part.Dates {
		job.CurrentDate = dateKey
		o.saveProgress(ctx, job)

		if err := o.processDate(ctx, dateKey, part.Lines[dateKey], filename); err != nil {
			o.log.WithError(err).Warnf("import %s: date %s failed", job.ID, dateKey)
			job.MarkDateFailed(dateKey, &contracts.DateProcessingError{Date: dateKey, Err: err})
		} else {
			job.MarkDateCompleted(dateKey)
		}
		o.saveProgress(ctx, job)
	}

	job.Finish(time.Now().UTC())
	o.saveProgress(ctx, job)

	o.log.Infof("import %s finished: %d completed, %d failed of %d dates",
		job.ID, len(job.CompletedDates), len(job.FailedDates), job.TotalDates)
}

// processDate runs one date end to end under that date's lock:
// parse the chunk, persist canonical records, aggregate, replace the
// date's summaries and rankings.
func (o *Orchestrator) processDate(ctx context.Context, dateKey string, lines []string, filename string) error {
	date, err := time.Parse(contracts.DateFormat, dateKey)
	if err != nil {
		return fmt.Errorf("bad date key %q: %w", dateKey, err)
	}
	date = date.UTC()

	o.locks.Lock(dateKey)
	defer o.locks.Unlock(dateKey)

	chunk := strings.Join(lines, "\n")
	result, processor, err := o.registry.Parse(chunk, filename)
	if err != nil {
		return err
	}

	// The partition pass groups by extracted date; drop any row whose
	// fully parsed date disagrees rather than corrupting the batch.
	records := result.Records[:0]
	for _, rec := range result.Records {
		if rec.DateKey() != dateKey {
			result.AddRowError(fmt.Sprintf("row for %s dated %s in chunk %s", rec.NormalizedCode, rec.DateKey(), dateKey))
			continue
		}
		records = append(records, rec)
	}
	result.Records = records

	o.log.Debugf("date %s: processor %s parsed %d/%d rows (%d errors)",
		dateKey, processor, result.ValidCount, result.TotalCount, result.ErrorCount)

	if err := o.records.ReplaceDay(ctx, date, result.Records); err != nil {
		return fmt.Errorf("persist records: %w", err)
	}

	summaries, rankings, err := o.aggregator.Aggregate(ctx, date, result.Records)
	if err != nil {
		return err
	}

	if err := o.summaries.ReplaceDay(ctx, date, summaries, rankings); err != nil {
		return fmt.Errorf("persist summaries: %w", err)
	}

	return nil
}

// failJob marks a job failed before any date-level work and persists it
// so the failure is pollable.
func (o *Orchestrator) failJob(ctx context.Context, job *contracts.ImportJob, fatal *contracts.JobFatalError) (*contracts.ImportJob, error) {
	job.Fail(time.Now().UTC())
	o.saveProgress(ctx, job)
	return job, fatal
}

func (o *Orchestrator) saveProgress(ctx context.Context, job *contracts.ImportJob) {
	if err := o.jobs.Save(ctx, job); err != nil {
		o.log.WithError(err).Errorf("save progress for job %s", job.ID)
	}
}
