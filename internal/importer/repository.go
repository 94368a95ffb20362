package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// Repository persists import job snapshots for progress polling.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new job repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.JobRepository = (*Repository)(nil)

// Save upserts the full job snapshot. The orchestrator calls this after
// every date, so the stored row is always a coherent snapshot.
func (r *Repository) Save(ctx context.Context, job *contracts.ImportJob) error {
	completed, err := json.Marshal(job.CompletedDates)
	if err != nil {
		return fmt.Errorf("marshal completed dates: %w", err)
	}
	failed, err := json.Marshal(job.FailedDates)
	if err != nil {
		return fmt.Errorf("marshal failed dates: %w", err)
	}

	query := `
		INSERT INTO ingest.import_jobs (
			id, filename, status, total_dates, completed_dates,
			failed_dates, active_date, start_time, end_time, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			total_dates = EXCLUDED.total_dates,
			completed_dates = EXCLUDED.completed_dates,
			failed_dates = EXCLUDED.failed_dates,
			active_date = EXCLUDED.active_date,
			end_time = EXCLUDED.end_time,
			updated_at = NOW()
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID, job.Filename, job.Status, job.TotalDates,
		completed, failed, job.CurrentDate, job.StartTime, job.EndTime,
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Load returns one job by ID, or contracts.ErrJobNotFound.
func (r *Repository) Load(ctx context.Context, jobID string) (*contracts.ImportJob, error) {
	query := `
		SELECT id, filename, status, total_dates, completed_dates,
		       failed_dates, active_date, start_time, end_time
		FROM ingest.import_jobs
		WHERE id = $1
	`
	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return job, nil
}

// ListRecent returns the latest jobs, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*contracts.ImportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, filename, status, total_dates, completed_dates,
		       failed_dates, active_date, start_time, end_time
		FROM ingest.import_jobs
		ORDER BY start_time DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*contracts.ImportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*contracts.ImportJob, error) {
	job := &contracts.ImportJob{}
	var completed, failed []byte

	err := row.Scan(
		&job.ID, &job.Filename, &job.Status, &job.TotalDates,
		&completed, &failed, &job.CurrentDate, &job.StartTime, &job.EndTime,
	)
	if err != nil {
		return nil, err
	}

	if len(completed) > 0 {
		if err := json.Unmarshal(completed, &job.CompletedDates); err != nil {
			return nil, fmt.Errorf("unmarshal completed dates: %w", err)
		}
	}
	if len(failed) > 0 {
		if err := json.Unmarshal(failed, &job.FailedDates); err != nil {
			return nil, fmt.Errorf("unmarshal failed dates: %w", err)
		}
	}
	return job, nil
}
