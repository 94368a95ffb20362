package contracts

import "time"

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// DateFailure records one trading date whose processing failed.
type DateFailure struct {
	Date  string `json:"date"` // canonical DateFormat
	Error string `json:"error"`
}

// ImportJob is the progress record of one file-level import, possibly
// spanning many trading dates. The orchestrator is the only writer;
// the polling API reads snapshots through the job store.
//
// Invariants: CompletedDates and FailedDates are disjoint; the job is
// completed only once every partitioned date has been attempted; a
// date's failure never blocks the dates after it.
type ImportJob struct {
	ID             string        `json:"id"`
	Filename       string        `json:"filename"`
	Status         JobStatus     `json:"status"`
	TotalDates     int           `json:"total_dates"`
	CompletedDates []string      `json:"completed_dates"`
	FailedDates    []DateFailure `json:"failed_dates"`
	CurrentDate    string        `json:"current_date,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        *time.Time    `json:"end_time,omitempty"`
}

// AttemptedDates returns how many dates have finished, either way.
func (j *ImportJob) AttemptedDates() int {
	return len(j.CompletedDates) + len(j.FailedDates)
}

// Progress returns the attempted/total ratio in [0, 1].
func (j *ImportJob) Progress() float64 {
	if j.TotalDates == 0 {
		return 0
	}
	return float64(j.AttemptedDates()) / float64(j.TotalDates)
}

// IsTerminal reports whether the job can no longer change.
func (j *ImportJob) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// MarkDateCompleted records a successfully processed date.
func (j *ImportJob) MarkDateCompleted(date string) {
	j.CompletedDates = append(j.CompletedDates, date)
	j.CurrentDate = date
}

// MarkDateFailed records a failed date without stopping the job.
func (j *ImportJob) MarkDateFailed(date string, err error) {
	j.FailedDates = append(j.FailedDates, DateFailure{Date: date, Error: err.Error()})
	j.CurrentDate = date
}

// Finish transitions the job to its terminal state once every date has
// been attempted, stamping the end time.
func (j *ImportJob) Finish(now time.Time) {
	j.Status = JobCompleted
	j.EndTime = &now
}

// Fail transitions the job to failed for a job-level fatal error.
// Already-attempted dates are preserved for audit.
func (j *ImportJob) Fail(now time.Time) {
	j.Status = JobFailed
	j.EndTime = &now
}

// Validate checks the job's internal invariants.
func (j *ImportJob) Validate() error {
	seen := make(map[string]bool, len(j.CompletedDates))
	for _, d := range j.CompletedDates {
		seen[d] = true
	}
	for _, f := range j.FailedDates {
		if seen[f.Date] {
			return &ConsistencyError{Reason: "date " + f.Date + " is both completed and failed"}
		}
	}
	if j.AttemptedDates() > j.TotalDates && j.TotalDates > 0 {
		return &ConsistencyError{Reason: "attempted more dates than partitioned"}
	}
	return nil
}
