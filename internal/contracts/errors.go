package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers as explicit failures.
var (
	// ErrUnrecognizedFormat means no processor cleared the confidence
	// threshold. The caller must not guess a format.
	ErrUnrecognizedFormat = errors.New("unrecognized file format")

	// ErrNoData means the file contained no parseable trading dates.
	ErrNoData = errors.New("no trading dates found in file")

	// ErrJobNotFound means the requested import job does not exist.
	ErrJobNotFound = errors.New("import job not found")
)

// DateProcessingError wraps a failure that is scoped to one trading
// date. It is recorded in the job's FailedDates and processing moves on.
type DateProcessingError struct {
	Date string
	Err  error
}

func (e *DateProcessingError) Error() string {
	return fmt.Sprintf("processing date %s: %v", e.Date, e.Err)
}

func (e *DateProcessingError) Unwrap() error { return e.Err }

// JobFatalError is a pre-processing failure that prevents any date-level
// work, transitioning the job straight to failed.
type JobFatalError struct {
	Stage string // "read", "detect", "partition"
	Err   error
}

func (e *JobFatalError) Error() string {
	return fmt.Sprintf("import failed at %s: %v", e.Stage, e.Err)
}

func (e *JobFatalError) Unwrap() error { return e.Err }

// ConsistencyError signals a violated invariant (negative volume,
// overlapping completed/failed sets, ...). These fail loudly because
// rankings downstream depend on the data being right.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "consistency violation: " + e.Reason
}
