package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// Processor is one format strategy. CanProcess judges a bounded sample
// of the file; Parse converts the full text into canonical records.
// Both are pure functions of their input.
type Processor interface {
	Name() string

	// CanProcess inspects a sample (the first sampleLines lines) and the
	// filename, returning whether this processor understands the layout
	// and with what confidence in [0, 1].
	CanProcess(sample, filename string) (bool, float64)

	// Parse converts the whole file. Malformed lines are counted into
	// the result, never returned as an error; the error return is for
	// failures that invalidate the parse as a whole.
	Parse(text string) (*contracts.ProcessResult, error)
}

// date layouts accepted across all text formats, in match order
var dateLayouts = []string{
	contracts.DateFormat, // 2024-01-15
	"2006/01/02",
	"20060102",
}

// parseTradingDate parses a date cell, normalizing to UTC midnight so
// identical dates from different layouts compare equal.
func parseTradingDate(s string) (time.Time, error) {
	cell := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseVolume parses a volume cell. Thousands separators are tolerated;
// negative volumes are rejected at the row level.
func parseVolume(s string) (int64, error) {
	cell := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		// Some sources export volume as a float ("1000000.0")
		f, ferr := strconv.ParseFloat(cell, 64)
		if ferr != nil {
			return 0, fmt.Errorf("unparseable volume %q", s)
		}
		v = int64(f)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative volume %q", s)
	}
	return v, nil
}

// splitLines splits file text into lines, tolerating CRLF endings.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// sampleStats is what the tab processors learn from a sample.
type sampleStats struct {
	lines     int // non-blank lines inspected
	tabular   int // lines with exactly 3 tab-separated fields
	dates     map[string]bool
	dateCount int
}

// inspectTabSample counts layout evidence in a sample without building
// any records.
func inspectTabSample(sample string) sampleStats {
	stats := sampleStats{dates: make(map[string]bool)}

	for _, line := range splitLines(sample) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.lines++

		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			continue
		}
		stats.tabular++

		if d, err := parseTradingDate(fields[1]); err == nil {
			stats.dates[d.Format(contracts.DateFormat)] = true
		}
	}

	stats.dateCount = len(stats.dates)
	return stats
}
