package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// scanBufSize caps a single input line; historical exports never come
// close, but bufio's default 64K would be a silent landmine.
const scanBufSize = 1 << 20

// Partition is the result of the cheap date-splitting pass over a file:
// raw lines grouped per trading date, dates kept in the order they
// first appear, no full parsing done yet.
type Partition struct {
	Dates   []string            // first-appearance order
	Lines   map[string][]string // dateKey -> raw lines
	Skipped int                 // non-blank lines without a readable date (headers etc.)
}

// PartitionByDate streams the input line by line and groups lines by
// the trading date each one carries. This is the first pass the import
// orchestrator runs, so it must handle large historical files without
// loading them whole.
func PartitionByDate(r io.Reader) (*Partition, error) {
	part := &Partition{Lines: make(map[string][]string)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), scanBufSize)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		dateKey, ok := extractLineDate(line)
		if !ok {
			part.Skipped++
			continue
		}

		if _, seen := part.Lines[dateKey]; !seen {
			part.Dates = append(part.Dates, dateKey)
		}
		part.Lines[dateKey] = append(part.Lines[dateKey], line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}

	return part, nil
}

// extractLineDate pulls the trading date out of one raw line without
// full parsing. Positional first (tab layouts carry the date in column
// 2, comma layouts in column 3), then any field as a fallback.
func extractLineDate(line string) (string, bool) {
	var fields []string
	switch {
	case strings.Contains(line, "\t"):
		fields = strings.Split(line, "\t")
		if len(fields) >= 2 {
			if d, err := parseTradingDate(fields[1]); err == nil {
				return d.Format(contracts.DateFormat), true
			}
		}
	case strings.Contains(line, ","):
		fields = strings.Split(line, ",")
		if len(fields) >= 3 {
			if d, err := parseTradingDate(fields[2]); err == nil {
				return d.Format(contracts.DateFormat), true
			}
		}
	default:
		fields = strings.Fields(line)
	}

	for _, f := range fields {
		if d, err := parseTradingDate(f); err == nil {
			return d.Format(contracts.DateFormat), true
		}
	}
	return "", false
}
