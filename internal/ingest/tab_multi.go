package ingest

import (
	"fmt"
	"strings"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// TabMultiDateProcessor handles historical backfill exports: identical
// row shape to the daily export but spanning several trading dates in
// one file.
type TabMultiDateProcessor struct{}

// NewTabMultiDateProcessor creates the multi-date tab processor.
func NewTabMultiDateProcessor() *TabMultiDateProcessor {
	return &TabMultiDateProcessor{}
}

func (p *TabMultiDateProcessor) Name() string {
	return "tab-multi-date"
}

// CanProcess scores high only when the sample shows at least two
// distinct trading dates; single-date files belong to the daily
// processor.
func (p *TabMultiDateProcessor) CanProcess(sample, filename string) (bool, float64) {
	stats := inspectTabSample(sample)
	if stats.lines == 0 || stats.tabular == 0 {
		return false, 0
	}

	tabularRate := float64(stats.tabular) / float64(stats.lines)
	if tabularRate < 0.5 {
		return false, 0
	}

	confidence := 0.6 * tabularRate
	if stats.dateCount >= 2 {
		confidence += 0.3
	} else {
		// Could still be a multi-date file whose sample only reached
		// one date, so stay in the race but below the daily processor.
		confidence = 0.4
	}

	return confidence > 0, confidence
}

func (p *TabMultiDateProcessor) Parse(text string) (*contracts.ProcessResult, error) {
	result := &contracts.ProcessResult{}

	for i, line := range splitLines(text) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.TotalCount++

		record, err := parseTabLine(line)
		if err != nil {
			result.AddRowError(fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}

		result.Records = append(result.Records, *record)
		result.ValidCount++
	}

	return result, nil
}
