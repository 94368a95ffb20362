package ingest

import (
	"fmt"
	"strings"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// TabSingleDateProcessor understands the plain daily export:
//
//	code<TAB>date<TAB>volume
//
// with every line carrying the same trading date.
type TabSingleDateProcessor struct{}

// NewTabSingleDateProcessor creates the single-date tab processor.
func NewTabSingleDateProcessor() *TabSingleDateProcessor {
	return &TabSingleDateProcessor{}
}

func (p *TabSingleDateProcessor) Name() string {
	return "tab-single-date"
}

// CanProcess is confident when the sample is cleanly three tab-separated
// columns and every sampled line shares one trading date.
func (p *TabSingleDateProcessor) CanProcess(sample, filename string) (bool, float64) {
	stats := inspectTabSample(sample)
	if stats.lines == 0 || stats.tabular == 0 {
		return false, 0
	}

	tabularRate := float64(stats.tabular) / float64(stats.lines)
	if tabularRate < 0.5 {
		return false, 0
	}

	confidence := 0.6 * tabularRate
	switch stats.dateCount {
	case 1:
		// Exactly one distinct date is this format's signature
		confidence += 0.3
	case 0:
		return false, 0
	default:
		// Multiple dates: the historical processor's territory
		confidence = 0.3
	}

	return confidence > 0, confidence
}

// Parse converts the full text. Row errors accumulate in the result.
func (p *TabSingleDateProcessor) Parse(text string) (*contracts.ProcessResult, error) {
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

// parseTabLine parses one code<TAB>date<TAB>volume line. Shared by both
// tab processors since the row shape is identical.
func parseTabLine(line string) (*contracts.TradingRecord, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 3 {
		return nil, fmt.Errorf("expected 3 tab-separated fields, got %d", len(fields))
	}

	normalized, err := NormalizeStockCode(fields[0])
	if err != nil {
		return nil, err
	}

	date, err := parseTradingDate(fields[1])
	if err != nil {
		return nil, err
	}

	volume, err := parseVolume(fields[2])
	if err != nil {
		return nil, err
	}

	return &contracts.TradingRecord{
		StockCode:      strings.TrimSpace(fields[0]),
		NormalizedCode: normalized,
		TradingDate:    date,
		Volume:         volume,
	}, nil
}
