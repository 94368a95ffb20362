package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// csvMinFields is the number of leading columns the extended export
// always carries: code, name, date, volume, turnoverAmount,
// changePercent. Anything past those lands in Ext.Extra.
const csvMinFields = 6

// CSVExtendedProcessor parses the comma-delimited extended export with
// per-stock name, turnover and change columns. The first line may be a
// header and is skipped when it does not parse as data.
type CSVExtendedProcessor struct{}

// NewCSVExtendedProcessor creates the extended CSV processor.
func NewCSVExtendedProcessor() *CSVExtendedProcessor {
	return &CSVExtendedProcessor{}
}

func (p *CSVExtendedProcessor) Name() string {
	return "csv-extended"
}

// CanProcess scores on comma density plus header evidence.
func (p *CSVExtendedProcessor) CanProcess(sample, filename string) (bool, float64) {
	lines := splitLines(sample)

	var total, commaRich int
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if strings.Count(line, ",") >= csvMinFields-1 {
			commaRich++
		}
	}
	if total == 0 || commaRich == 0 {
		return false, 0
	}

	confidence := 0.65 * (float64(commaRich) / float64(total))
	if looksLikeCSVHeader(lines[0]) {
		confidence += 0.2
	}
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		confidence += 0.05
	}

	return confidence > 0, confidence
}

func (p *CSVExtendedProcessor) Parse(text string) (*contracts.ProcessResult, error) {
	result := &contracts.ProcessResult{}

	for i, line := range splitLines(text) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if i == 0 && looksLikeCSVHeader(line) {
			continue
		}
		result.TotalCount++

		record, err := parseCSVLine(line)
		if err != nil {
			result.AddRowError(fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}

		result.Records = append(result.Records, *record)
		result.ValidCount++
	}

	return result, nil
}

func parseCSVLine(line string) (*contracts.TradingRecord, error) {
	fields := strings.Split(line, ",")
	if len(fields) < csvMinFields {
		return nil, fmt.Errorf("expected at least %d comma-separated fields, got %d", csvMinFields, len(fields))
	}

	rawCode := strings.TrimSpace(fields[0])
	normalized, err := NormalizeStockCode(rawCode)
	if err != nil {
		return nil, err
	}

	date, err := parseTradingDate(fields[2])
	if err != nil {
		return nil, err
	}

	volume, err := parseVolume(fields[3])
	if err != nil {
		return nil, err
	}

	ext := &contracts.RecordExt{
		Name: strings.TrimSpace(fields[1]),
	}
	if v := strings.TrimSpace(fields[4]); v != "" {
		turnover, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid turnover amount %q", v)
		}
		ext.TurnoverAmount = turnover
	}
	if v := strings.TrimSpace(fields[5]); v != "" {
		change, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid change percent %q", v)
		}
		ext.ChangePercent = change
	}
	if len(fields) > csvMinFields {
		ext.Extra = make(map[string]string, len(fields)-csvMinFields)
		for j, extra := range fields[csvMinFields:] {
			ext.Extra[fmt.Sprintf("col%d", csvMinFields+j)] = strings.TrimSpace(extra)
		}
	}

	return &contracts.TradingRecord{
		StockCode:      rawCode,
		NormalizedCode: normalized,
		TradingDate:    date,
		Volume:         volume,
		Ext:            ext,
	}, nil
}

// looksLikeCSVHeader reports whether the line reads as column names
// rather than data: no parseable date or volume in the expected spots.
func looksLikeCSVHeader(line string) bool {
	fields := strings.Split(line, ",")
	if len(fields) < csvMinFields {
		return false
	}
	if _, err := parseTradingDate(fields[2]); err == nil {
		return false
	}
	if _, err := parseVolume(fields[3]); err == nil {
		return false
	}
	return true
}
