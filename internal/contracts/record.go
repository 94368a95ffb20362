package contracts

import "time"

// DateFormat is the canonical wire format for trading dates.
const DateFormat = "2006-01-02"

// TradingRecord is the format-independent representation of one stock's
// traded volume on one trading date. Records are produced by a format
// processor, consumed by the aggregator and never mutated in between.
type TradingRecord struct {
	StockCode      string    `json:"stock_code"`      // as read from the file
	NormalizedCode string    `json:"normalized_code"` // market-prefixed canonical form
	TradingDate    time.Time `json:"trading_date"`
	Volume         int64     `json:"volume"` // always >= 0

	// Ext carries format-specific columns. Nil for the plain tab formats.
	Ext *RecordExt `json:"ext,omitempty"`
}

// RecordExt holds the optional columns known to the extended formats.
// Genuinely unknown columns land in Extra.
type RecordExt struct {
	Name           string            `json:"name,omitempty"`
	TurnoverAmount float64           `json:"turnover_amount,omitempty"`
	ChangePercent  float64           `json:"change_percent,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// DateKey returns the record's trading date in canonical form.
func (r *TradingRecord) DateKey() string {
	return r.TradingDate.Format(DateFormat)
}

// ProcessResult is the outcome of parsing one file (or one date's chunk).
// Row-level failures are data, not errors: they are counted and sampled
// into Warnings so one bad line never aborts a parse.
type ProcessResult struct {
	Records    []TradingRecord `json:"-"`
	TotalCount int             `json:"total_count"` // non-blank lines seen
	ValidCount int             `json:"valid_count"`
	ErrorCount int             `json:"error_count"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// maxWarnings bounds how many row errors are kept verbatim.
const maxWarnings = 10

// AddRowError records one malformed line, keeping at most maxWarnings samples.
func (p *ProcessResult) AddRowError(msg string) {
	p.ErrorCount++
	if len(p.Warnings) < maxWarnings {
		p.Warnings = append(p.Warnings, msg)
	}
}

// ErrorRate returns the share of lines that failed to parse.
func (p *ProcessResult) ErrorRate() float64 {
	if p.TotalCount == 0 {
		return 0
	}
	return float64(p.ErrorCount) / float64(p.TotalCount)
}

// StockMeta is the master-data view of one instrument.
type StockMeta struct {
	Code              string   `json:"code"` // normalized form
	Name              string   `json:"name"`
	Industry          string   `json:"industry"`
	Concepts          []string `json:"concepts"`
	IsConvertibleBond bool     `json:"is_convertible_bond"`
}

// ConceptInfo describes one concept a stock belongs to, as returned by
// the reverse lookup.
type ConceptInfo struct {
	ConceptName string    `json:"concept_name"`
	TradingDate time.Time `json:"trading_date"`
	Volume      int64     `json:"volume"`
	ConceptRank int       `json:"concept_rank"`
}
