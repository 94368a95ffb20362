package contracts

import "time"

// ConceptDailySummary is one concept's aggregate on one trading date.
// Unique per (ConceptName, TradingDate); replaced wholesale on
// recalculation, never patched in place.
//
// VolumePercentage is the concept's share of that date's market total.
// Stocks belong to many concepts, so the percentages across concepts
// are not a partition and may sum past 100%. That is the domain model,
// not a bug.
type ConceptDailySummary struct {
	ConceptName      string    `json:"concept_name"`
	TradingDate      time.Time `json:"trading_date"`
	TotalVolume      int64     `json:"total_volume"`
	StockCount       int       `json:"stock_count"`
	AvgVolume        float64   `json:"avg_volume"`
	MaxVolume        int64     `json:"max_volume"`
	VolumePercentage float64   `json:"volume_percentage"`
}

// DateKey returns the summary's trading date in canonical form.
func (s *ConceptDailySummary) DateKey() string {
	return s.TradingDate.Format(DateFormat)
}

// StockConceptRanking is one stock's position inside one concept on one
// date. Ranks within a (concept, date) partition are a dense 1..N
// permutation ordered by volume descending, ties broken by ascending
// normalized code so a rebuild is always byte-identical.
type StockConceptRanking struct {
	StockCode        string    `json:"stock_code"` // normalized form
	ConceptName      string    `json:"concept_name"`
	TradingDate      time.Time `json:"trading_date"`
	Volume           int64     `json:"volume"`
	ConceptRank      int       `json:"concept_rank"`      // 1 = highest volume
	VolumePercentage float64   `json:"volume_percentage"` // share of the concept total
}

// SummaryFilter narrows summary queries.
type SummaryFilter struct {
	ConceptName string // exact match, empty = all
	MinVolume   int64
	Limit       int
}

// SummarySort selects the ordering of summary queries.
type SummarySort string

const (
	SortByVolume     SummarySort = "volume"     // total volume descending (default)
	SortByPercentage SummarySort = "percentage" // market share descending
	SortByName       SummarySort = "name"       // concept name ascending
)

// RecalcStats is what a recalculation reports back. It has the same
// shape for a repair as for a fresh import on purpose: callers should
// not be able to tell the two apart except by the numbers.
type RecalcStats struct {
	ConceptCount        int `json:"concept_count"`
	RankingCount        int `json:"ranking_count"`
	InnovationHighCount int `json:"innovation_high_count"`
}
