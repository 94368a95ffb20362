package aggregate

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/internal/metadata"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
)

var testDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func record(code string, volume int64) contracts.TradingRecord {
	return contracts.TradingRecord{
		StockCode:      code,
		NormalizedCode: code,
		TradingDate:    testDate,
		Volume:         volume,
	}
}

func bankingResolver() contracts.StockMetadataResolver {
	return metadata.NewStaticResolver([]contracts.StockMeta{
		{Code: "SH600000", Name: "浦发银行", Industry: "银行", Concepts: []string{"Banking"}},
		{Code: "SZ000001", Name: "平安银行", Industry: "银行", Concepts: []string{"Banking"}},
	})
}

func TestAggregate_BankingExample(t *testing.T) {
	agg := New(bankingResolver(), logger.NewNop())

	records := []contracts.TradingRecord{
		record("SH600000", 1000000),
		record("SZ000001", 2000000),
	}

	summaries, rankings, err := agg.Aggregate(context.Background(), testDate, records)
	require.NoError(t, err)

	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, "Banking", s.ConceptName)
	assert.Equal(t, int64(3000000), s.TotalVolume)
	assert.Equal(t, 2, s.StockCount)
	assert.Equal(t, float64(1500000), s.AvgVolume)
	assert.Equal(t, int64(2000000), s.MaxVolume)
	// Only one concept exists, so it carries the whole market
	assert.Equal(t, float64(100), s.VolumePercentage)

	require.Len(t, rankings, 2)
	assert.Equal(t, "SZ000001", rankings[0].StockCode)
	assert.Equal(t, 1, rankings[0].ConceptRank)
	assert.InDelta(t, 66.67, rankings[0].VolumePercentage, 0.001)
	assert.Equal(t, "SH600000", rankings[1].StockCode)
	assert.Equal(t, 2, rankings[1].ConceptRank)
	assert.InDelta(t, 33.33, rankings[1].VolumePercentage, 0.001)
}

func TestAggregate_MultiConceptMembership(t *testing.T) {
	resolver := metadata.NewStaticResolver([]contracts.StockMeta{
		{Code: "SZ000001", Concepts: []string{"Banking", "Fintech"}},
		{Code: "SH600000", Concepts: []string{"Banking"}},
	})
	agg := New(resolver, logger.NewNop())

	records := []contracts.TradingRecord{
		record("SH600000", 1000000),
		record("SZ000001", 2000000),
	}

	summaries, _, err := agg.Aggregate(context.Background(), testDate, records)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// SZ000001 contributes to both concepts, so concept percentages sum
	// past 100 of real market volume. That overlap is expected.
	byName := make(map[string]contracts.ConceptDailySummary)
	for _, s := range summaries {
		byName[s.ConceptName] = s
	}
	assert.Equal(t, int64(3000000), byName["Banking"].TotalVolume)
	assert.Equal(t, int64(2000000), byName["Fintech"].TotalVolume)

	// Denominator is the sum of concept totals (5M), not raw market volume
	assert.InDelta(t, 60.0, byName["Banking"].VolumePercentage, 0.001)
	assert.InDelta(t, 40.0, byName["Fintech"].VolumePercentage, 0.001)
}

func TestAggregate_Idempotent(t *testing.T) {
	agg := New(bankingResolver(), logger.NewNop())
	records := []contracts.TradingRecord{
		record("SH600000", 1000000),
		record("SZ000001", 2000000),
	}

	s1, r1, err := agg.Aggregate(context.Background(), testDate, records)
	require.NoError(t, err)
	s2, r2, err := agg.Aggregate(context.Background(), testDate, records)
	require.NoError(t, err)

	assert.True(t, reflect.DeepEqual(s1, s2), "summaries differ across runs")
	assert.True(t, reflect.DeepEqual(r1, r2), "rankings differ across runs")
}

func TestAggregate_RankTotalityAndTieBreak(t *testing.T) {
	resolver := metadata.NewStaticResolver([]contracts.StockMeta{
		{Code: "SH600001", Concepts: []string{"Steel"}},
		{Code: "SH600002", Concepts: []string{"Steel"}},
		{Code: "SZ000002", Concepts: []string{"Steel"}},
		{Code: "SZ000003", Concepts: []string{"Steel"}},
	})
	agg := New(resolver, logger.NewNop())

	// SH600002 and SZ000002 tie on volume
	records := []contracts.TradingRecord{
		record("SZ000003", 500),
		record("SH600002", 1000),
		record("SZ000002", 1000),
		record("SH600001", 2000),
	}

	_, rankings, err := agg.Aggregate(context.Background(), testDate, records)
	require.NoError(t, err)
	require.Len(t, rankings, 4)

	seen := make(map[int]string)
	for _, rk := range rankings {
		_, dup := seen[rk.ConceptRank]
		assert.False(t, dup, "duplicate rank %d", rk.ConceptRank)
		seen[rk.ConceptRank] = rk.StockCode
	}
	for rank := 1; rank <= 4; rank++ {
		assert.Contains(t, seen, rank)
	}

	assert.Equal(t, "SH600001", seen[1])
	// Tie resolves by ascending code
	assert.Equal(t, "SH600002", seen[2])
	assert.Equal(t, "SZ000002", seen[3])
	assert.Equal(t, "SZ000003", seen[4])
}

func TestAggregate_SumInvariants(t *testing.T) {
	resolver := metadata.NewStaticResolver([]contracts.StockMeta{
		{Code: "SH600001", Concepts: []string{"Steel"}},
		{Code: "SH600002", Concepts: []string{"Steel"}},
		{Code: "SZ000002", Concepts: []string{"Steel"}},
	})
	agg := New(resolver, logger.NewNop())

	records := []contracts.TradingRecord{
		record("SH600001", 333),
		record("SH600002", 333),
		record("SZ000002", 334),
	}

	summaries, rankings, err := agg.Aggregate(context.Background(), testDate, records)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	var memberSum int64
	var pctSum float64
	for _, rk := range rankings {
		memberSum += rk.Volume
		pctSum += rk.VolumePercentage
	}
	assert.Equal(t, summaries[0].TotalVolume, memberSum)
	assert.InDelta(t, 100.0, pctSum, 0.05)
}

func TestAggregate_UnknownStockContributesNowhere(t *testing.T) {
	agg := New(bankingResolver(), logger.NewNop())

	records := []contracts.TradingRecord{
		record("SH600000", 1000000),
		record("SH688981", 9999999), // no metadata entry
	}

	summaries, rankings, err := agg.Aggregate(context.Background(), testDate, records)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(1000000), summaries[0].TotalVolume)
	assert.Len(t, rankings, 1)
}

func TestAggregate_NegativeVolumeFailsLoudly(t *testing.T) {
	agg := New(bankingResolver(), logger.NewNop())

	records := []contracts.TradingRecord{record("SH600000", -1)}

	_, _, err := agg.Aggregate(context.Background(), testDate, records)
	var cerr *contracts.ConsistencyError
	require.True(t, errors.As(err, &cerr))
}

func TestAggregate_MixedDateFailsLoudly(t *testing.T) {
	agg := New(bankingResolver(), logger.NewNop())

	stray := record("SH600000", 100)
	stray.TradingDate = testDate.AddDate(0, 0, 1)

	_, _, err := agg.Aggregate(context.Background(), testDate, []contracts.TradingRecord{stray})
	var cerr *contracts.ConsistencyError
	require.True(t, errors.As(err, &cerr))
}

func TestAggregate_EmptyInput(t *testing.T) {
	agg := New(bankingResolver(), logger.NewNop())

	summaries, rankings, err := agg.Aggregate(context.Background(), testDate, nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Empty(t, rankings)
}
