package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/pkg/logger"
)

// Aggregator turns one date's canonical records into concept summaries
// and intra-concept rankings. The computation is deterministic: the same
// input set always produces the same output, which is what makes
// recalculation safe.
type Aggregator struct {
	resolver contracts.StockMetadataResolver
	log      *logger.Logger
}

// New creates an Aggregator backed by the given metadata resolver.
func New(resolver contracts.StockMetadataResolver, log *logger.Logger) *Aggregator {
	return &Aggregator{
		resolver: resolver,
		log:      log.WithComponent("aggregate"),
	}
}

// member is one stock's contribution inside one concept.
type member struct {
	code   string
	volume int64
}

// Aggregate computes summaries and rankings for a single trading date.
//
// A stock may belong to several concepts, so one record can contribute
// to multiple summaries. As a consequence the concept volumePercentage
// values for one date can add up to more than 100% — concepts are
// overlapping groupings, not a partition of the market.
func (a *Aggregator) Aggregate(ctx context.Context, date time.Time, records []contracts.TradingRecord) ([]contracts.ConceptDailySummary, []contracts.StockConceptRanking, error) {
	dateKey := date.Format(contracts.DateFormat)

	// Collapse duplicate rows for the same stock: the last row wins,
	// matching source-file ordering.
	byStock := make(map[string]int64)
	for _, rec := range records {
		if !sameDay(rec.TradingDate, date) {
			return nil, nil, &contracts.ConsistencyError{
				Reason: fmt.Sprintf("record for %s dated %s mixed into aggregation for %s",
					rec.NormalizedCode, rec.DateKey(), dateKey),
			}
		}
		if rec.Volume < 0 {
			return nil, nil, &contracts.ConsistencyError{
				Reason: fmt.Sprintf("negative volume %d for %s on %s", rec.Volume, rec.NormalizedCode, dateKey),
			}
		}
		byStock[rec.NormalizedCode] = rec.Volume
	}

	// Resolve concept membership per distinct stock. Stocks with no
	// known concepts simply do not contribute anywhere.
	concepts := make(map[string][]member)
	var unresolved int
	for _, code := range sortedKeys(byStock) {
		meta, err := a.resolver.ResolveStock(ctx, code)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve stock %s: %w", code, err)
		}
		if meta == nil || len(meta.Concepts) == 0 {
			unresolved++
			continue
		}
		for _, concept := range meta.Concepts {
			concepts[concept] = append(concepts[concept], member{code: code, volume: byStock[code]})
		}
	}
	if unresolved > 0 {
		a.log.Debugf("%d of %d stocks on %s have no concept membership", unresolved, len(byStock), dateKey)
	}

	// First pass: per-concept totals, plus the market-wide denominator.
	var marketTotal int64
	totals := make(map[string]int64, len(concepts))
	for name, members := range concepts {
		var sum int64
		for _, m := range members {
			sum += m.volume
		}
		totals[name] = sum
		marketTotal += sum
	}

	summaries := make([]contracts.ConceptDailySummary, 0, len(concepts))
	rankings := make([]contracts.StockConceptRanking, 0)

	for _, name := range sortedKeys(totals) {
		members := concepts[name]
		total := totals[name]

		var maxVolume int64
		for _, m := range members {
			if m.volume > maxVolume {
				maxVolume = m.volume
			}
		}

		summary := contracts.ConceptDailySummary{
			ConceptName: name,
			TradingDate: date,
			TotalVolume: total,
			StockCount:  len(members),
			AvgVolume:   round2(float64(total) / float64(len(members))),
			MaxVolume:   maxVolume,
		}
		if marketTotal > 0 {
			summary.VolumePercentage = round2(float64(total) / float64(marketTotal) * 100)
		}
		summaries = append(summaries, summary)

		// Rank members by volume descending; equal volumes order by
		// code ascending so reruns reproduce the same permutation.
		sort.Slice(members, func(i, j int) bool {
			if members[i].volume != members[j].volume {
				return members[i].volume > members[j].volume
			}
			return members[i].code < members[j].code
		})

		for i, m := range members {
			ranking := contracts.StockConceptRanking{
				StockCode:   m.code,
				ConceptName: name,
				TradingDate: date,
				Volume:      m.volume,
				ConceptRank: i + 1,
			}
			if total > 0 {
				ranking.VolumePercentage = round2(float64(m.volume) / float64(total) * 100)
			}
			rankings = append(rankings, ranking)
		}
	}

	a.log.Infof("aggregated %s: %d stocks into %d concepts, %d rankings",
		dateKey, len(byStock), len(summaries), len(rankings))

	return summaries, rankings, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
