package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// Repository handles summary and ranking persistence
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new aggregate repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.SummaryRepository = (*Repository)(nil)

// ReplaceDay atomically swaps one date's summaries and rankings for the
// freshly computed set. Delete and insert run in one transaction so a
// crash mid-write never leaves the date half-populated.
func (r *Repository) ReplaceDay(ctx context.Context, date time.Time, summaries []contracts.ConceptDailySummary, rankings []contracts.StockConceptRanking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "DELETE FROM analytics.concept_daily_summaries WHERE trading_date = $1", date)
	if err != nil {
		return fmt.Errorf("delete old summaries: %w", err)
	}
	_, err = tx.Exec(ctx, "DELETE FROM analytics.stock_concept_rankings WHERE trading_date = $1", date)
	if err != nil {
		return fmt.Errorf("delete old rankings: %w", err)
	}

	summaryQuery := `
		INSERT INTO analytics.concept_daily_summaries (
			concept_name, trading_date, total_volume, stock_count,
			avg_volume, max_volume, volume_percentage, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	for _, s := range summaries {
		_, err := tx.Exec(ctx, summaryQuery,
			s.ConceptName, s.TradingDate, s.TotalVolume, s.StockCount,
			s.AvgVolume, s.MaxVolume, s.VolumePercentage,
		)
		if err != nil {
			return fmt.Errorf("insert summary %s: %w", s.ConceptName, err)
		}
	}

	rankingRows := make([][]interface{}, 0, len(rankings))
	for _, rk := range rankings {
		rankingRows = append(rankingRows, []interface{}{
			rk.StockCode, rk.ConceptName, rk.TradingDate,
			rk.Volume, rk.ConceptRank, rk.VolumePercentage,
		})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"analytics", "stock_concept_rankings"},
		[]string{"stock_code", "concept_name", "trading_date", "volume", "concept_rank", "volume_percentage"},
		pgx.CopyFromRows(rankingRows),
	)
	if err != nil {
		return fmt.Errorf("copy rankings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetSummaries returns one date's summaries, filtered and sorted.
func (r *Repository) GetSummaries(ctx context.Context, date time.Time, filter contracts.SummaryFilter, sortBy contracts.SummarySort) ([]contracts.ConceptDailySummary, error) {
	query := `
		SELECT concept_name, trading_date, total_volume, stock_count,
		       avg_volume, max_volume, volume_percentage
		FROM analytics.concept_daily_summaries
		WHERE trading_date = $1
	`
	args := []interface{}{date}

	if filter.ConceptName != "" {
		args = append(args, filter.ConceptName)
		query += fmt.Sprintf(" AND concept_name = $%d", len(args))
	}
	if filter.MinVolume > 0 {
		args = append(args, filter.MinVolume)
		query += fmt.Sprintf(" AND total_volume >= $%d", len(args))
	}

	switch sortBy {
	case contracts.SortByName:
		query += " ORDER BY concept_name ASC"
	case contracts.SortByPercentage:
		query += " ORDER BY volume_percentage DESC, concept_name ASC"
	default:
		query += " ORDER BY total_volume DESC, concept_name ASC"
	}

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// GetSummaryHistory returns one concept's summaries over a date range,
// oldest first.
func (r *Repository) GetSummaryHistory(ctx context.Context, concept string, from, to time.Time) ([]contracts.ConceptDailySummary, error) {
	query := `
		SELECT concept_name, trading_date, total_volume, stock_count,
		       avg_volume, max_volume, volume_percentage
		FROM analytics.concept_daily_summaries
		WHERE concept_name = $1 AND trading_date BETWEEN $2 AND $3
		ORDER BY trading_date ASC
	`
	rows, err := r.pool.Query(ctx, query, concept, from, to)
	if err != nil {
		return nil, fmt.Errorf("query summary history: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// GetSummariesInWindow returns every concept's summaries inside a date
// range, grouped by concept then date ascending. The detector scans
// this to find window maxima.
func (r *Repository) GetSummariesInWindow(ctx context.Context, from, to time.Time) ([]contracts.ConceptDailySummary, error) {
	query := `
		SELECT concept_name, trading_date, total_volume, stock_count,
		       avg_volume, max_volume, volume_percentage
		FROM analytics.concept_daily_summaries
		WHERE trading_date BETWEEN $1 AND $2
		ORDER BY concept_name ASC, trading_date ASC
	`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query window summaries: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// GetRankings returns one concept's intra-concept ranking for a date,
// rank ascending.
func (r *Repository) GetRankings(ctx context.Context, concept string, date time.Time) ([]contracts.StockConceptRanking, error) {
	query := `
		SELECT stock_code, concept_name, trading_date, volume, concept_rank, volume_percentage
		FROM analytics.stock_concept_rankings
		WHERE concept_name = $1 AND trading_date = $2
		ORDER BY concept_rank ASC
	`
	rows, err := r.pool.Query(ctx, query, concept, date)
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	defer rows.Close()

	var rankings []contracts.StockConceptRanking
	for rows.Next() {
		var rk contracts.StockConceptRanking
		if err := rows.Scan(&rk.StockCode, &rk.ConceptName, &rk.TradingDate,
			&rk.Volume, &rk.ConceptRank, &rk.VolumePercentage); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		rankings = append(rankings, rk)
	}
	return rankings, rows.Err()
}

// GetStockConcepts is the reverse lookup: every concept a stock appears
// in on a date, with its rank and volume there.
func (r *Repository) GetStockConcepts(ctx context.Context, stockCode string, date time.Time) ([]contracts.ConceptInfo, error) {
	query := `
		SELECT concept_name, trading_date, volume, concept_rank
		FROM analytics.stock_concept_rankings
		WHERE stock_code = $1 AND trading_date = $2
		ORDER BY concept_rank ASC, concept_name ASC
	`
	rows, err := r.pool.Query(ctx, query, stockCode, date)
	if err != nil {
		return nil, fmt.Errorf("query stock concepts: %w", err)
	}
	defer rows.Close()

	var infos []contracts.ConceptInfo
	for rows.Next() {
		var info contracts.ConceptInfo
		if err := rows.Scan(&info.ConceptName, &info.TradingDate, &info.Volume, &info.ConceptRank); err != nil {
			return nil, fmt.Errorf("scan concept info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func scanSummaries(rows pgx.Rows) ([]contracts.ConceptDailySummary, error) {
	var summaries []contracts.ConceptDailySummary
	for rows.Next() {
		var s contracts.ConceptDailySummary
		if err := rows.Scan(&s.ConceptName, &s.TradingDate, &s.TotalVolume, &s.StockCount,
			&s.AvgVolume, &s.MaxVolume, &s.VolumePercentage); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
