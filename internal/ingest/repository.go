package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
)

// Repository persists canonical records as the audit substrate that
// recalculation rebuilds from.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new canonical record repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.RecordRepository = (*Repository)(nil)

// ReplaceDay swaps one date's canonical records inside a transaction.
func (r *Repository) ReplaceDay(ctx context.Context, date time.Time, records []contracts.TradingRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "DELETE FROM ingest.trading_records WHERE trading_date = $1", date)
	if err != nil {
		return fmt.Errorf("delete old records: %w", err)
	}

	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		var ext []byte
		if rec.Ext != nil {
			ext, err = json.Marshal(rec.Ext)
			if err != nil {
				return fmt.Errorf("marshal ext for %s: %w", rec.NormalizedCode, err)
			}
		}
		rows = append(rows, []interface{}{
			rec.StockCode, rec.NormalizedCode, rec.TradingDate, rec.Volume, ext,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"ingest", "trading_records"},
		[]string{"stock_code", "normalized_code", "trading_date", "volume", "ext"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByDate loads one date's canonical records, code ascending.
func (r *Repository) GetByDate(ctx context.Context, date time.Time) ([]contracts.TradingRecord, error) {
	query := `
		SELECT stock_code, normalized_code, trading_date, volume, ext
		FROM ingest.trading_records
		WHERE trading_date = $1
		ORDER BY normalized_code ASC
	`
	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []contracts.TradingRecord
	for rows.Next() {
		var rec contracts.TradingRecord
		var ext []byte
		if err := rows.Scan(&rec.StockCode, &rec.NormalizedCode, &rec.TradingDate, &rec.Volume, &ext); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if len(ext) > 0 {
			rec.Ext = &contracts.RecordExt{}
			if err := json.Unmarshal(ext, rec.Ext); err != nil {
				return nil, fmt.Errorf("unmarshal ext for %s: %w", rec.NormalizedCode, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByDate returns how many canonical records a date holds.
func (r *Repository) CountByDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM ingest.trading_records WHERE trading_date = $1", date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}
