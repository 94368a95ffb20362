package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/internal/ingest"
)

// Resolver looks stock master data up from the metadata tables that the
// static-import tooling maintains.
type Resolver struct {
	pool *pgxpool.Pool
}

// NewResolver creates a database-backed metadata resolver.
func NewResolver(pool *pgxpool.Pool) *Resolver {
	return &Resolver{pool: pool}
}

var _ contracts.StockMetadataResolver = (*Resolver)(nil)

// ResolveStock returns a stock's master data by normalized code.
// Unknown codes resolve to nil without error: missing metadata means
// the stock has no concept membership, which the aggregator treats as
// "contributes nowhere", not as a failure.
func (r *Resolver) ResolveStock(ctx context.Context, normalizedCode string) (*contracts.StockMeta, error) {
	query := `
		SELECT s.stock_code, s.stock_name, s.industry,
		       COALESCE(array_agg(c.concept_name ORDER BY c.concept_name)
		                FILTER (WHERE c.concept_name IS NOT NULL), '{}')
		FROM metadata.stocks s
		LEFT JOIN metadata.stock_concepts sc ON sc.stock_code = s.stock_code
		LEFT JOIN metadata.concepts c ON c.id = sc.concept_id
		WHERE s.stock_code = $1
		GROUP BY s.stock_code, s.stock_name, s.industry
	`

	meta := &contracts.StockMeta{}
	err := r.pool.QueryRow(ctx, query, normalizedCode).Scan(
		&meta.Code, &meta.Name, &meta.Industry, &meta.Concepts,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock metadata %s: %w", normalizedCode, err)
	}

	meta.IsConvertibleBond = ingest.IsConvertibleBondCode(meta.Code)
	return meta, nil
}
