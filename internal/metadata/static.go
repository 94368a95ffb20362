package metadata

import (
	"context"

	"github.com/zhangwt/voltrend/backend/internal/contracts"
	"github.com/zhangwt/voltrend/backend/internal/ingest"
)

// StaticResolver serves metadata from an in-memory table. Used in tests
// and for local runs without a populated metadata schema.
type StaticResolver struct {
	stocks map[string]contracts.StockMeta
}

// NewStaticResolver builds a resolver over a fixed stock set.
func NewStaticResolver(stocks []contracts.StockMeta) *StaticResolver {
	byCode := make(map[string]contracts.StockMeta, len(stocks))
	for _, s := range stocks {
		s.IsConvertibleBond = ingest.IsConvertibleBondCode(s.Code)
		byCode[s.Code] = s
	}
	return &StaticResolver{stocks: byCode}
}

var _ contracts.StockMetadataResolver = (*StaticResolver)(nil)

// ResolveStock returns the stock's entry or nil when unknown.
func (r *StaticResolver) ResolveStock(ctx context.Context, normalizedCode string) (*contracts.StockMeta, error) {
	meta, ok := r.stocks[normalizedCode]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}
