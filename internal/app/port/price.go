package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// PriceOracle resolves symbols to USD unit prices. Unresolved symbols are absent from the result.
type PriceOracle interface {
	GetPrices(ctx context.Context, symbols []string) map[string]entity.PriceQuote
}

// PriceProvider is a single upstream price source.
type PriceProvider interface {
	Name() string
	FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}
