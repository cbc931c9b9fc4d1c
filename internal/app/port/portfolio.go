package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// PortfolioService defines the aggregation engine consumed by presentation layers.
type PortfolioService interface {
	// Refresh queries every configured source and replaces the stored records, prices and errors.
	// It never fails outward; failures surface through Snapshot().Errors.
	Refresh(ctx context.Context)

	// Snapshot returns the current summaries, recomputed from the stored records and prices.
	Snapshot() entity.PortfolioSnapshot

	// Records returns the raw balance records of the last successful pass.
	Records() []entity.BalanceRecord

	// Clear wipes all engine state.
	Clear()
}
