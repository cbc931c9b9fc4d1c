package chain

import (
	"context"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// Holding is an amount of one asset held by an address, in whole units.
type Holding struct {
	Symbol string
	Amount float64
}

// Querier resolves the holdings of a single address on one chain.
type Querier interface {
	Query(ctx context.Context, address string) ([]Holding, error)
}

// Source binds a stored wallet address to the querier of its chain.
type Source struct {
	wallet  entity.WalletAddress
	querier Querier
}

var _ port.BalanceSource = (*Source)(nil)

// NewSource creates a new Source.
func NewSource(wallet entity.WalletAddress, querier Querier) *Source {
	return &Source{wallet: wallet, querier: querier}
}

// Name is the wallet source id, e.g. ledger_cold.
func (s *Source) Name() string { return s.wallet.Source }

// Category is the chain code.
func (s *Source) Category() string { return s.wallet.Chain }

func (s *Source) Policy() entity.ErrorPolicy { return entity.PolicySurface }

// Fetch queries the chain and keeps positive holdings only.
func (s *Source) Fetch(ctx context.Context) ([]entity.BalanceRecord, error) {
	holdings, err := s.querier.Query(ctx, s.wallet.Address)
	if err != nil {
		return nil, err
	}
	records := make([]entity.BalanceRecord, 0, len(holdings))
	for _, h := range holdings {
		if h.Amount <= 0 {
			continue
		}
		records = append(records, entity.BalanceRecord{
			Symbol: h.Symbol,
			Amount: h.Amount,
			Source: s.wallet.Source,
		})
	}
	return records, nil
}
