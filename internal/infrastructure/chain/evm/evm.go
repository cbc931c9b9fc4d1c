package evm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/chain"
	"portfolio_aggregator/internal/pkg/utils"
)

// Querier resolves the native coin and tracked ERC-20 tokens of an address on one EVM network.
type Querier struct {
	client port.BlockchainClient
	tokens []entity.TokenInfo
	logger *zap.Logger
}

var _ chain.Querier = (*Querier)(nil)

// NewQuerier creates a querier over the given network client and token list.
func NewQuerier(client port.BlockchainClient, tokens []entity.TokenInfo, logger *zap.Logger) *Querier {
	return &Querier{
		client: client,
		tokens: tokens,
		logger: logger.Named("EVM").With(zap.String("network", client.Definition().Identifier)),
	}
}

// Query implements chain.Querier. A failed native balance fails the query; failed token balances are skipped.
func (q *Querier) Query(ctx context.Context, address string) ([]chain.Holding, error) {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: EVM address must be 0x followed by 40 hex characters", entity.ErrInvalidAddress)
	}

	def := q.client.Definition()
	requests := make([]entity.BalanceRequestItem, 0, len(q.tokens)+1)
	requests = append(requests, entity.BalanceRequestItem{
		Type:          entity.NativeBalanceRequest,
		WalletAddress: address,
		TokenSymbol:   def.NativeSymbol,
		TokenDecimals: def.Decimals,
	})
	for _, token := range q.tokens {
		requests = append(requests, entity.BalanceRequestItem{
			Type:          entity.TokenBalanceRequest,
			WalletAddress: address,
			TokenAddress:  token.Address,
			TokenSymbol:   token.Symbol,
			TokenDecimals: token.Decimals,
		})
	}

	results, err := q.client.GetBalances(ctx, requests)
	if err != nil {
		return nil, err
	}

	holdings := make([]chain.Holding, 0, len(results))
	for _, r := range results {
		if r.Error != nil {
			if r.IsNative {
				return nil, r.Error
			}
			q.logger.Debug("Token balance unavailable", zap.String("symbol", r.TokenSymbol), zap.Error(r.Error))
			continue
		}
		if r.Balance == nil || r.Balance.Sign() <= 0 {
			continue
		}
		holdings = append(holdings, chain.Holding{
			Symbol: strings.ToUpper(r.TokenSymbol),
			Amount: utils.ScaleBigInt(r.Balance, r.Decimals).InexactFloat64(),
		})
	}
	return holdings, nil
}
