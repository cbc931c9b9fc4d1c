package cardano

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/chain"
	"portfolio_aggregator/internal/infrastructure/httpclient"
)

const (
	symbol           = "ADA"
	lovelaceDecimals = 6
	stakePrefix      = "stake1"
)

// Koios returns lovelace either as a JSON string or a number; decimal accepts both.
type addressInfo struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

type accountInfo struct {
	StakeAddress string          `json:"stake_address"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}

// Client queries ADA balances from the Koios API.
type Client struct {
	http    *httpclient.Client
	baseURL string
	logger  *zap.Logger
}

var _ chain.Querier = (*Client)(nil)

// NewClient creates a new Koios client.
func NewClient(http *httpclient.Client, baseURL string, logger *zap.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("Koios"),
	}
}

// Query implements chain.Querier. Stake addresses report the whole account including rewards.
func (c *Client) Query(ctx context.Context, address string) ([]chain.Holding, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: empty ADA address", entity.ErrInvalidAddress)
	}

	var lovelace decimal.Decimal
	if strings.HasPrefix(address, stakePrefix) {
		var resp []accountInfo
		payload := map[string][]string{"_stake_addresses": {address}}
		if err := c.http.PostJSON(ctx, c.baseURL+"/api/v1/account_info", nil, payload, &resp); err != nil {
			return nil, fmt.Errorf("koios account_info: %w", err)
		}
		if len(resp) == 0 {
			return nil, fmt.Errorf("stake address %s not found", address)
		}
		lovelace = resp[0].TotalBalance
	} else {
		var resp []addressInfo
		payload := map[string][]string{"_addresses": {address}}
		if err := c.http.PostJSON(ctx, c.baseURL+"/api/v1/address_info", nil, payload, &resp); err != nil {
			return nil, fmt.Errorf("koios address_info: %w", err)
		}
		if len(resp) == 0 {
			return nil, fmt.Errorf("address %s not found", address)
		}
		lovelace = resp[0].Balance
	}

	ada := lovelace.Shift(-lovelaceDecimals)
	c.logger.Debug("Resolved ADA balance", zap.String("ada", ada.String()))
	return []chain.Holding{{Symbol: symbol, Amount: ada.InexactFloat64()}}, nil
}
