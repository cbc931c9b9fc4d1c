package etherscan

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/chain"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/pkg/utils"
)

const (
	symbol          = "ETH"
	weiDecimals     = 18
	mainnetChainID  = "1"
	statusOK        = "1"
	rateLimitMarker = "rate limit"
)

type balanceResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// Client queries ETH balances through the Etherscan v2 API.
type Client struct {
	http          *httpclient.Client
	baseURL       string
	defaultAPIKey string
	logger        *zap.Logger
}

// NewClient creates a new Etherscan client. defaultAPIKey is used for wallets without their own key.
func NewClient(http *httpclient.Client, baseURL, defaultAPIKey string, logger *zap.Logger) *Client {
	return &Client{
		http:          http,
		baseURL:       strings.TrimRight(baseURL, "/"),
		defaultAPIKey: defaultAPIKey,
		logger:        logger.Named("Etherscan"),
	}
}

// ForKey returns a querier using apiKey, or the default key when apiKey is empty.
func (c *Client) ForKey(apiKey string) chain.Querier {
	if apiKey == "" {
		apiKey = c.defaultAPIKey
	}
	return &keyedQuerier{client: c, apiKey: apiKey}
}

type keyedQuerier struct {
	client *Client
	apiKey string
}

func (q *keyedQuerier) Query(ctx context.Context, address string) ([]chain.Holding, error) {
	return q.client.balance(ctx, address, q.apiKey)
}

func (c *Client) balance(ctx context.Context, address, apiKey string) ([]chain.Holding, error) {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: ETH address must be 0x followed by 40 hex characters", entity.ErrInvalidAddress)
	}

	params := url.Values{}
	params.Set("chainid", mainnetChainID)
	params.Set("module", "account")
	params.Set("action", "balance")
	params.Set("address", address)
	params.Set("tag", "latest")
	if apiKey != "" {
		params.Set("apikey", apiKey)
	}

	var resp balanceResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("etherscan request failed: %w", err)
	}

	if resp.Status != statusOK {
		detail := resp.Result
		if detail == "" {
			detail = resp.Message
		}
		if strings.Contains(strings.ToLower(detail), rateLimitMarker) {
			c.logger.Debug("Etherscan throttled the request", zap.Bool("withKey", apiKey != ""))
			return nil, fmt.Errorf("etherscan: %s: %w", detail, entity.ErrRateLimited)
		}
		return nil, fmt.Errorf("etherscan: %s", detail)
	}

	wei, ok := new(big.Int).SetString(resp.Result, 10)
	if !ok {
		return nil, fmt.Errorf("%w: etherscan balance %q is not an integer", entity.ErrDecode, resp.Result)
	}
	return []chain.Holding{{Symbol: symbol, Amount: utils.ScaleBigInt(wei, weiDecimals).InexactFloat64()}}, nil
}
