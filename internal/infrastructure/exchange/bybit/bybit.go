package bybit

import (
	"context"
	"net/http"
	"strings"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/exchange"
)

// AccountUnified is the only account type reported by the Bybit adapter.
const AccountUnified = "unified"

const unifiedAccountType = bybit.AccountTypeV5("UNIFIED")

// Client queries the Bybit unified trading account of one credential.
type Client struct {
	sourceID string
	label    string
	client   *bybit.Client
	logger   *zap.Logger
}

// NewClient creates a Bybit adapter for the given credential.
func NewClient(
	sourceID, label string,
	cred entity.Credential,
	cfg configloader.BybitConfig,
	hc *http.Client,
	logger *zap.Logger,
) (*Client, error) {
	if cred.APIKey == "" || cred.Secret == "" {
		return nil, errors.New("bybit credential requires an API key and a secret")
	}
	client := bybit.NewClient().WithAuth(cred.APIKey, cred.Secret)
	if cfg.BaseURL != "" {
		client = client.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	}
	if hc != nil {
		client = client.WithHTTPClient(hc)
	}
	return &Client{
		sourceID: sourceID,
		label:    label,
		client:   client,
		logger:   logger.Named("Bybit").With(zap.String("source", sourceID)),
	}, nil
}

// Sources returns the balance sources of the credential.
func (c *Client) Sources() []port.BalanceSource {
	return []port.BalanceSource{
		exchange.NewSource(c.label, AccountUnified, entity.PolicySurface, c.fetchUnified),
	}
}

// fetchUnified reads the V5 wallet balance. The SDK call does not take a context,
// so cancellation is only honoured before the request starts.
func (c *Client) fetchUnified(ctx context.Context) ([]entity.BalanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.client.V5().Account().GetWalletBalance(unifiedAccountType, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	collector := exchange.NewCollector(c.sourceID, AccountUnified)
	for _, account := range res.Result.List {
		for _, coin := range account.Coin {
			if err := collector.Add(string(coin.Coin), coin.WalletBalance); err != nil {
				return nil, errors.Wrapf(entity.ErrDecode, "wallet balance %s: %v", coin.Coin, err)
			}
		}
	}
	records := collector.Records()
	c.logger.Debug("Fetched unified wallet balance", zap.Int("assets", len(records)))
	return records, nil
}
