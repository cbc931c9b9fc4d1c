package pricefeed

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
)

// BinanceTicker resolves USD prices from the public Binance ticker, one call for all pairs.
type BinanceTicker struct {
	client *binance.Client
	quotes []string
	logger *zap.Logger
}

var _ port.PriceProvider = (*BinanceTicker)(nil)

// NewBinanceTicker creates a ticker provider. quotes is the stable quote preference, e.g. USDT, USDC.
func NewBinanceTicker(baseURL string, quotes []string, hc *http.Client, logger *zap.Logger) *BinanceTicker {
	client := binance.NewClient("", "")
	if hc != nil {
		client.HTTPClient = hc
	}
	if baseURL != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &BinanceTicker{
		client: client,
		quotes: quotes,
		logger: logger.Named("BinanceTicker"),
	}
}

// Name implements port.PriceProvider.
func (b *BinanceTicker) Name() string { return "binance" }

// FetchPrices implements port.PriceProvider. The first quote in preference order with a positive price wins.
func (b *BinanceTicker) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	tickers, err := b.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list binance ticker prices")
	}

	pairs := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		if t == nil {
			continue
		}
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		pairs[t.Symbol] = price
	}

	result := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		for _, quote := range b.quotes {
			if symbol == quote {
				continue
			}
			if price, ok := pairs[symbol+quote]; ok {
				result[symbol] = price
				break
			}
		}
	}

	b.logger.Debug("Resolved prices from ticker",
		zap.Int("pairs", len(pairs)),
		zap.Int("requested", len(symbols)),
		zap.Int("resolved", len(result)))
	return result, nil
}
