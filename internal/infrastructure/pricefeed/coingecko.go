package pricefeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/pkg/utils"
)

// simplePriceResponse is the /simple/price payload: coin id -> currency -> price.
type simplePriceResponse map[string]map[string]float64

// CoinGecko resolves prices through the /simple/price endpoint using a symbol to coin id map.
type CoinGecko struct {
	http             *httpclient.Client
	baseURL          string
	apiKey           string
	vsCurrency       string
	maxIDsPerRequest int
	symbolToID       map[string]string
	logger           *zap.Logger
}

var _ port.PriceProvider = (*CoinGecko)(nil)

// NewCoinGecko creates a new CoinGecko price provider.
func NewCoinGecko(http *httpclient.Client, cfg configloader.CoinGeckoConfig, logger *zap.Logger) *CoinGecko {
	symbolToID := make(map[string]string, len(cfg.SymbolIDMapping))
	for symbol, id := range cfg.SymbolIDMapping {
		symbolToID[strings.ToUpper(symbol)] = id
	}
	return &CoinGecko{
		http:             http,
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:           cfg.APIKey,
		vsCurrency:       strings.ToLower(cfg.VsCurrency),
		maxIDsPerRequest: cfg.MaxIDsPerRequest,
		symbolToID:       symbolToID,
		logger:           logger.Named("CoinGecko"),
	}
}

// Name implements port.PriceProvider.
func (c *CoinGecko) Name() string { return "coingecko" }

// FetchPrices implements port.PriceProvider. Symbols without a known coin id are left unresolved.
func (c *CoinGecko) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	idToSymbols := make(map[string][]string)
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		id, ok := c.symbolToID[strings.ToUpper(symbol)]
		if !ok {
			c.logger.Debug("No CoinGecko id for symbol", zap.String("symbol", symbol))
			continue
		}
		if _, seen := idToSymbols[id]; !seen {
			ids = append(ids, id)
		}
		idToSymbols[id] = append(idToSymbols[id], symbol)
	}

	result := make(map[string]float64, len(symbols))
	if len(ids) == 0 {
		return result, nil
	}

	header := map[string]string{}
	if c.apiKey != "" {
		header["x-cg-demo-api-key"] = c.apiKey
	}

	for _, batch := range utils.BatchStrings(ids, c.maxIDsPerRequest) {
		requestURL := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
			c.baseURL, url.QueryEscape(strings.Join(batch, ",")), url.QueryEscape(c.vsCurrency))

		var payload simplePriceResponse
		if err := c.http.GetJSON(ctx, requestURL, header, &payload); err != nil {
			return nil, fmt.Errorf("coingecko simple price request failed: %w", err)
		}

		for id, quotes := range payload {
			price, ok := quotes[c.vsCurrency]
			if !ok || price <= 0 {
				continue
			}
			for _, symbol := range idToSymbols[id] {
				result[symbol] = price
			}
		}
	}

	c.logger.Debug("Resolved prices from CoinGecko", zap.Int("ids", len(ids)), zap.Int("resolved", len(result)))
	return result, nil
}
