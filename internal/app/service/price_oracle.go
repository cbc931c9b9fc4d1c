package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/pkg/metrics"
	"portfolio_aggregator/internal/pkg/utils"
)

const stablecoinPriceUSD = 1.0

// priceOracleImpl implements port.PriceOracle.
type priceOracleImpl struct {
	primary     port.PriceProvider
	fallback    port.PriceProvider
	stablecoins map[string]struct{}
	cache       *cache.Cache
	logger      port.Logger
	now         func() time.Time
}

// NewPriceOracle creates a price oracle with a primary provider and an optional fallback.
func NewPriceOracle(
	primary port.PriceProvider,
	fallback port.PriceProvider,
	l port.Logger,
	cfg *configloader.Config,
) port.PriceOracle {
	ttl := time.Duration(cfg.PriceOracle.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	stablecoins := make(map[string]struct{}, len(cfg.PriceOracle.Stablecoins))
	for _, symbol := range utils.UniqueUpper(cfg.PriceOracle.Stablecoins) {
		stablecoins[symbol] = struct{}{}
	}

	o := &priceOracleImpl{
		primary:     primary,
		fallback:    fallback,
		stablecoins: stablecoins,
		cache:       cache.New(ttl, 2*ttl),
		logger:      l,
		now:         time.Now,
	}
	l.Info("Price oracle initialised", "cache_ttl", ttl.String(), "stablecoins", len(stablecoins))
	return o
}

// GetPrices implements port.PriceOracle. It never fails: unresolved symbols are absent from the result.
func (o *priceOracleImpl) GetPrices(ctx context.Context, symbols []string) map[string]entity.PriceQuote {
	result := make(map[string]entity.PriceQuote, len(symbols))
	now := o.now().UnixMilli()

	pending := make([]string, 0, len(symbols))
	for _, symbol := range utils.UniqueUpper(symbols) {
		if _, ok := o.stablecoins[symbol]; ok {
			result[symbol] = entity.PriceQuote{Symbol: symbol, PriceUSD: stablecoinPriceUSD, Timestamp: now}
			continue
		}
		if cached, ok := o.cache.Get(symbol); ok {
			if quote, ok := cached.(entity.PriceQuote); ok {
				result[symbol] = quote
				metrics.PriceCacheHits.Inc()
				continue
			}
		}
		pending = append(pending, symbol)
	}

	if len(pending) == 0 {
		return result
	}

	resolved := o.fetchFrom(ctx, o.primary, pending)
	if len(resolved) == 0 && o.fallback != nil {
		o.logger.Warn("Primary price provider resolved nothing, trying fallback",
			"primary", providerName(o.primary), "fallback", o.fallback.Name(), "symbols", len(pending))
		metrics.PriceFallbacks.Inc()
		resolved = o.fetchFrom(ctx, o.fallback, pending)
	}

	for symbol, price := range resolved {
		quote := entity.PriceQuote{Symbol: symbol, PriceUSD: price, Timestamp: now}
		o.cache.Set(symbol, quote, cache.DefaultExpiration)
		result[symbol] = quote
	}

	o.logger.Debug("Prices resolved",
		"requested", len(symbols), "from_network", len(resolved), "unresolved", len(pending)-len(resolved))
	return result
}

// fetchFrom keeps positive prices of requested symbols only; failures and panics degrade to an empty map.
func (o *priceOracleImpl) fetchFrom(ctx context.Context, provider port.PriceProvider, pending []string) (resolved map[string]float64) {
	resolved = make(map[string]float64)
	if provider == nil {
		return resolved
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Price provider panicked", "provider", provider.Name(), "panic", fmt.Sprint(r))
			resolved = make(map[string]float64)
		}
	}()

	prices, err := provider.FetchPrices(ctx, pending)
	if err != nil {
		o.logger.Warn("Price provider failed", "provider", provider.Name(), "error", err)
		return resolved
	}

	wanted := make(map[string]struct{}, len(pending))
	for _, symbol := range pending {
		wanted[symbol] = struct{}{}
	}
	for symbol, price := range prices {
		symbol = strings.ToUpper(symbol)
		if _, ok := wanted[symbol]; !ok || price <= 0 {
			continue
		}
		resolved[symbol] = price
	}
	return resolved
}

func providerName(p port.PriceProvider) string {
	if p == nil {
		return "none"
	}
	return p.Name()
}
