package provider

import (
	"sync"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// TokenCache loads token lists once and serves them from memory afterwards.
type TokenCache struct {
	loader   port.TokenProvider
	networks port.NetworkDefinitionProvider
	logger   port.Logger

	mu          sync.Mutex
	tokensCache map[string][]entity.TokenInfo
}

// NewTokenCache creates a caching token provider over every known network.
func NewTokenCache(loader port.TokenProvider, networks port.NetworkDefinitionProvider, logger port.Logger) *TokenCache {
	return &TokenCache{loader: loader, networks: networks, logger: logger}
}

// TokensFor returns the tracked tokens of one network. A load failure is logged and yields no tokens;
// it is retried on the next call.
func (p *TokenCache) TokensFor(identifier string) []entity.TokenInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokensCache == nil {
		tokens, err := p.loader.GetTokensByNetwork(p.networks.GetAllNetworkDefinitions())
		if err != nil {
			p.logger.Error("Failed to load token lists", "error", err)
			return nil
		}
		p.tokensCache = tokens
		p.logger.Info("Token lists loaded", "networks_with_tokens", len(tokens))
	}
	return p.tokensCache[identifier]
}
