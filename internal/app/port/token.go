package port

import "portfolio_aggregator/internal/domain/entity"

// TokenProvider defines the interface for fetching ERC-20 token lists.
type TokenProvider interface {
	// GetTokensByNetwork returns a map of network identifier to the tokens tracked on it.
	GetTokensByNetwork(activeNetworkDefs []entity.NetworkDefinition) (map[string][]entity.TokenInfo, error)
}
