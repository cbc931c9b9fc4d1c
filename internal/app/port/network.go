package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// BlockchainClient defines the interface for interacting with an EVM network.
type BlockchainClient interface {
	// GetBalances resolves native and token balances in a single JSON-RPC batch.
	GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error)

	// Definition returns the network definition associated with this client.
	Definition() entity.NetworkDefinition
}

// NetworkDefinitionProvider defines the interface for providing network definitions.
type NetworkDefinitionProvider interface {
	GetAllNetworkDefinitions() []entity.NetworkDefinition

	// GetNetworkDefinitionByName returns a definition by identifier, and false if it is unknown.
	GetNetworkDefinitionByName(nameOrIdentifier string) (entity.NetworkDefinition, bool)
}

// BlockchainClientProvider defines the interface for providing blockchain clients.
type BlockchainClientProvider interface {
	GetClient(networkDefinition entity.NetworkDefinition) (BlockchainClient, error)
}
