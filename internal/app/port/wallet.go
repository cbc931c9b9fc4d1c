package port

import "portfolio_aggregator/internal/domain/entity"

// WalletRegistry supplies stored addresses and their optional provider API keys.
type WalletRegistry interface {
	List() ([]entity.WalletAddress, error)
	// GetAPIKey returns "" when no key is stored or the registry is locked.
	GetAPIKey(id string) string
}
