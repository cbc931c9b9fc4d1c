package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// BalanceSource is one exchange account type or one chain address.
type BalanceSource interface {
	// Name is the source label used in error strings (exchange name or wallet source id).
	Name() string
	// Category is the account type or chain code.
	Category() string
	Policy() entity.ErrorPolicy
	// Fetch returns positive balances only. It must not retry.
	Fetch(ctx context.Context) ([]entity.BalanceRecord, error)
}

// SourceProvider builds balance sources from registry entries.
type SourceProvider interface {
	ExchangeSources(ref entity.CredentialRef, cred entity.Credential) ([]BalanceSource, error)
	WalletSource(wallet entity.WalletAddress, apiKey string) (BalanceSource, error)
	// KnownSources lists every source id the provider can serve.
	KnownSources() []entity.SourceInfo
	// SupportedChains lists every chain code accepted by WalletSource.
	SupportedChains() []string
}
