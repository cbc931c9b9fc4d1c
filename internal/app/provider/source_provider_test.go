package provider

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/pkg/logger"
)

var bscDef = entity.NetworkDefinition{ChainID: 56, Name: "BNB Smart Chain", Identifier: "bsc", NativeSymbol: "BNB", Decimals: 18}

type fakeNetworks struct{}

func (fakeNetworks) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	return []entity.NetworkDefinition{bscDef}
}

func (fakeNetworks) GetNetworkDefinitionByName(id string) (entity.NetworkDefinition, bool) {
	if id == bscDef.Identifier {
		return bscDef, true
	}
	return entity.NetworkDefinition{}, false
}

type fakeEVMClient struct {
	requests []entity.BalanceRequestItem
}

func (f *fakeEVMClient) GetBalances(_ context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	f.requests = requests
	out := make([]entity.BalanceResultItem, len(requests))
	for i, r := range requests {
		out[i] = entity.BalanceResultItem{
			TokenSymbol: r.TokenSymbol,
			Decimals:    r.TokenDecimals,
			IsNative:    r.Type == entity.NativeBalanceRequest,
			Balance:     new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(r.TokenDecimals)), nil),
		}
	}
	return out, nil
}

func (f *fakeEVMClient) Definition() entity.NetworkDefinition { return bscDef }

type fakeClientProvider struct {
	client *fakeEVMClient
	err    error
}

func (f *fakeClientProvider) GetClient(entity.NetworkDefinition) (port.BlockchainClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

type fakeLoader struct {
	tokens map[string][]entity.TokenInfo
	err    error
	calls  int
}

func (f *fakeLoader) GetTokensByNetwork([]entity.NetworkDefinition) (map[string][]entity.TokenInfo, error) {
	f.calls++
	return f.tokens, f.err
}

func newProvider(t *testing.T, clients *fakeClientProvider, loader *fakeLoader) port.SourceProvider {
	t.Helper()
	cfg := &configloader.Config{}
	configloader.ApplyDefaults(cfg)
	if loader == nil {
		loader = &fakeLoader{}
	}
	if clients == nil {
		clients = &fakeClientProvider{client: &fakeEVMClient{}}
	}
	cache := NewTokenCache(loader, fakeNetworks{}, logger.Nop())
	return NewSourceProvider(cfg, fakeNetworks{}, clients, cache, zap.NewNop())
}

func names(sources []port.BalanceSource) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Name() + " " + s.Category()
	}
	return out
}

func TestExchangeSources(t *testing.T) {
	p := newProvider(t, nil, nil)

	sources, err := p.ExchangeSources(entity.CredentialRef{SourceID: "binance_cex", Kind: "binance"}, entity.Credential{APIKey: "k", Secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Binance spot", "Binance funding", "Binance earn_flexible", "Binance earn_locked",
		"Binance futures_usdt", "Binance futures_coin",
	}, names(sources))

	sources, err = p.ExchangeSources(entity.CredentialRef{SourceID: "okx_cex", Kind: "OKX", Label: "OKX main"},
		entity.Credential{APIKey: "k", Secret: "s", Passphrase: "p"})
	require.NoError(t, err)
	assert.Equal(t, []string{"OKX main trading", "OKX main funding", "OKX main savings", "OKX main staking"}, names(sources))

	sources, err = p.ExchangeSources(entity.CredentialRef{SourceID: "bybit_cex", Kind: "bybit"}, entity.Credential{APIKey: "k", Secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bybit unified"}, names(sources))
}

func TestExchangeSources_Errors(t *testing.T) {
	p := newProvider(t, nil, nil)

	_, err := p.ExchangeSources(entity.CredentialRef{SourceID: "kraken_cex", Kind: "kraken"}, entity.Credential{APIKey: "k", Secret: "s"})
	assert.EqualError(t, err, "unknown exchange kind kraken")

	_, err = p.ExchangeSources(entity.CredentialRef{SourceID: "okx_cex", Kind: "okx"}, entity.Credential{APIKey: "k", Secret: "s"})
	assert.ErrorContains(t, err, "passphrase")
}

func TestWalletSource_DedicatedChains(t *testing.T) {
	p := newProvider(t, nil, nil)

	for _, chainCode := range []string{"BTC", "ETH", "ADA", "SOL"} {
		src, err := p.WalletSource(entity.WalletAddress{ID: "w", Chain: chainCode, Source: "ledger_cold", Address: "x"}, "")
		require.NoError(t, err, chainCode)
		assert.Equal(t, "ledger_cold", src.Name())
		assert.Equal(t, chainCode, src.Category())
		assert.Equal(t, entity.PolicySurface, src.Policy())
	}

	_, err := p.WalletSource(entity.WalletAddress{ID: "w", Chain: "DOGE", Source: "okx_hot"}, "")
	assert.EqualError(t, err, "chain DOGE is not supported")
}

func TestWalletSource_EVM(t *testing.T) {
	client := &fakeEVMClient{}
	loader := &fakeLoader{tokens: map[string][]entity.TokenInfo{
		"bsc": {{ChainID: 56, Address: "0x55d398326f99059fF775485246999027B3197955", Symbol: "USDT", Decimals: 18}},
	}}
	p := newProvider(t, &fakeClientProvider{client: client}, loader)

	wallet := entity.WalletAddress{ID: "okx_hot_bsc_1", Chain: "bsc", Source: "okx_hot", Address: "0x00000000219ab540356cBB839Cbe05303d7705Fa"}
	src, err := p.WalletSource(wallet, "")
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []entity.BalanceRecord{
		{Symbol: "BNB", Amount: 1, Source: "okx_hot"},
		{Symbol: "USDT", Amount: 1, Source: "okx_hot"},
	}, records)

	_, err = p.WalletSource(wallet, "")
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls)
}

func TestWalletSource_EVMClientFailure(t *testing.T) {
	p := newProvider(t, &fakeClientProvider{err: errors.New("all RPC connection attempts failed")}, nil)

	_, err := p.WalletSource(entity.WalletAddress{Chain: "bsc", Source: "okx_hot"}, "")
	assert.ErrorContains(t, err, "all RPC connection attempts failed")
}

func TestTokenCache_RetriesAfterFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("bad file")}
	cache := NewTokenCache(loader, fakeNetworks{}, logger.Nop())

	assert.Nil(t, cache.TokensFor("bsc"))
	loader.err = nil
	loader.tokens = map[string][]entity.TokenInfo{"bsc": {{Symbol: "USDT"}}}
	assert.Len(t, cache.TokensFor("bsc"), 1)
	assert.Len(t, cache.TokensFor("bsc"), 1)
	assert.Equal(t, 2, loader.calls)
}

func TestRegistry(t *testing.T) {
	p := newProvider(t, nil, nil)

	sources := p.KnownSources()
	require.Len(t, sources, 6)
	assert.Equal(t, "binance_cex", sources[0].ID)
	assert.Equal(t, entity.SourceCategoryCold, sources[5].Category)

	sources[0].ID = "mutated"
	assert.Equal(t, "binance_cex", p.KnownSources()[0].ID)

	assert.Equal(t, []string{"BTC", "ETH", "ADA", "SOL", "bsc"}, p.SupportedChains())
}
