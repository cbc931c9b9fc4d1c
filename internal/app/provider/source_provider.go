package provider

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/chain"
	"portfolio_aggregator/internal/infrastructure/chain/bitcoin"
	"portfolio_aggregator/internal/infrastructure/chain/cardano"
	"portfolio_aggregator/internal/infrastructure/chain/etherscan"
	"portfolio_aggregator/internal/infrastructure/chain/evm"
	"portfolio_aggregator/internal/infrastructure/chain/solana"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/exchange/binance"
	"portfolio_aggregator/internal/infrastructure/exchange/bybit"
	"portfolio_aggregator/internal/infrastructure/exchange/okx"
	"portfolio_aggregator/internal/infrastructure/httpclient"
)

// Exchange adapter kinds.
const (
	KindBinance = "binance"
	KindOKX     = "okx"
	KindBybit   = "bybit"
)

// Chain codes served by dedicated adapters. EVM side chains use their network identifier.
const (
	ChainBTC = "BTC"
	ChainETH = "ETH"
	ChainADA = "ADA"
	ChainSOL = "SOL"
)

var knownSources = []entity.SourceInfo{
	{ID: "binance_cex", Name: "Binance CEX", Category: entity.SourceCategoryExchange, Kind: KindBinance},
	{ID: "okx_cex", Name: "OKX CEX", Category: entity.SourceCategoryExchange, Kind: KindOKX},
	{ID: "bybit_cex", Name: "Bybit CEX", Category: entity.SourceCategoryExchange, Kind: KindBybit},
	{ID: "binance_hot", Name: "Binance Hot", Category: entity.SourceCategoryHot},
	{ID: "okx_hot", Name: "OKX Hot", Category: entity.SourceCategoryHot},
	{ID: "ledger_cold", Name: "Ledger Cold", Category: entity.SourceCategoryCold},
}

var exchangeLabels = map[string]string{
	KindBinance: "Binance",
	KindOKX:     "OKX",
	KindBybit:   "Bybit",
}

// sourceProviderImpl implements port.SourceProvider.
type sourceProviderImpl struct {
	cfg        *configloader.Config
	logger     *zap.Logger
	restHTTP   *httpclient.Client
	sdkHTTP    *http.Client
	bitcoin    chain.Querier
	etherscan  *etherscan.Client
	cardano    chain.Querier
	solana     chain.Querier
	networks   port.NetworkDefinitionProvider
	evmClients port.BlockchainClientProvider
	tokens     *TokenCache
}

var _ port.SourceProvider = (*sourceProviderImpl)(nil)

// NewSourceProvider builds the chain clients once; exchange adapters are built per credential.
func NewSourceProvider(
	cfg *configloader.Config,
	networks port.NetworkDefinitionProvider,
	evmClients port.BlockchainClientProvider,
	tokens *TokenCache,
	logger *zap.Logger,
) port.SourceProvider {
	timeout := time.Duration(cfg.HTTPClient.RequestTimeoutMillis) * time.Millisecond
	chains := cfg.Chains
	sdkHTTP := httpclient.NewStdClient(timeout)

	return &sourceProviderImpl{
		cfg:      cfg,
		logger:   logger,
		restHTTP: httpclient.New("exchange", logger, httpclient.WithTimeout(timeout)),
		sdkHTTP:  sdkHTTP,
		bitcoin: bitcoin.NewClient(
			httpclient.New("blockchain.info", logger, httpclient.WithTimeout(timeout), httpclient.WithRateLimit(chains.Blockchain.RequestsPerSecond, 1)),
			chains.Blockchain.BaseURL, logger),
		etherscan: etherscan.NewClient(
			httpclient.New("etherscan", logger, httpclient.WithTimeout(timeout), httpclient.WithRateLimit(chains.Etherscan.RequestsPerSecond, 1)),
			chains.Etherscan.BaseURL, chains.Etherscan.APIKey, logger),
		cardano: cardano.NewClient(
			httpclient.New("koios", logger, httpclient.WithTimeout(timeout), httpclient.WithRateLimit(chains.Koios.RequestsPerSecond, 1)),
			chains.Koios.BaseURL, logger),
		solana:     solana.NewClient(chains.SolanaRPC, sdkHTTP, logger),
		networks:   networks,
		evmClients: evmClients,
		tokens:     tokens,
	}
}

// ExchangeSources builds the account-type sources of one exchange credential.
func (p *sourceProviderImpl) ExchangeSources(ref entity.CredentialRef, cred entity.Credential) ([]port.BalanceSource, error) {
	kind := strings.ToLower(ref.Kind)
	label := ref.Label
	if label == "" {
		label = exchangeLabels[kind]
	}

	switch kind {
	case KindBinance:
		c, err := binance.NewClient(ref.SourceID, label, cred, p.cfg.Exchanges.Binance, p.restHTTP, p.sdkHTTP, p.logger)
		if err != nil {
			return nil, err
		}
		return c.Sources(), nil
	case KindOKX:
		c, err := okx.NewClient(ref.SourceID, label, cred, p.cfg.Exchanges.OKX, p.restHTTP, p.logger)
		if err != nil {
			return nil, err
		}
		return c.Sources(), nil
	case KindBybit:
		c, err := bybit.NewClient(ref.SourceID, label, cred, p.cfg.Exchanges.Bybit, p.sdkHTTP, p.logger)
		if err != nil {
			return nil, err
		}
		return c.Sources(), nil
	default:
		return nil, fmt.Errorf("unknown exchange kind %s", ref.Kind)
	}
}

// WalletSource binds a wallet to the adapter of its chain.
func (p *sourceProviderImpl) WalletSource(wallet entity.WalletAddress, apiKey string) (port.BalanceSource, error) {
	querier, err := p.querier(wallet.Chain, apiKey)
	if err != nil {
		return nil, err
	}
	return chain.NewSource(wallet, querier), nil
}

func (p *sourceProviderImpl) querier(chainCode, apiKey string) (chain.Querier, error) {
	switch chainCode {
	case ChainBTC:
		return p.bitcoin, nil
	case ChainETH:
		return p.etherscan.ForKey(apiKey), nil
	case ChainADA:
		return p.cardano, nil
	case ChainSOL:
		return p.solana, nil
	}

	def, ok := p.networks.GetNetworkDefinitionByName(chainCode)
	if !ok {
		return nil, fmt.Errorf("chain %s is not supported", chainCode)
	}
	client, err := p.evmClients.GetClient(def)
	if err != nil {
		return nil, err
	}
	return evm.NewQuerier(client, p.tokens.TokensFor(def.Identifier), p.logger), nil
}

// KnownSources lists every source id, exchanges first.
func (p *sourceProviderImpl) KnownSources() []entity.SourceInfo {
	return append([]entity.SourceInfo{}, knownSources...)
}

// SupportedChains lists the dedicated chain codes followed by the EVM network identifiers.
func (p *sourceProviderImpl) SupportedChains() []string {
	chains := []string{ChainBTC, ChainETH, ChainADA, ChainSOL}
	for _, def := range p.networks.GetAllNetworkDefinitions() {
		chains = append(chains, def.Identifier)
	}
	return chains
}
