package configloader

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PortfolioConfig holds aggregation engine settings.
type PortfolioConfig struct {
	DustThresholdUSD       *float64 `yaml:"dustThresholdUSD"`       // nil means the default; 0 keeps every position
	RefreshIntervalSeconds int      `yaml:"refreshIntervalSeconds"` // 0 disables background refresh
}

// DustThreshold returns the configured threshold, or the default when unset.
func (p PortfolioConfig) DustThreshold() float64 {
	if p.DustThresholdUSD == nil {
		return defaultDustThresholdUSD
	}
	return *p.DustThresholdUSD
}

// PriceOracleConfig holds configuration for the price oracle and its primary provider.
type PriceOracleConfig struct {
	CacheTTLSeconds int      `yaml:"cacheTTLSeconds"`
	BinanceBaseURL  string   `yaml:"binanceBaseURL"`
	QuotePreference []string `yaml:"quotePreference"`
	Stablecoins     []string `yaml:"stablecoins"`
}

// CoinGeckoConfig holds CoinGecko API specific configurations.
type CoinGeckoConfig struct {
	APIKey               string            `yaml:"apiKey"`
	BaseURL              string            `yaml:"baseURL"`
	ClientTimeoutSeconds int               `yaml:"clientTimeoutSeconds"`
	VsCurrency           string            `yaml:"vsCurrency"`
	MaxIDsPerRequest     int               `yaml:"maxIdsPerRequest"`
	SymbolIDMapping      map[string]string `yaml:"symbolIdMapping"`
}

// HTTPClientConfig holds settings shared by the REST adapters.
type HTTPClientConfig struct {
	RequestTimeoutMillis int64 `yaml:"requestTimeoutMillis"`
}

// BinanceConfig holds Binance endpoint overrides.
type BinanceConfig struct {
	SpotBaseURL     string `yaml:"spotBaseURL"`
	FuturesBaseURL  string `yaml:"futuresBaseURL"`
	DeliveryBaseURL string `yaml:"deliveryBaseURL"`
}

// OKXConfig holds OKX endpoint overrides.
type OKXConfig struct {
	BaseURL string `yaml:"baseURL"`
}

// BybitConfig holds Bybit endpoint overrides.
type BybitConfig struct {
	BaseURL string `yaml:"baseURL"`
}

// ExchangesConfig groups exchange adapters settings.
type ExchangesConfig struct {
	Binance BinanceConfig `yaml:"binance"`
	OKX     OKXConfig     `yaml:"okx"`
	Bybit   BybitConfig   `yaml:"bybit"`
}

// ChainAPIConfig describes a rate-limited public chain API.
type ChainAPIConfig struct {
	BaseURL           string  `yaml:"baseURL"`
	APIKey            string  `yaml:"apiKey"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
}

// ChainsConfig groups chain adapters settings.
type ChainsConfig struct {
	Blockchain ChainAPIConfig `yaml:"blockchain"`
	Etherscan  ChainAPIConfig `yaml:"etherscan"`
	Koios      ChainAPIConfig `yaml:"koios"`
	SolanaRPC  string         `yaml:"solanaRPC"`
	TokensDir  string         `yaml:"tokensDir"`
}

// VaultConfig holds the encrypted credential and wallet store settings.
type VaultConfig struct {
	Path                  string `yaml:"path"`
	WalletsPath           string `yaml:"walletsPath"`
	ImportWalletsPath     string `yaml:"importWalletsPath"` // optional plain-text list added at startup
	SessionTimeoutMinutes int    `yaml:"sessionTimeoutMinutes"`
}

// NetworkNodeConfig overrides the RPC endpoints of a known EVM network.
type NetworkNodeConfig struct {
	Identifier      string   `yaml:"identifier"` // e.g. "bsc"
	RPCURL          string   `yaml:"rpcURL"`
	FallbackRPCURLs []string `yaml:"fallbackRpcURLs"`
}

// PerformanceConfig holds performance-related configurations.
type PerformanceConfig struct {
	MaxConcurrentRoutines int `yaml:"max_concurrent_routines"`
	RPCCallTimeoutSeconds int `yaml:"rpc_call_timeout_seconds"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig        `yaml:"server"`
	Logging     LoggingConfig       `yaml:"logging"`
	Portfolio   PortfolioConfig     `yaml:"portfolio"`
	PriceOracle PriceOracleConfig   `yaml:"priceOracle"`
	CoinGecko   CoinGeckoConfig     `yaml:"coingecko"`
	HTTPClient  HTTPClientConfig    `yaml:"httpClient"`
	Exchanges   ExchangesConfig     `yaml:"exchanges"`
	Chains      ChainsConfig        `yaml:"chains"`
	Vault       VaultConfig         `yaml:"vault"`
	Performance PerformanceConfig   `yaml:"performance"`
	Networks    []NetworkNodeConfig `yaml:"networks"`
}

const defaultDustThresholdUSD = 1.0

var defaultSymbolIDMapping = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"ADA":  "cardano",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"AVAX": "avalanche-2",
	"POL":  "polygon-ecosystem-token",
	"LINK": "chainlink",
	"TRX":  "tron",
	"TON":  "the-open-network",
	"USDT": "tether",
	"USDC": "usd-coin",
}

// Load reads the YAML configuration file from the given path, applies defaults and environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Portfolio.DustThresholdUSD == nil {
		dust := defaultDustThresholdUSD
		cfg.Portfolio.DustThresholdUSD = &dust
	}

	if cfg.PriceOracle.CacheTTLSeconds <= 0 {
		cfg.PriceOracle.CacheTTLSeconds = 60
	}
	if cfg.PriceOracle.BinanceBaseURL == "" {
		cfg.PriceOracle.BinanceBaseURL = "https://api.binance.com"
	}
	if len(cfg.PriceOracle.QuotePreference) == 0 {
		cfg.PriceOracle.QuotePreference = []string{"USDT", "USDC", "FDUSD", "BUSD"}
	}
	if len(cfg.PriceOracle.Stablecoins) == 0 {
		cfg.PriceOracle.Stablecoins = []string{"USDT", "USDC", "BUSD", "DAI", "FDUSD", "TUSD", "USDP"}
	}

	if cfg.CoinGecko.BaseURL == "" {
		cfg.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.CoinGecko.ClientTimeoutSeconds <= 0 {
		cfg.CoinGecko.ClientTimeoutSeconds = 10
	}
	if cfg.CoinGecko.VsCurrency == "" {
		cfg.CoinGecko.VsCurrency = "usd"
	}
	if cfg.CoinGecko.MaxIDsPerRequest <= 0 {
		cfg.CoinGecko.MaxIDsPerRequest = 50
	}
	if cfg.CoinGecko.SymbolIDMapping == nil {
		cfg.CoinGecko.SymbolIDMapping = make(map[string]string, len(defaultSymbolIDMapping))
	}
	for symbol, id := range defaultSymbolIDMapping {
		if _, ok := cfg.CoinGecko.SymbolIDMapping[symbol]; !ok {
			cfg.CoinGecko.SymbolIDMapping[symbol] = id
		}
	}

	if cfg.HTTPClient.RequestTimeoutMillis <= 0 {
		cfg.HTTPClient.RequestTimeoutMillis = 10000
	}

	if cfg.Exchanges.Binance.SpotBaseURL == "" {
		cfg.Exchanges.Binance.SpotBaseURL = "https://api.binance.com"
	}
	if cfg.Exchanges.Binance.FuturesBaseURL == "" {
		cfg.Exchanges.Binance.FuturesBaseURL = "https://fapi.binance.com"
	}
	if cfg.Exchanges.Binance.DeliveryBaseURL == "" {
		cfg.Exchanges.Binance.DeliveryBaseURL = "https://dapi.binance.com"
	}
	if cfg.Exchanges.OKX.BaseURL == "" {
		cfg.Exchanges.OKX.BaseURL = "https://www.okx.com"
	}
	if cfg.Exchanges.Bybit.BaseURL == "" {
		cfg.Exchanges.Bybit.BaseURL = "https://api.bybit.com"
	}

	if cfg.Chains.Blockchain.BaseURL == "" {
		cfg.Chains.Blockchain.BaseURL = "https://blockchain.info"
	}
	if cfg.Chains.Blockchain.RequestsPerSecond <= 0 {
		cfg.Chains.Blockchain.RequestsPerSecond = 5
	}
	if cfg.Chains.Etherscan.BaseURL == "" {
		cfg.Chains.Etherscan.BaseURL = "https://api.etherscan.io/v2/api"
	}
	if cfg.Chains.Etherscan.RequestsPerSecond <= 0 {
		cfg.Chains.Etherscan.RequestsPerSecond = 4 // free tier allows 5/s
	}
	if cfg.Chains.Koios.BaseURL == "" {
		cfg.Chains.Koios.BaseURL = "https://api.koios.rest"
	}
	if cfg.Chains.Koios.RequestsPerSecond <= 0 {
		cfg.Chains.Koios.RequestsPerSecond = 5
	}
	if cfg.Chains.SolanaRPC == "" {
		cfg.Chains.SolanaRPC = "https://api.mainnet-beta.solana.com"
	}
	if cfg.Chains.TokensDir == "" {
		cfg.Chains.TokensDir = "data/tokens"
	}

	if cfg.Vault.Path == "" {
		cfg.Vault.Path = "data/vault.json"
	}
	if cfg.Vault.WalletsPath == "" {
		cfg.Vault.WalletsPath = "data/wallets.yml"
	}
	if cfg.Vault.SessionTimeoutMinutes <= 0 {
		cfg.Vault.SessionTimeoutMinutes = 30
	}

	if cfg.Performance.MaxConcurrentRoutines <= 0 {
		cfg.Performance.MaxConcurrentRoutines = 10
	}
	if cfg.Performance.RPCCallTimeoutSeconds <= 0 {
		cfg.Performance.RPCCallTimeoutSeconds = 10
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGGREGATOR_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("AGGREGATOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ETHERSCAN_API_KEY"); v != "" {
		cfg.Chains.Etherscan.APIKey = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.CoinGecko.APIKey = v
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	if dust := c.Portfolio.DustThreshold(); dust < 0 {
		return fmt.Errorf("portfolio.dustThresholdUSD must not be negative, got %v", dust)
	}
	if c.Portfolio.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("portfolio.refreshIntervalSeconds must not be negative, got %d", c.Portfolio.RefreshIntervalSeconds)
	}
	for i, network := range c.Networks {
		if strings.TrimSpace(network.Identifier) == "" {
			return fmt.Errorf("networks[%d]: identifier is required", i)
		}
		if strings.TrimSpace(network.RPCURL) == "" {
			return fmt.Errorf("networks[%d] (%s): rpcURL is required", i, network.Identifier)
		}
	}
	return nil
}
