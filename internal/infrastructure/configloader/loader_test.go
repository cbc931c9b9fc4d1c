package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"AGGREGATOR_PORT", "AGGREGATOR_LOG_LEVEL", "ETHERSCAN_API_KEY", "COINGECKO_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
coingecko:
  symbolIdMapping:
    BTC: wrapped-bitcoin
    PEPE: pepe
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NotNil(t, cfg.Portfolio.DustThresholdUSD)
	assert.Equal(t, 1.0, cfg.Portfolio.DustThreshold())
	assert.Equal(t, 0, cfg.Portfolio.RefreshIntervalSeconds)
	assert.Equal(t, 60, cfg.PriceOracle.CacheTTLSeconds)
	assert.Equal(t, []string{"USDT", "USDC", "FDUSD", "BUSD"}, cfg.PriceOracle.QuotePreference)
	assert.Equal(t, int64(10000), cfg.HTTPClient.RequestTimeoutMillis)
	assert.Equal(t, "https://api.binance.com", cfg.Exchanges.Binance.SpotBaseURL)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.Chains.SolanaRPC)
	assert.Equal(t, 30, cfg.Vault.SessionTimeoutMinutes)
	assert.Equal(t, 10, cfg.Performance.MaxConcurrentRoutines)

	mapping := cfg.CoinGecko.SymbolIDMapping
	assert.Equal(t, "wrapped-bitcoin", mapping["BTC"], "custom entries win over defaults")
	assert.Equal(t, "pepe", mapping["PEPE"])
	assert.Equal(t, "ethereum", mapping["ETH"])
	assert.Equal(t, "cardano", mapping["ADA"])
}

func TestLoad_KeepsExplicitValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: "9090"
portfolio:
  dustThresholdUSD: 0
  refreshIntervalSeconds: 300
httpClient:
  requestTimeoutMillis: 2500
networks:
  - identifier: bsc
    rpcURL: https://bsc.example.org
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	require.NotNil(t, cfg.Portfolio.DustThresholdUSD)
	assert.Zero(t, cfg.Portfolio.DustThreshold())
	assert.Equal(t, 300, cfg.Portfolio.RefreshIntervalSeconds)
	assert.Equal(t, int64(2500), cfg.HTTPClient.RequestTimeoutMillis)
	require.Len(t, cfg.Networks, 1)
	assert.Equal(t, "https://bsc.example.org", cfg.Networks[0].RPCURL)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
logging:
  level: info
chains:
  etherscan:
    apiKey: from-file
`)
	t.Setenv("AGGREGATOR_PORT", "7070")
	t.Setenv("AGGREGATOR_LOG_LEVEL", "debug")
	t.Setenv("ETHERSCAN_API_KEY", "from-env")
	t.Setenv("COINGECKO_API_KEY", "cg-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "from-env", cfg.Chains.Etherscan.APIKey)
	assert.Equal(t, "cg-env", cfg.CoinGecko.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "negative dust threshold",
			body:    "portfolio:\n  dustThresholdUSD: -1\n",
			wantErr: "portfolio.dustThresholdUSD must not be negative",
		},
		{
			name:    "negative refresh interval",
			body:    "portfolio:\n  refreshIntervalSeconds: -5\n",
			wantErr: "portfolio.refreshIntervalSeconds must not be negative",
		},
		{
			name:    "network without identifier",
			body:    "networks:\n  - rpcURL: https://rpc.example.org\n",
			wantErr: "networks[0]: identifier is required",
		},
		{
			name:    "network without rpc url",
			body:    "networks:\n  - identifier: polygon\n",
			wantErr: "networks[0] (polygon): rpcURL is required",
		},
		{
			name:    "malformed yaml",
			body:    "server: [unterminated\n",
			wantErr: "failed to unmarshal config data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestApplyDefaults_IsIdempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	first := *cfg.Portfolio.DustThresholdUSD
	ApplyDefaults(cfg)

	assert.Equal(t, first, *cfg.Portfolio.DustThresholdUSD)
	assert.NoError(t, cfg.Validate())
}
