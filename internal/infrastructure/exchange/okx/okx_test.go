package okx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/httpclient"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient("okx_cex", "OKX", entity.Credential{APIKey: "key", Secret: "secret", Passphrase: "pass"},
		configloader.OKXConfig{BaseURL: baseURL}, httpclient.New("okx", zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func sourceFor(t *testing.T, c *Client, category string) func(context.Context) ([]entity.BalanceRecord, error) {
	t.Helper()
	for _, src := range c.Sources() {
		if src.Category() == category {
			return src.Fetch
		}
	}
	t.Fatalf("no source for %s", category)
	return nil
}

func TestFetch_AccountTypes(t *testing.T) {
	bodies := map[string]string{
		tradingPath: `{"code":"0","msg":"","data":[{"details":[
			{"ccy":"BTC","cashBal":"0.3"},{"ccy":"DOGE","cashBal":"0"},{"ccy":"usdt","cashBal":"12.5"}]}]}`,
		fundingPath: `{"code":"0","msg":"","data":[{"ccy":"ETH","availBal":"1.5","frozenBal":"0.5","bal":"2"}]}`,
		savingsPath: `{"code":"0","msg":"","data":[{"ccy":"USDC","amt":"300"}]}`,
		stakingPath: `{"code":"0","msg":"","data":[
			{"ccy":"SOL","investData":[{"ccy":"SOL","amt":"10"}]},
			{"ccy":"ETH","investData":[{"amt":"0.25"}]}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("OK-ACCESS-KEY"))
		assert.Equal(t, "pass", r.Header.Get("OK-ACCESS-PASSPHRASE"))
		assert.Equal(t, "2024-03-01T12:30:45.123Z", r.Header.Get("OK-ACCESS-TIMESTAMP"))
		assert.Equal(t, sign("secret", "2024-03-01T12:30:45.123Z"+"GET"+r.URL.Path), r.Header.Get("OK-ACCESS-SIGN"))
		_, _ = w.Write([]byte(bodies[r.URL.Path]))
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	tests := []struct {
		category string
		want     []entity.BalanceRecord
	}{
		{AccountTrading, []entity.BalanceRecord{
			{Symbol: "BTC", Amount: 0.3, Source: "okx_cex", AccountType: AccountTrading},
			{Symbol: "USDT", Amount: 12.5, Source: "okx_cex", AccountType: AccountTrading},
		}},
		{AccountFunding, []entity.BalanceRecord{{Symbol: "ETH", Amount: 2, Source: "okx_cex", AccountType: AccountFunding}}},
		{AccountSavings, []entity.BalanceRecord{{Symbol: "USDC", Amount: 300, Source: "okx_cex", AccountType: AccountSavings}}},
		{AccountStaking, []entity.BalanceRecord{
			{Symbol: "SOL", Amount: 10, Source: "okx_cex", AccountType: AccountStaking},
			{Symbol: "ETH", Amount: 0.25, Source: "okx_cex", AccountType: AccountStaking},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			records, err := sourceFor(t, c, tt.category)(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, records)
		})
	}
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMsg     string
		rateLimited bool
		decode      bool
	}{
		{name: "business error", status: 200, body: `{"code":"50113","msg":"Invalid Sign","data":[]}`, wantMsg: "Invalid Sign"},
		{name: "http error with envelope", status: 401, body: `{"code":"50111","msg":"Invalid OK-ACCESS-KEY"}`, wantMsg: "Invalid OK-ACCESS-KEY"},
		{name: "throttled code", status: 200, body: `{"code":"50011","msg":"Too Many Requests"}`, rateLimited: true},
		{name: "throttled status", status: 429, body: `{"code":"50011","msg":"Too Many Requests"}`, rateLimited: true},
		{name: "malformed", status: 200, body: `<html>`, decode: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := sourceFor(t, newTestClient(t, srv.URL), AccountTrading)(context.Background())
			require.Error(t, err)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Error())
			}
			assert.Equal(t, tt.rateLimited, errors.Is(err, entity.ErrRateLimited))
			if tt.decode {
				assert.ErrorIs(t, err, entity.ErrDecode)
			}
		})
	}
}

func TestSources_Policies(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	got := map[string]entity.ErrorPolicy{}
	for _, src := range c.Sources() {
		assert.Equal(t, "OKX", src.Name())
		got[src.Category()] = src.Policy()
	}
	assert.Equal(t, entity.PolicySurface, got[AccountTrading])
	assert.Equal(t, entity.PolicySurface, got[AccountFunding])
	assert.Equal(t, entity.PolicySwallow, got[AccountSavings])
	assert.Equal(t, entity.PolicySwallow, got[AccountStaking])
}

func TestNewClient_RequiresPassphrase(t *testing.T) {
	_, err := NewClient("okx_cex", "OKX", entity.Credential{APIKey: "k", Secret: "s"},
		configloader.OKXConfig{}, httpclient.New("okx", zap.NewNop()), zap.NewNop())
	assert.EqualError(t, err, "okx credential requires a passphrase")
}
