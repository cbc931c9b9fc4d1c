package restapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/credentialstore"
	"portfolio_aggregator/internal/infrastructure/vault"
	"portfolio_aggregator/internal/infrastructure/walletstore"
	"portfolio_aggregator/internal/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fakePortfolio struct {
	refreshes atomic.Int32
	cleared   atomic.Bool
}

func (f *fakePortfolio) Refresh(ctx context.Context) {
	f.refreshes.Add(1)
}

func (f *fakePortfolio) Snapshot() entity.PortfolioSnapshot {
	updated := int64(1700000000000)
	return entity.PortfolioSnapshot{
		AssetSummaries: []entity.AssetSummary{},
		TotalValueUSD:  42.5,
		Errors:         []string{},
		LastUpdated:    &updated,
	}
}

func (f *fakePortfolio) Records() []entity.BalanceRecord {
	return []entity.BalanceRecord{{Symbol: "BTC", Amount: 0.5, Source: "Binance", AccountType: "spot"}}
}

func (f *fakePortfolio) Clear() {
	f.cleared.Store(true)
}

type fakeSources struct{}

func (fakeSources) ExchangeSources(entity.CredentialRef, entity.Credential) ([]port.BalanceSource, error) {
	return nil, nil
}

func (fakeSources) WalletSource(entity.WalletAddress, string) (port.BalanceSource, error) {
	return nil, nil
}

func (fakeSources) KnownSources() []entity.SourceInfo {
	return []entity.SourceInfo{
		{ID: "binance_cex", Name: "Binance CEX", Category: entity.SourceCategoryExchange, Kind: "binance"},
		{ID: "ledger_cold", Name: "Ledger Cold", Category: entity.SourceCategoryCold},
	}
}

func (fakeSources) SupportedChains() []string {
	return []string{"BTC", "ETH", "bsc"}
}

type testServer struct {
	router    *gin.Engine
	portfolio *fakePortfolio
	vault     *vault.Vault
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	v, err := vault.Open(filepath.Join(dir, "vault.json"), 30*time.Minute, logger.Nop())
	require.NoError(t, err)
	wallets, err := walletstore.Open(filepath.Join(dir, "wallets.yml"), v, fakeSources{}.SupportedChains(), logger.Nop())
	require.NoError(t, err)

	pf := &fakePortfolio{}
	h := Handlers{
		Portfolio:  NewPortfolioHandler(pf, fakeSources{}, logger.Nop()),
		Session:    NewSessionHandler(v),
		Credential: NewCredentialHandler(credentialstore.New(v, logger.Nop()), fakeSources{}),
		Wallet:     NewWalletHandler(wallets),
	}
	cfg := configloader.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}}
	return &testServer{router: SetupRouter(h, cfg, zap.NewNop()), portfolio: pf, vault: v}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPortfolioRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[entity.PortfolioSnapshot](t, rec)
	assert.Equal(t, 42.5, snap.TotalValueUSD)
	require.NotNil(t, snap.LastUpdated)

	rec = s.do(t, http.MethodPost, "/api/v1/portfolio/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, s.portfolio.refreshes.Load())

	rec = s.do(t, http.MethodGet, "/api/v1/portfolio/assets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]entity.BalanceRecord](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "BTC", records[0].Symbol)

	rec = s.do(t, http.MethodDelete, "/api/v1/portfolio", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, s.portfolio.cleared.Load())

	rec = s.do(t, http.MethodGet, "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sources := decode[SourcesResponse](t, rec)
	assert.Len(t, sources.Sources, 2)
	assert.Equal(t, []string{"BTC", "ETH", "bsc"}, sources.Chains)
}

func TestSessionRoutes(t *testing.T) {
	s := newTestServer(t)

	st := decode[vault.Status](t, s.do(t, http.MethodGet, "/api/v1/session", nil))
	assert.False(t, st.Initialized)
	assert.False(t, st.Unlocked)

	rec := s.do(t, http.MethodPost, "/api/v1/session/unlock", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/session/unlock", UnlockRequest{Password: "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[vault.Status](t, rec)
	assert.True(t, st.Initialized)
	assert.True(t, st.Unlocked)
	assert.NotNil(t, st.ExpiresAt)

	rec = s.do(t, http.MethodPost, "/api/v1/session/lock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[vault.Status](t, rec).Unlocked)

	rec = s.do(t, http.MethodPost, "/api/v1/session/unlock", UnlockRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
}

func TestCredentialRoutes(t *testing.T) {
	s := newTestServer(t)
	body := SetCredentialRequest{APIKey: "key", Secret: "secret"}

	rec := s.do(t, http.MethodPut, "/api/v1/credentials/binance_cex", body)
	assert.Equal(t, http.StatusLocked, rec.Code, "vault is locked")

	require.NoError(t, s.vault.Unlock("hunter2"))

	rec = s.do(t, http.MethodPut, "/api/v1/credentials/binance_cex", body)
	require.Equal(t, http.StatusOK, rec.Code)
	ref := decode[entity.CredentialRef](t, rec)
	assert.Equal(t, "binance", ref.Kind, "kind defaults from the known source")
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = s.do(t, http.MethodPut, "/api/v1/credentials/custom", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown source without kind")

	rec = s.do(t, http.MethodPut, "/api/v1/credentials/binance_cex", SetCredentialRequest{APIKey: "key"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.vault.Lock()
	refs := decode[[]entity.CredentialRef](t, s.do(t, http.MethodGet, "/api/v1/credentials", nil))
	require.Len(t, refs, 1)
	assert.Equal(t, "binance_cex", refs[0].SourceID)

	rec = s.do(t, http.MethodDelete, "/api/v1/credentials/binance_cex", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/v1/credentials/binance_cex", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletRoutes(t *testing.T) {
	s := newTestServer(t)
	add := AddWalletRequest{Source: "ledger_cold", Chain: "BTC", Address: "bc1qexample", Label: "cold"}

	rec := s.do(t, http.MethodPost, "/api/v1/wallets", add)
	require.Equal(t, http.StatusCreated, rec.Code)
	w := decode[entity.WalletAddress](t, rec)
	assert.Equal(t, "BTC", w.Chain)
	assert.False(t, w.HasAPIKey)

	rec = s.do(t, http.MethodPost, "/api/v1/wallets", add)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/wallets", AddWalletRequest{Source: "ledger_cold", Chain: "DOGE", Address: "D123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/wallets", AddWalletRequest{Source: "ledger_cold", Chain: "ETH"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "address is required")

	withKey := AddWalletRequest{Source: "okx_hot", Chain: "ETH", Address: "0x0000000000000000000000000000000000000001", APIKey: "etherscan-key"}
	rec = s.do(t, http.MethodPost, "/api/v1/wallets", withKey)
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/wallets/"+w.ID, UpdateLabelRequest{Label: "vault"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPatch, "/api/v1/wallets/missing", UpdateLabelRequest{Label: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	wallets := decode[[]entity.WalletAddress](t, s.do(t, http.MethodGet, "/api/v1/wallets", nil))
	require.Len(t, wallets, 1)
	assert.Equal(t, "vault", wallets[0].Label)

	rec = s.do(t, http.MethodDelete, "/api/v1/wallets/"+w.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/v1/wallets/"+w.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
