package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/provider"
	"portfolio_aggregator/internal/app/service"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/credentialstore"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	clientprovider "portfolio_aggregator/internal/infrastructure/network/client"
	networkdefinition "portfolio_aggregator/internal/infrastructure/network/definition"
	"portfolio_aggregator/internal/infrastructure/pricefeed"
	"portfolio_aggregator/internal/infrastructure/restapi"
	"portfolio_aggregator/internal/infrastructure/tokenloader"
	"portfolio_aggregator/internal/infrastructure/vault"
	"portfolio_aggregator/internal/infrastructure/walletloader"
	"portfolio_aggregator/internal/infrastructure/walletstore"
	"portfolio_aggregator/internal/pkg/logger"
)

const (
	defaultConfigPath = "config/config.yml"
	shutdownTimeout   = 5 * time.Second
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	configPath := os.Getenv("AGGREGATOR_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := configloader.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.NewZap(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	logger.Install(zapLogger, cfg.Logging.Level)
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	appLogger := logger.NewSlogAdapter()
	logger.Info("Portfolio aggregator starting", "config", configPath)

	v, err := vault.Open(cfg.Vault.Path, time.Duration(cfg.Vault.SessionTimeoutMinutes)*time.Minute, logger.NewSlogAdapter("component", "vault"))
	if err != nil {
		logger.Fatal("Failed to open vault", "error", err)
	}
	if password := os.Getenv("AGGREGATOR_VAULT_PASSWORD"); password != "" {
		if err := v.Unlock(password); err != nil {
			logger.Fatal("Failed to unlock vault from environment", "error", err)
		}
	}
	credentials := credentialstore.New(v, appLogger)

	networks := networkdefinition.NewNetworkDefinitionProvider(appLogger, cfg.Networks)
	evmClients := clientprovider.NewEVMClientProvider(cfg, zapLogger)
	tokens := provider.NewTokenCache(tokenloader.NewTokenLoader(cfg.Chains.TokensDir, appLogger), networks, appLogger)
	sources := provider.NewSourceProvider(cfg, networks, evmClients, tokens, zapLogger)

	wallets, err := walletstore.Open(cfg.Vault.WalletsPath, v, sources.SupportedChains(), appLogger)
	if err != nil {
		logger.Fatal("Failed to open wallet store", "error", err)
	}
	if cfg.Vault.ImportWalletsPath != "" {
		if _, err := walletloader.NewWalletFileLoader(cfg.Vault.ImportWalletsPath, appLogger).Import(wallets); err != nil {
			logger.Warn("Wallet import failed", "path", cfg.Vault.ImportWalletsPath, "error", err)
		}
	}

	coingeckoHTTP := httpclient.New("coingecko", zapLogger,
		httpclient.WithTimeout(time.Duration(cfg.CoinGecko.ClientTimeoutSeconds)*time.Second))
	oracle := service.NewPriceOracle(
		pricefeed.NewBinanceTicker(cfg.PriceOracle.BinanceBaseURL, cfg.PriceOracle.QuotePreference,
			httpclient.NewStdClient(time.Duration(cfg.HTTPClient.RequestTimeoutMillis)*time.Millisecond), zapLogger),
		pricefeed.NewCoinGecko(coingeckoHTTP, cfg.CoinGecko, zapLogger),
		logger.NewSlogAdapter("component", "price_oracle"),
		cfg,
	)
	portfolio := service.NewPortfolioService(credentials, wallets, sources, oracle, logger.NewSlogAdapter("component", "portfolio"), cfg)

	router := restapi.SetupRouter(restapi.Handlers{
		Portfolio:  restapi.NewPortfolioHandler(portfolio, sources, appLogger),
		Session:    restapi.NewSessionHandler(v),
		Credential: restapi.NewCredentialHandler(credentials, sources),
		Wallet:     restapi.NewWalletHandler(wallets),
	}, cfg.Server, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if interval := cfg.Portfolio.RefreshIntervalSeconds; interval > 0 {
		go runAutoRefresh(ctx, portfolio, time.Duration(interval)*time.Second)
		logger.Info("Background refresh enabled", "interval_seconds", interval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	v.Lock()
	logger.Info("Server exited")
}

type refresher interface {
	Refresh(ctx context.Context)
}

func runAutoRefresh(ctx context.Context, r refresher, interval time.Duration) {
	r.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}
