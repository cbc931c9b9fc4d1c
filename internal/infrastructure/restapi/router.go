package restapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/infrastructure/configloader"
)

// Handlers groups every handler mounted by the router.
type Handlers struct {
	Portfolio  *PortfolioHandler
	Session    *SessionHandler
	Credential *CredentialHandler
	Wallet     *WalletHandler
}

// SetupRouter builds the gin engine with CORS, request logging and the /metrics endpoint.
func SetupRouter(h Handlers, cfg configloader.ServerConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.Named("HTTP")))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/portfolio", h.Portfolio.GetSnapshot)
		v1.POST("/portfolio/refresh", h.Portfolio.Refresh)
		v1.DELETE("/portfolio", h.Portfolio.Clear)
		v1.GET("/portfolio/assets", h.Portfolio.GetRecords)
		v1.GET("/sources", h.Portfolio.GetSources)

		v1.GET("/session", h.Session.Status)
		v1.POST("/session/unlock", h.Session.Unlock)
		v1.POST("/session/lock", h.Session.Lock)

		v1.GET("/credentials", h.Credential.List)
		v1.PUT("/credentials/:sourceId", h.Credential.Set)
		v1.DELETE("/credentials/:sourceId", h.Credential.Remove)

		v1.GET("/wallets", h.Wallet.List)
		v1.POST("/wallets", h.Wallet.Add)
		v1.PATCH("/wallets/:id", h.Wallet.UpdateLabel)
		v1.DELETE("/wallets/:id", h.Wallet.Remove)
	}

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
