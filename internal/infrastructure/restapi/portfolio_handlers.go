package restapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// SourcesResponse is the registry of sources and chain codes a wallet or credential can use.
type SourcesResponse struct {
	Sources []entity.SourceInfo `json:"sources"`
	Chains  []string            `json:"chains"`
}

// PortfolioHandler serves the aggregation engine.
type PortfolioHandler struct {
	portfolioService port.PortfolioService
	sources          port.SourceProvider
	logger           port.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(ps port.PortfolioService, sp port.SourceProvider, logger port.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: ps, sources: sp, logger: logger}
}

// GetSnapshot returns the current summaries.
func (h *PortfolioHandler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.portfolioService.Snapshot())
}

// Refresh runs a pass and returns the resulting snapshot. The pass outlives a dropped client
// because concurrent callers may be sharing it.
func (h *PortfolioHandler) Refresh(c *gin.Context) {
	h.portfolioService.Refresh(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusOK, h.portfolioService.Snapshot())
}

// Clear wipes the engine state.
func (h *PortfolioHandler) Clear(c *gin.Context) {
	h.portfolioService.Clear()
	c.Status(http.StatusNoContent)
}

// GetRecords returns the raw balance records of the last pass.
func (h *PortfolioHandler) GetRecords(c *gin.Context) {
	c.JSON(http.StatusOK, h.portfolioService.Records())
}

// GetSources returns the known sources and supported chains.
func (h *PortfolioHandler) GetSources(c *gin.Context) {
	c.JSON(http.StatusOK, SourcesResponse{
		Sources: h.sources.KnownSources(),
		Chains:  h.sources.SupportedChains(),
	})
}
