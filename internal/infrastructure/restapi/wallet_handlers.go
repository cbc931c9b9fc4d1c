package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_aggregator/internal/domain/entity"
)

// WalletManager is the wallet store surface.
type WalletManager interface {
	List() ([]entity.WalletAddress, error)
	Add(source, chain, address, label, apiKey string) (entity.WalletAddress, error)
	UpdateLabel(id, label string) error
	Remove(id string) error
}

// AddWalletRequest is the body of POST /wallets.
type AddWalletRequest struct {
	Source  string `json:"source" binding:"required"`
	Chain   string `json:"chain" binding:"required"`
	Address string `json:"address" binding:"required"`
	Label   string `json:"label"`
	APIKey  string `json:"apiKey"`
}

// UpdateLabelRequest is the body of PATCH /wallets/:id.
type UpdateLabelRequest struct {
	Label string `json:"label"`
}

// WalletHandler manages tracked addresses.
type WalletHandler struct {
	wallets WalletManager
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wm WalletManager) *WalletHandler {
	return &WalletHandler{wallets: wm}
}

// List returns every wallet.
func (h *WalletHandler) List(c *gin.Context) {
	wallets, err := h.wallets.List()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallets)
}

// Add registers a wallet.
func (h *WalletHandler) Add(c *gin.Context) {
	var req AddWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "source, chain and address are required")
		return
	}
	w, err := h.wallets.Add(req.Source, req.Chain, req.Address, req.Label, req.APIKey)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// UpdateLabel renames a wallet.
func (h *WalletHandler) UpdateLabel(c *gin.Context) {
	var req UpdateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed label payload")
		return
	}
	if err := h.wallets.UpdateLabel(c.Param("id"), req.Label); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Remove deletes a wallet.
func (h *WalletHandler) Remove(c *gin.Context) {
	if err := h.wallets.Remove(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
