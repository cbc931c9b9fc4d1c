package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_aggregator/internal/infrastructure/vault"
)

// SessionManager is the vault session surface.
type SessionManager interface {
	Unlock(password string) error
	Lock()
	Status() vault.Status
}

// UnlockRequest is the body of POST /session/unlock.
type UnlockRequest struct {
	Password string `json:"password" binding:"required"`
}

// SessionHandler opens and closes vault sessions.
type SessionHandler struct {
	session SessionManager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s SessionManager) *SessionHandler {
	return &SessionHandler{session: s}
}

// Status reports the session state.
func (h *SessionHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Status())
}

// Unlock opens a session; the first unlock sets the vault password.
func (h *SessionHandler) Unlock(c *gin.Context) {
	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "password is required")
		return
	}
	if err := h.session.Unlock(req.Password); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Status())
}

// Lock closes the session.
func (h *SessionHandler) Lock(c *gin.Context) {
	h.session.Lock()
	c.JSON(http.StatusOK, h.session.Status())
}
