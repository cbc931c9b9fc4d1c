package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/vault"
	"portfolio_aggregator/internal/infrastructure/walletstore"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, entity.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, vault.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, vault.ErrNotFound), errors.Is(err, walletstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, walletstore.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
