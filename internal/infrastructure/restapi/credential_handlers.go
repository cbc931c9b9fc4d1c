package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// CredentialManager is the credential store surface. Secrets never leave it through the API.
type CredentialManager interface {
	List() ([]entity.CredentialRef, error)
	Set(ref entity.CredentialRef, cred entity.Credential) error
	Remove(sourceID string) error
}

// SetCredentialRequest is the body of PUT /credentials/:sourceId. Kind defaults to the known source kind.
type SetCredentialRequest struct {
	Kind       string `json:"kind"`
	Label      string `json:"label"`
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// CredentialHandler manages exchange credentials.
type CredentialHandler struct {
	credentials CredentialManager
	sources     port.SourceProvider
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(cm CredentialManager, sp port.SourceProvider) *CredentialHandler {
	return &CredentialHandler{credentials: cm, sources: sp}
}

// List returns the stored references.
func (h *CredentialHandler) List(c *gin.Context) {
	refs, err := h.credentials.List()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, refs)
}

// Set stores or replaces a credential.
func (h *CredentialHandler) Set(c *gin.Context) {
	var req SetCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed credential payload")
		return
	}

	ref := entity.CredentialRef{SourceID: c.Param("sourceId"), Kind: req.Kind, Label: req.Label}
	if ref.Kind == "" {
		for _, s := range h.sources.KnownSources() {
			if s.ID == ref.SourceID {
				ref.Kind = s.Kind
				break
			}
		}
	}

	err := h.credentials.Set(ref, entity.Credential{APIKey: req.APIKey, Secret: req.Secret, Passphrase: req.Passphrase})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

// Remove deletes a credential.
func (h *CredentialHandler) Remove(c *gin.Context) {
	if err := h.credentials.Remove(c.Param("sourceId")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
