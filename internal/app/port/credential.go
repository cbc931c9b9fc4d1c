package port

import "portfolio_aggregator/internal/domain/entity"

// CredentialRegistry supplies decrypted exchange credentials on demand.
type CredentialRegistry interface {
	List() ([]entity.CredentialRef, error)
	// GetDecrypted returns nil when the registry is locked or the credential cannot be decrypted.
	GetDecrypted(sourceID string) *entity.Credential
}
