package credentialstore

import (
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/vault"
)

const (
	itemPrefix = "credential:"
	labelKind  = "kind"
	labelName  = "label"
)

// Store keeps exchange credentials in the vault. References are readable while the vault is locked;
// secrets are not.
type Store struct {
	vault  *vault.Vault
	logger port.Logger
}

var _ port.CredentialRegistry = (*Store)(nil)

// New creates a new Store.
func New(v *vault.Vault, logger port.Logger) *Store {
	return &Store{vault: v, logger: logger}
}

// List returns the stored credential references sorted by source id.
func (s *Store) List() ([]entity.CredentialRef, error) {
	ids, labels := s.vault.Labels(itemPrefix)
	refs := make([]entity.CredentialRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, entity.CredentialRef{
			SourceID: strings.TrimPrefix(id, itemPrefix),
			Kind:     labels[id][labelKind],
			Label:    labels[id][labelName],
		})
	}
	return refs, nil
}

// GetDecrypted returns nil when the vault is locked or the item is missing or unreadable.
func (s *Store) GetDecrypted(sourceID string) *entity.Credential {
	raw, err := s.vault.Get(itemPrefix + sourceID)
	if err != nil {
		if !errors.Is(err, entity.ErrLocked) && !errors.Is(err, vault.ErrNotFound) {
			s.logger.Warn("Failed to decrypt credential", "source", sourceID, "error", err)
		}
		return nil
	}
	var cred entity.Credential
	if err := jsoniter.Unmarshal(raw, &cred); err != nil {
		s.logger.Warn("Stored credential is malformed", "source", sourceID, "error", err)
		return nil
	}
	return &cred
}

// Set stores or replaces the credential of ref.SourceID. The vault must be unlocked.
func (s *Store) Set(ref entity.CredentialRef, cred entity.Credential) error {
	ref.SourceID = strings.TrimSpace(ref.SourceID)
	ref.Kind = strings.ToLower(strings.TrimSpace(ref.Kind))
	switch {
	case ref.SourceID == "":
		return fmt.Errorf("%w: source id is required", entity.ErrInvalidInput)
	case ref.Kind == "":
		return fmt.Errorf("%w: exchange kind is required", entity.ErrInvalidInput)
	case strings.TrimSpace(cred.APIKey) == "" || strings.TrimSpace(cred.Secret) == "":
		return fmt.Errorf("%w: api key and secret are required", entity.ErrInvalidInput)
	}

	raw, err := jsoniter.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	labels := map[string]string{labelKind: ref.Kind}
	if ref.Label != "" {
		labels[labelName] = ref.Label
	}
	if err := s.vault.Put(itemPrefix+ref.SourceID, labels, raw); err != nil {
		return fmt.Errorf("failed to store credential %s: %w", ref.SourceID, err)
	}
	s.logger.Info("Credential stored", "source", ref.SourceID, "kind", ref.Kind)
	return nil
}

// Remove deletes the credential of sourceID.
func (s *Store) Remove(sourceID string) error {
	if err := s.vault.Delete(itemPrefix + sourceID); err != nil {
		return fmt.Errorf("failed to remove credential %s: %w", sourceID, err)
	}
	s.logger.Info("Credential removed", "source", sourceID)
	return nil
}
