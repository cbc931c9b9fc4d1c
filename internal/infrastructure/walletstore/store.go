package walletstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/vault"
)

const apiKeyPrefix = "wallet:"

var (
	// ErrDuplicate is returned when the address is already tracked for the same source and chain.
	ErrDuplicate = errors.New("address already exists for this source")
	// ErrNotFound is returned for unknown wallet ids.
	ErrNotFound = errors.New("wallet not found")
)

// ValidSources are the wallet source ids an address can be registered under.
var ValidSources = []string{"binance_hot", "okx_hot", "ledger_cold"}

type fileFormat struct {
	Wallets []entity.WalletAddress `yaml:"wallets"`
}

// Store keeps wallet addresses in a YAML file and their optional provider API keys in the vault.
type Store struct {
	path   string
	vault  *vault.Vault
	chains map[string]struct{}
	logger port.Logger
	now    func() time.Time

	mu      sync.RWMutex
	wallets []entity.WalletAddress
}

var _ port.WalletRegistry = (*Store)(nil)

// Open loads the wallet file. A missing file is an empty store.
func Open(path string, v *vault.Vault, supportedChains []string, logger port.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		vault:  v,
		chains: make(map[string]struct{}, len(supportedChains)),
		logger: logger,
		now:    time.Now,
	}
	for _, c := range supportedChains {
		s.chains[c] = struct{}{}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file %s: %w", path, err)
	}
	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet file %s: %w", path, err)
	}
	s.wallets = file.Wallets
	logger.Info("Wallets loaded", "path", path, "count", len(s.wallets))
	return s, nil
}

// List returns every stored wallet in insertion order.
func (s *Store) List() ([]entity.WalletAddress, error) {
	ids, _ := s.vault.Labels(apiKeyPrefix)
	withKey := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		withKey[strings.TrimPrefix(id, apiKeyPrefix)] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.WalletAddress, len(s.wallets))
	for i, w := range s.wallets {
		_, w.HasAPIKey = withKey[w.ID]
		out[i] = w
	}
	return out, nil
}

// GetAPIKey returns "" when no key is stored or the vault is locked.
func (s *Store) GetAPIKey(id string) string {
	raw, err := s.vault.Get(apiKeyPrefix + id)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Add registers an address. A non-empty apiKey is sealed in the vault, which must then be unlocked.
func (s *Store) Add(source, chain, address, label, apiKey string) (entity.WalletAddress, error) {
	source = strings.TrimSpace(source)
	chain = strings.TrimSpace(chain)
	address = strings.TrimSpace(address)

	if !slices.Contains(ValidSources, source) {
		return entity.WalletAddress{}, fmt.Errorf("%w: invalid wallet source %q, expected one of %s", entity.ErrInvalidInput, source, strings.Join(ValidSources, ", "))
	}
	if _, ok := s.chains[chain]; !ok {
		return entity.WalletAddress{}, fmt.Errorf("%w: unsupported chain %q", entity.ErrInvalidInput, chain)
	}
	if address == "" {
		return entity.WalletAddress{}, fmt.Errorf("%w: address is required", entity.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.wallets {
		if w.Address == address && w.Source == source && w.Chain == chain {
			return entity.WalletAddress{}, ErrDuplicate
		}
	}

	now := s.now().UnixMilli()
	id := fmt.Sprintf("%s_%s_%d", source, chain, now)
	// two additions within one millisecond
	for seq := 1; s.hasID(id); seq++ {
		id = fmt.Sprintf("%s_%s_%d_%d", source, chain, now, seq)
	}
	w := entity.WalletAddress{
		ID:        id,
		Chain:     chain,
		Address:   address,
		Source:    source,
		Label:     strings.TrimSpace(label),
		CreatedAt: now,
	}

	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		if err := s.vault.Put(apiKeyPrefix+w.ID, nil, []byte(apiKey)); err != nil {
			return entity.WalletAddress{}, fmt.Errorf("failed to store API key: %w", err)
		}
		w.HasAPIKey = true
	}

	s.wallets = append(s.wallets, w)
	if err := s.persist(); err != nil {
		s.wallets = s.wallets[:len(s.wallets)-1]
		if w.HasAPIKey {
			_ = s.vault.Delete(apiKeyPrefix + w.ID)
		}
		return entity.WalletAddress{}, err
	}
	s.logger.Info("Wallet added", "id", w.ID, "chain", chain, "source", source)
	return w, nil
}

// UpdateLabel replaces the label of a wallet.
func (s *Store) UpdateLabel(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.wallets {
		if s.wallets[i].ID != id {
			continue
		}
		previous := s.wallets[i].Label
		s.wallets[i].Label = strings.TrimSpace(label)
		if err := s.persist(); err != nil {
			s.wallets[i].Label = previous
			return err
		}
		return nil
	}
	return ErrNotFound
}

// Remove deletes a wallet and its API key.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, w := range s.wallets {
		if w.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}

	previous := s.wallets
	s.wallets = append(append([]entity.WalletAddress{}, s.wallets[:idx]...), s.wallets[idx+1:]...)
	if err := s.persist(); err != nil {
		s.wallets = previous
		return err
	}
	if err := s.vault.Delete(apiKeyPrefix + id); err != nil && !errors.Is(err, vault.ErrNotFound) {
		s.logger.Warn("Failed to delete wallet API key", "id", id, "error", err)
	}
	s.logger.Info("Wallet removed", "id", id)
	return nil
}

// persist writes the wallet file. Callers hold mu.
func (s *Store) persist() error {
	data, err := yaml.Marshal(fileFormat{Wallets: s.wallets})
	if err != nil {
		return fmt.Errorf("failed to marshal wallets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create wallet directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write wallet file %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) hasID(id string) bool {
	for _, w := range s.wallets {
		if w.ID == id {
			return true
		}
	}
	return false
}
