package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/scrypt"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	fileVersion = 1
	saltLen     = 16
	keyLen      = 32

	// interactive parameters recommended by the scrypt package
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1

	verifierPlaintext = "portfolio_aggregator vault"
)

var (
	// ErrWrongPassword is returned by Unlock when the password does not open the vault.
	ErrWrongPassword = errors.New("wrong vault password")
	// ErrNotFound is returned for unknown item ids.
	ErrNotFound = errors.New("vault item not found")
)

// Item is a sealed secret with plaintext metadata.
type Item struct {
	Labels map[string]string `json:"labels,omitempty"`
	Sealed string            `json:"sealed"`
}

type fileFormat struct {
	Version  int             `json:"version"`
	Salt     string          `json:"salt"`
	Verifier string          `json:"verifier"`
	Items    map[string]Item `json:"items"`
}

// Status describes the session.
type Status struct {
	Initialized bool       `json:"initialized"`
	Unlocked    bool       `json:"unlocked"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Vault is a file-backed secret store sealed with AES-256-GCM under a scrypt-derived key.
// The key lives in memory only while a session is open; the session closes after a period of inactivity.
type Vault struct {
	path    string
	timeout time.Duration
	logger  port.Logger
	now     func() time.Time

	mu           sync.Mutex
	file         fileFormat
	gcm          cipher.AEAD
	lastActivity time.Time
}

// Open loads the vault file at path, or starts an empty vault when the file does not exist yet.
func Open(path string, timeout time.Duration, logger port.Logger) (*Vault, error) {
	v := &Vault{
		path:    path,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		file:    fileFormat{Version: fileVersion, Items: make(map[string]Item)},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("Vault file not found, a new vault will be created on first unlock", "path", path)
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vault %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &v.file); err != nil {
		return nil, fmt.Errorf("failed to decode vault %s: %w", path, err)
	}
	if v.file.Version != fileVersion {
		return nil, fmt.Errorf("unsupported vault version %d in %s", v.file.Version, path)
	}
	if v.file.Items == nil {
		v.file.Items = make(map[string]Item)
	}
	logger.Info("Vault loaded", "path", path, "items", len(v.file.Items))
	return v, nil
}

// Unlock opens a session. The first unlock of a new vault sets its password.
func (v *Vault) Unlock(password string) error {
	if password == "" {
		return ErrWrongPassword
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.file.Salt == "" {
		return v.initialize(password)
	}

	salt, err := base64.StdEncoding.DecodeString(v.file.Salt)
	if err != nil {
		return fmt.Errorf("failed to decode vault salt: %w", err)
	}
	gcm, err := deriveAEAD(password, salt)
	if err != nil {
		return err
	}
	plain, err := open(gcm, v.file.Verifier)
	if err != nil || subtle.ConstantTimeCompare(plain, []byte(verifierPlaintext)) != 1 {
		v.logger.Warn("Vault unlock rejected")
		return ErrWrongPassword
	}

	v.gcm = gcm
	v.lastActivity = v.now()
	v.logger.Info("Vault unlocked", "session_timeout", v.timeout.String())
	return nil
}

func (v *Vault) initialize(password string) error {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate vault salt: %w", err)
	}
	gcm, err := deriveAEAD(password, salt)
	if err != nil {
		return err
	}
	verifier, err := seal(gcm, []byte(verifierPlaintext))
	if err != nil {
		return err
	}

	v.file.Salt = base64.StdEncoding.EncodeToString(salt)
	v.file.Verifier = verifier
	if err := v.persist(); err != nil {
		v.file.Salt, v.file.Verifier = "", ""
		return err
	}
	v.gcm = gcm
	v.lastActivity = v.now()
	v.logger.Info("Vault created", "path", v.path)
	return nil
}

// Lock closes the session and drops the key.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gcm != nil {
		v.logger.Info("Vault locked")
	}
	v.gcm = nil
}

// Status reports whether a session is open and when it will expire.
func (v *Vault) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := Status{Initialized: v.file.Salt != ""}
	if v.session() {
		st.Unlocked = true
		expires := v.lastActivity.Add(v.timeout)
		st.ExpiresAt = &expires
	}
	return st
}

// session reports whether a session is open, expiring it when idle for too long. Callers hold mu.
func (v *Vault) session() bool {
	if v.gcm == nil {
		return false
	}
	if v.timeout > 0 && v.now().Sub(v.lastActivity) >= v.timeout {
		v.gcm = nil
		v.logger.Info("Vault session expired")
		return false
	}
	return true
}

// touch extends the session. Callers hold mu and have checked session().
func (v *Vault) touch() {
	v.lastActivity = v.now()
}

// Put seals secret under id, replacing any previous item.
func (v *Vault) Put(id string, labels map[string]string, secret []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.session() {
		return entity.ErrLocked
	}
	v.touch()

	sealed, err := seal(v.gcm, secret)
	if err != nil {
		return err
	}
	previous, existed := v.file.Items[id]
	v.file.Items[id] = Item{Labels: labels, Sealed: sealed}
	if err := v.persist(); err != nil {
		if existed {
			v.file.Items[id] = previous
		} else {
			delete(v.file.Items, id)
		}
		return err
	}
	return nil
}

// Get opens the secret stored under id.
func (v *Vault) Get(id string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.session() {
		return nil, entity.ErrLocked
	}
	v.touch()

	item, ok := v.file.Items[id]
	if !ok {
		return nil, ErrNotFound
	}
	plain, err := open(v.gcm, item.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault item %s: %w", id, err)
	}
	return plain, nil
}

// Delete removes the item. It does not need an open session.
func (v *Vault) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	previous, ok := v.file.Items[id]
	if !ok {
		return ErrNotFound
	}
	delete(v.file.Items, id)
	if err := v.persist(); err != nil {
		v.file.Items[id] = previous
		return err
	}
	return nil
}

// Labels returns the plaintext metadata of every item whose id starts with prefix, sorted by id.
func (v *Vault) Labels(prefix string) ([]string, map[string]map[string]string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ids := make([]string, 0, len(v.file.Items))
	labels := make(map[string]map[string]string)
	for id, item := range v.file.Items {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		ids = append(ids, id)
		copied := make(map[string]string, len(item.Labels))
		for k, val := range item.Labels {
			copied[k] = val
		}
		labels[id] = copied
	}
	sort.Strings(ids)
	return ids, labels
}

// persist writes the file atomically. Callers hold mu.
func (v *Vault) persist() error {
	data, err := json.MarshalIndent(v.file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vault: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		return fmt.Errorf("failed to replace vault: %w", err)
	}
	return nil
}

func deriveAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// seal returns base64(nonce || ciphertext).
func seal(gcm cipher.AEAD, plain []byte) (string, error) {
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plain, nil)), nil
}

func open(gcm cipher.AEAD, sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("sealed value too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
