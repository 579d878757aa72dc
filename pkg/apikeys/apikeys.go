// Package apikeys is the API key store (C4): a JSON file of issued keys,
// hashed with Argon2id, with role- and scope-based permission checks.
package apikeys

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"

	"pository/pkg/models"
)

// Argon2id parameters. These are intentionally fixed rather than
// configurable: the key store has exactly one caller and no need to tune
// the cost/memory tradeoff per deployment.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

var (
	// ErrKeyNotFound is returned when an operation references an API key
	// ID that doesn't exist.
	ErrKeyNotFound = errors.New("api key not found")
	// ErrInvalidSecret is returned by ValidateKey when no key's hash
	// matches the presented secret.
	ErrInvalidSecret = errors.New("invalid api key secret")
)

const filePerm = 0o600
const dirPerm = 0o750

// Store is the API key store: an in-memory cache of models.ApiKey backed by
// a single JSON file, guarded by one mutex. The spec calls for a single
// key-store mutex rather than per-key locking, since key operations are
// infrequent compared to package traffic.
type Store struct {
	path        string
	mu          sync.Mutex
	keys        []models.ApiKey
	adminSecret string
}

// SetAdminSecret configures the bootstrap admin secret ValidateKey compares
// presented keys against directly, ahead of the stored-key hash scan.
// Passing the zero value disables this path.
func (s *Store) SetAdminSecret(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminSecret = secret
}

// Load reads path (creating an empty key file if it doesn't exist yet) and
// returns a ready-to-use Store.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.keys = nil
		return nil
	}
	if err != nil {
		return err
	}
	var file models.KeyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.keys = file.Keys
	return nil
}

// save must be called with mu held.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	data, err := json.MarshalIndent(models.KeyFile{Keys: s.keys}, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "keys-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// hashSecret derives an Argon2id hash for secret, encoding it with its salt
// and parameters so ValidateKey can re-derive and compare without needing
// the parameters passed back in separately.
func hashSecret(secret string, salt []byte) string {
	hash := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		argonTime, argonMemory, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func verifySecret(secret, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	var t, m, p uint32
	if _, err := fmt.Sscanf(parts[1], "%d", &t); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(parts[2], "%d", &m); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(parts[3], "%d", &p); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, t, m, uint8(p), uint32(len(want))) //nolint:gosec // p bounded by argonThreads
	return subtle.ConstantTimeCompare(got, want) == 1
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

