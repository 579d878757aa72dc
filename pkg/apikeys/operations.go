package apikeys

import (
	"crypto/rand"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"

	"pository/pkg/log"
	"pository/pkg/models"
)

// CreateKey mints a new API key with the given role, optional scope, and
// description. It returns the stored record and the plaintext secret,
// which is never persisted and never retrievable again after this call.
func (s *Store) CreateKey(role models.Role, scope *models.KeyScope, description string) (*models.ApiKey, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, err := randomSecret()
	if err != nil {
		return nil, "", err
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, "", err
	}

	key := models.ApiKey{
		ID:          uuid.NewString(),
		SecretHash:  hashSecret(secret, salt),
		Role:        role,
		Scope:       scope,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	s.keys = append(s.keys, key)
	if err := s.save(); err != nil {
		return nil, "", err
	}

	log.Info().Str("keyId", key.ID).Str("role", string(role)).Msg("API key created")
	return &key, secret, nil
}

// ValidateKey checks presented against the configured admin secret first
// (if any), synthesizing an unpersisted id="admin" identity on a match,
// then against every stored key's hash (there is no indexable prefix in
// the model, so this is a linear scan; key counts are expected to stay
// small) and returns the first match. On a stored-key match it also
// updates LastUsed and persists it, best-effort.
func (s *Store) ValidateKey(presented string) (*models.ApiKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adminSecret != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(s.adminSecret)) == 1 {
		return &models.ApiKey{ID: "admin", Role: models.RoleAdmin, Description: "configured admin secret"}, nil
	}

	for i := range s.keys {
		if verifySecret(presented, s.keys[i].SecretHash) {
			s.keys[i].LastUsed = time.Now().UTC()
			if err := s.save(); err != nil {
				log.Warn().Err(err).Msg("Failed to persist key last-used timestamp")
			}
			found := s.keys[i]
			return &found, nil
		}
	}
	return nil, ErrInvalidSecret
}

// DeleteKey removes the key with the given ID.
func (s *Store) DeleteKey(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, key := range s.keys {
		if key.ID == id {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			if err := s.save(); err != nil {
				return err
			}
			log.Info().Str("keyId", id).Msg("API key deleted")
			return nil
		}
	}
	return ErrKeyNotFound
}

// ListKeys returns every key's public (hash-free) representation.
func (s *Store) ListKeys() []models.ApiKeyPublic {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ApiKeyPublic, 0, len(s.keys))
	for _, key := range s.keys {
		out = append(out, key.Public())
	}
	return out
}

// HasPermission reports whether key may perform an operation requiring
// role on the given repo/distribution. A zero-value repo/distribution
// means "no specific repo/distribution in scope" (e.g. listing keys).
func HasPermission(key *models.ApiKey, required models.Role, repo, distribution string) bool {
	if key == nil {
		return false
	}
	if !key.Role.Satisfies(required) {
		return false
	}
	if repo != "" && !key.AllowsRepo(repo) {
		return false
	}
	if distribution != "" && !key.AllowsDistribution(distribution) {
		return false
	}
	return true
}
