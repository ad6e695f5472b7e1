package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/microclaw/microclaw/internal/models"
)

// ErrAPIKeyInvalid covers unknown, expired, and revoked keys alike so
// callers can't distinguish "wrong secret" from "right prefix, wrong
// secret" by error type.
var ErrAPIKeyInvalid = errors.New("auth: invalid api key")

// APIKeyStore issues and verifies scoped API keys, storing only the SHA-256
// hash of each secret.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*models.ApiKey // keyed by Prefix
}

// NewAPIKeyStore returns an empty store.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{keys: make(map[string]*models.ApiKey)}
}

// Issue creates a new key with the given scopes and optional expiry,
// returning the full secret exactly once — only its hash is retained.
func (s *APIKeyStore) Issue(name string, scopes []string, ttl time.Duration) (secret string, key models.ApiKey, err error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", models.ApiKey{}, fmt.Errorf("auth: generate key: %w", err)
	}
	secret = "mc_" + hex.EncodeToString(raw)
	prefix := secret[:11]

	sum := sha256.Sum256([]byte(secret))
	key = models.ApiKey{
		ID:         uuid.NewString(),
		Name:       name,
		Prefix:     prefix,
		SecretHash: hex.EncodeToString(sum[:]),
		Scopes:     scopes,
		CreatedAt:  time.Now(),
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		key.ExpiresAt = &expires
	}

	s.mu.Lock()
	s.keys[prefix] = &key
	s.mu.Unlock()

	return secret, key, nil
}

// Verify looks up the key by prefix, then does a constant-time comparison
// of the full secret's hash before accepting it.
func (s *APIKeyStore) Verify(secret string) (*models.ApiKey, error) {
	if len(secret) < 11 {
		return nil, ErrAPIKeyInvalid
	}
	prefix := secret[:11]

	s.mu.RLock()
	key, ok := s.keys[prefix]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrAPIKeyInvalid
	}
	if key.RevokedAt != nil {
		return nil, ErrAPIKeyInvalid
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrAPIKeyInvalid
	}

	sum := sha256.Sum256([]byte(secret))
	got := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(got), []byte(key.SecretHash)) != 1 {
		return nil, ErrAPIKeyInvalid
	}

	now := time.Now()
	s.mu.Lock()
	key.LastUsedAt = &now
	s.mu.Unlock()

	return key, nil
}

// Revoke marks a key (by prefix) as revoked.
func (s *APIKeyStore) Revoke(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[prefix]
	if !ok {
		return fmt.Errorf("auth: key %q not found", prefix)
	}
	now := time.Now()
	key.RevokedAt = &now
	return nil
}

// HasScope reports whether key carries scope, or the "*" wildcard scope.
func HasScope(key *models.ApiKey, scope string) bool {
	for _, s := range key.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}
