package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/microclaw/microclaw/internal/models"
)

// ErrSessionInvalid covers unknown, expired sessions and CSRF mismatches.
var ErrSessionInvalid = errors.New("auth: invalid session")

// SessionStore issues and validates operator-plane login sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.AuthSession
	ttl      time.Duration
}

// NewSessionStore returns an empty store with the given session lifetime.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{sessions: make(map[string]*models.AuthSession), ttl: ttl}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create issues a new session and its bound CSRF token for username.
func (s *SessionStore) Create(username string) (id string, csrfToken string, err error) {
	id, err = randomToken()
	if err != nil {
		return "", "", err
	}
	csrfToken, err = randomToken()
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	sess := &models.AuthSession{
		ID:        id,
		Username:  username,
		CSRFToken: csrfToken,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		LastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return id, csrfToken, nil
}

// Validate returns the session for id if it exists and has not expired,
// bumping LastSeen.
func (s *SessionStore) Validate(id string) (*models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, ErrSessionInvalid
	}
	sess.LastSeen = time.Now()
	return sess, nil
}

// CheckCSRF compares a request's CSRF header against the session's bound
// token in constant time.
func (s *SessionStore) CheckCSRF(sess *models.AuthSession, headerToken string) bool {
	return subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(headerToken)) == 1
}

// Revoke deletes a session; the logout handler calls it.
func (s *SessionStore) Revoke(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
