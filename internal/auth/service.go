package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/microclaw/microclaw/internal/models"
)

// ErrNoSuchUser is returned when a login is attempted for an unknown
// username.
var ErrNoSuchUser = errors.New("auth: no such user")

// Service aggregates the operator plane's password, API-key, and session
// stores behind the credential-resolution order used by the HTTP
// middleware: bootstrap token, then legacy static token, then service JWT
// (when an issuer is set), then API key, then session cookie + CSRF.
type Service struct {
	mu                 sync.RWMutex
	passwords          map[string]*models.AuthPassword // by username
	sessions           *SessionStore
	apiKeys            *APIKeyStore
	bootstrapToken     string
	legacyStaticTokens map[string]bool
	jwtIssuer          *JWTIssuer
}

// NewService wires a Service from config-derived static tokens and a
// session TTL.
func NewService(bootstrapToken string, legacyTokens []string, sessionTTL time.Duration) *Service {
	legacy := make(map[string]bool, len(legacyTokens))
	for _, t := range legacyTokens {
		legacy[t] = true
	}
	return &Service{
		passwords:          make(map[string]*models.AuthPassword),
		sessions:           NewSessionStore(sessionTTL),
		apiKeys:            NewAPIKeyStore(),
		bootstrapToken:     bootstrapToken,
		legacyStaticTokens: legacy,
	}
}

// SetPassword creates or replaces a user's password record.
func (s *Service) SetPassword(username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[username] = &models.AuthPassword{
		ID:        uuid.NewString(),
		Username:  username,
		PasswordHash: hash,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return nil
}

// Login verifies a username/password pair, upgrading a legacy hash in place
// on success, and returns a new session id + CSRF token.
func (s *Service) Login(username, password string) (sessionID, csrfToken string, err error) {
	s.mu.Lock()
	record, ok := s.passwords[username]
	s.mu.Unlock()
	if !ok {
		return "", "", ErrNoSuchUser
	}

	upgrade, err := VerifyPassword(password, record.PasswordHash)
	if err != nil {
		return "", "", err
	}
	if upgrade {
		if newHash, hashErr := HashPassword(password); hashErr == nil {
			s.mu.Lock()
			record.PasswordHash = newHash
			record.UpdatedAt = time.Now()
			s.mu.Unlock()
		}
	}

	return s.sessions.Create(username)
}

// IssueAPIKey delegates to the underlying APIKeyStore.
func (s *Service) IssueAPIKey(name string, scopes []string, ttl time.Duration) (string, models.ApiKey, error) {
	return s.apiKeys.Issue(name, scopes, ttl)
}

// Identity is the resolved caller for one request, regardless of which
// credential type matched.
type Identity struct {
	Subject string // username, or "bootstrap", or a key's Prefix
	Scopes  []string
	Method  string // bootstrap | legacy_token | service_jwt | api_key | session
}

// Resolve implements the §4.8 credential-resolution order: bootstrap token,
// then legacy static tokens, then service JWT (when an issuer is set), then
// API key, then session cookie + CSRF. It
// never itself reads the request — callers pass in whichever of these were
// present so middleware stays the single place that knows about headers and
// cookies.
func (s *Service) Resolve(bearer, apiKey, sessionCookie, csrfHeader string) (*Identity, error) {
	if s.bootstrapToken != "" && bearer == s.bootstrapToken {
		return &Identity{Subject: "bootstrap", Scopes: []string{"*"}, Method: "bootstrap"}, nil
	}

	if bearer != "" && s.legacyStaticTokens[bearer] {
		return &Identity{Subject: "legacy", Scopes: []string{"*"}, Method: "legacy_token"}, nil
	}

	if bearer != "" && s.jwtIssuer != nil {
		if subject, scopes, err := s.jwtIssuer.Verify(bearer); err == nil {
			return &Identity{Subject: subject, Scopes: scopes, Method: "service_jwt"}, nil
		}
	}

	if apiKey != "" {
		key, err := s.apiKeys.Verify(apiKey)
		if err == nil {
			return &Identity{Subject: key.Prefix, Scopes: key.Scopes, Method: "api_key"}, nil
		}
	}

	if sessionCookie != "" {
		sess, err := s.sessions.Validate(sessionCookie)
		if err == nil && s.sessions.CheckCSRF(sess, csrfHeader) {
			return &Identity{Subject: sess.Username, Scopes: []string{"*"}, Method: "session"}, nil
		}
	}

	return nil, errors.New("auth: unauthenticated")
}

// Sessions exposes the underlying session store for handlers that need to
// create/revoke sessions directly (login/logout endpoints).
func (s *Service) Sessions() *SessionStore { return s.sessions }

// SetJWTIssuer enables the service-token credential path. Left unset, a
// bearer token is only ever checked against the bootstrap/legacy tokens.
func (s *Service) SetJWTIssuer(issuer *JWTIssuer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jwtIssuer = issuer
}

// IssueServiceToken mints a JWT-backed identity for automation callers,
// returning an error if no issuer has been configured.
func (s *Service) IssueServiceToken(subject string, scopes []string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	issuer := s.jwtIssuer
	s.mu.RUnlock()
	if issuer == nil {
		return "", errors.New("auth: no jwt issuer configured")
	}
	return issuer.Issue(subject, scopes, ttl)
}
