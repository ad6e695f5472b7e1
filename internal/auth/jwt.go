package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrJWTInvalid covers malformed, expired, and wrong-signature tokens alike.
var ErrJWTInvalid = errors.New("auth: invalid service token")

// JWTIssuer signs and verifies the short-lived service tokens used by
// automation callers (microclawctl, CI) that can't hold a browser session
// cookie or a long-lived API key, using HS256 with a sub/scopes/exp claim
// set.
type JWTIssuer struct {
	secret []byte
}

// NewJWTIssuer returns an issuer keyed by secret. A nil/empty secret makes
// every Issue/Verify call fail rather than silently signing with an empty
// key.
func NewJWTIssuer(secret string) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret)}
}

// Issue mints a token for subject carrying scopes, expiring after ttl.
func (j *JWTIssuer) Issue(subject string, scopes []string, ttl time.Duration) (string, error) {
	if len(j.secret) == 0 {
		return "", errors.New("auth: jwt issuer has no secret configured")
	}
	claims := jwt.MapClaims{
		"sub":    subject,
		"scopes": scopes,
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// Verify validates signature and expiry and returns the encoded identity.
func (j *JWTIssuer) Verify(raw string) (subject string, scopes []string, err error) {
	if len(j.secret) == 0 {
		return "", nil, ErrJWTInvalid
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrJWTInvalid
		}
		return j.secret, nil
	})
	if err != nil || !token.Valid {
		return "", nil, ErrJWTInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", nil, ErrJWTInvalid
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", nil, ErrJWTInvalid
	}

	if raw, ok := claims["scopes"].([]any); ok {
		for _, s := range raw {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
	}

	return sub, scopes, nil
}
