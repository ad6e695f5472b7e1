// Package auth implements operator-plane password, API-key, and
// session-cookie authentication plus the HTTP credential-resolution chain.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassword is returned by VerifyPassword on mismatch.
var ErrInvalidPassword = errors.New("auth: invalid password")

// HashPassword hashes a new password with bcrypt, the memory-hard default
// scheme. Legacy "v1$salt$sha256hex" records are only ever verified, never
// produced by this function.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks password against a stored hash of either the
// current bcrypt scheme or the legacy "v1$salt$sha256hex" tag. It reports
// whether the legacy record should be upgraded to bcrypt on this login.
func VerifyPassword(password, stored string) (upgrade bool, err error) {
	if strings.HasPrefix(stored, "v1$") {
		if verifyLegacy(password, stored) {
			return true, nil
		}
		return false, ErrInvalidPassword
	}

	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) != nil {
		return false, ErrInvalidPassword
	}
	return false, nil
}

func verifyLegacy(password, stored string) bool {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return false
	}
	salt, wantHex := parts[1], parts[2]

	sum := sha256.Sum256([]byte(salt + password))
	gotHex := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(gotHex), []byte(wantHex)) == 1
}
