// Package auth handles the shared management passphrase and session tokens.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassphrase hashes a passphrase using bcrypt with cost 12, for storing
// in the config file instead of plain text.
func HashPassphrase(passphrase string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), 12)
	if err != nil {
		return "", fmt.Errorf("hash passphrase: %w", err)
	}
	return string(hash), nil
}

// IsHash reports whether configured looks like a bcrypt hash.
func IsHash(configured string) bool {
	return strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") || strings.HasPrefix(configured, "$2y$")
}

// CheckPassphrase compares a submitted passphrase with the configured one,
// which may be plain text or a bcrypt hash. An empty configuration never
// matches.
func CheckPassphrase(submitted, configured string) bool {
	if configured == "" || submitted == "" {
		return false
	}
	if IsHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(submitted)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(configured)) == 1
}

// GenerateToken produces a cryptographically random session token
// (32 bytes, base64url-encoded, 43 characters).
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
