// ABOUTME: Admin secret verification with constant-time comparison
// ABOUTME: Supports plain secrets (SHA-256 + subtle compare) and bcrypt hashes

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Verifier checks a candidate admin secret.
type Verifier interface {
	Verify(secret string) bool
}

// Authenticator verifies candidate secrets against the configured credential.
// It holds no per-session state: elevation lives on the caller's session.
type Authenticator struct {
	hash   []byte   // bcrypt hash, when configured
	digest [32]byte // sha256 of the plain secret otherwise
}

// NewAuthenticator creates an Authenticator for c.
func NewAuthenticator(c Credential) (*Authenticator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.IsHashed() {
		return &Authenticator{hash: []byte(c.PasswordHash)}, nil
	}
	return &Authenticator{digest: sha256.Sum256([]byte(strings.TrimSpace(c.Password)))}, nil
}

// Verify reports whether secret matches. Comparison time does not depend on
// how much of the secret matched, nor on its length.
func (a *Authenticator) Verify(secret string) bool {
	if a.hash != nil {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(secret)) == nil
	}
	candidate := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(candidate[:], a.digest[:]) == 1
}

// HashPassword returns a bcrypt hash suitable for admin_password_hash.
// Surrounding whitespace is dropped to match how chat input is compared.
func HashPassword(password string) (string, error) {
	password = strings.TrimSpace(password)
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
