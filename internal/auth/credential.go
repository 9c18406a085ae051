// ABOUTME: Admin credential document loading
// ABOUTME: Reads a TOML file holding either a plain admin password or a bcrypt hash

package auth

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Credential errors
var (
	ErrNoCredential        = errors.New("credential document has no admin secret")
	ErrAmbiguousCredential = errors.New("credential document sets both admin_password and admin_password_hash")
)

// Credential is the single shared admin secret. It is loaded once and never
// modified afterwards.
type Credential struct {
	// Password is a plain secret compared in constant time.
	Password string `toml:"admin_password"`
	// PasswordHash is a bcrypt hash, preferred over Password.
	PasswordHash string `toml:"admin_password_hash"`
}

// IsHashed reports whether the credential is stored as a bcrypt hash.
func (c Credential) IsHashed() bool {
	return c.PasswordHash != ""
}

// Validate checks that exactly one secret form is present.
func (c Credential) Validate() error {
	hasPlain := strings.TrimSpace(c.Password) != ""
	hasHash := strings.TrimSpace(c.PasswordHash) != ""
	switch {
	case hasPlain && hasHash:
		return ErrAmbiguousCredential
	case !hasPlain && !hasHash:
		return ErrNoCredential
	case hasHash && !strings.HasPrefix(c.PasswordHash, "$2"):
		return fmt.Errorf("admin_password_hash is not a bcrypt hash")
	}
	return nil
}

// LoadCredential reads the credential document at path.
//
//	admin_password = "${GUIDE_ADMIN_PASSWORD}"
//
// or
//
//	admin_password_hash = "$2a$10$..."
//
// ${VAR} references are expanded from the environment before parsing.
func LoadCredential(path string) (Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credential{}, fmt.Errorf("reading credential file: %w", err)
	}

	var c Credential
	md, err := toml.Decode(expandEnvVars(string(data)), &c)
	if err != nil {
		return Credential{}, fmt.Errorf("parsing credential file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Credential{}, fmt.Errorf("credential file has unknown keys: %v", undecoded)
	}

	// chat input is trimmed before it is compared, so the stored forms are too
	c.Password = strings.TrimSpace(c.Password)
	c.PasswordHash = strings.TrimSpace(c.PasswordHash)

	if err := c.Validate(); err != nil {
		return Credential{}, fmt.Errorf("validating credential file: %w", err)
	}
	return c, nil
}

// envVarPattern only matches the braced form so bcrypt hashes ($2a$...) pass through.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}
