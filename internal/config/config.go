// ABOUTME: Configuration loading and parsing for coven-guide
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportConsole = "console"
	TransportMatrix  = "matrix"
)

// Config represents the complete coven-guide configuration
type Config struct {
	Content    ContentConfig    `yaml:"content"`
	Credential CredentialConfig `yaml:"credential"`
	Audit      AuditConfig      `yaml:"audit"`
	Transport  TransportConfig  `yaml:"transport"`
	Policy     PolicyConfig     `yaml:"policy"`
	Dedupe     DedupeConfig     `yaml:"dedupe"`
	Router     RouterConfig     `yaml:"router"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ContentConfig locates the topic tree document
type ContentConfig struct {
	Path string `yaml:"path"`
}

// CredentialConfig locates the admin credential document
type CredentialConfig struct {
	Path string `yaml:"path"`
}

// AuditConfig holds the audit log database location. An empty path keeps
// the log in memory.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// TransportConfig selects the chat transport
type TransportConfig struct {
	Kind   string       `yaml:"kind"`
	Matrix MatrixConfig `yaml:"matrix"`
}

// MatrixConfig holds Matrix integration configuration
type MatrixConfig struct {
	Homeserver   string   `yaml:"homeserver"`
	UserID       string   `yaml:"user_id"`
	AccessToken  string   `yaml:"access_token"`
	AllowedUsers []string `yaml:"allowed_users"`
}

// PolicyConfig holds login and session timing
type PolicyConfig struct {
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LockoutDuration  time.Duration `yaml:"-"`
	AdminIdleTimeout time.Duration `yaml:"-"`
	SessionTTL       time.Duration `yaml:"-"`
	SweepInterval    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	LockoutDurationRaw  string `yaml:"lockout_duration"`
	AdminIdleTimeoutRaw string `yaml:"admin_idle_timeout"`
	SessionTTLRaw       string `yaml:"session_ttl"`
	SweepIntervalRaw    string `yaml:"sweep_interval"`
}

// DedupeConfig bounds the inbound event id cache
type DedupeConfig struct {
	TTL     time.Duration `yaml:"-"`
	TTLRaw  string        `yaml:"ttl"`
	MaxSize int           `yaml:"max_size"`
}

// RouterConfig holds event dispatch limits
type RouterConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Relative resource paths are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()
	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Content.Path == "" {
		c.Content.Path = "content.json"
	}
	if c.Credential.Path == "" {
		c.Credential.Path = "credential.toml"
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportConsole
	}
	if c.Policy.SweepInterval == 0 {
		c.Policy.SweepInterval = time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Content.Path, &c.Credential.Path, &c.Audit.Path} {
		if *p != "" && *p != ":memory:" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Content.Path == "" {
		return fmt.Errorf("content.path is required")
	}
	if c.Credential.Path == "" {
		return fmt.Errorf("credential.path is required")
	}

	switch c.Transport.Kind {
	case TransportConsole:
	case TransportMatrix:
		m := c.Transport.Matrix
		if m.Homeserver == "" {
			return fmt.Errorf("transport.matrix.homeserver is required for the matrix transport")
		}
		if m.UserID == "" {
			return fmt.Errorf("transport.matrix.user_id is required for the matrix transport")
		}
		if m.AccessToken == "" {
			return fmt.Errorf("transport.matrix.access_token is required for the matrix transport")
		}
	default:
		return fmt.Errorf("transport.kind %q is not one of %s, %s", c.Transport.Kind, TransportConsole, TransportMatrix)
	}

	if c.Policy.MaxLoginAttempts < 0 {
		return fmt.Errorf("policy.max_login_attempts must not be negative")
	}
	if c.Router.Workers < 0 {
		return fmt.Errorf("router.workers must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"policy.lockout_duration", cfg.Policy.LockoutDurationRaw, &cfg.Policy.LockoutDuration},
		{"policy.admin_idle_timeout", cfg.Policy.AdminIdleTimeoutRaw, &cfg.Policy.AdminIdleTimeout},
		{"policy.session_ttl", cfg.Policy.SessionTTLRaw, &cfg.Policy.SessionTTL},
		{"policy.sweep_interval", cfg.Policy.SweepIntervalRaw, &cfg.Policy.SweepInterval},
		{"dedupe.ttl", cfg.Dedupe.TTLRaw, &cfg.Dedupe.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
