// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "guide.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
content:
  path: "/srv/guide/content.yaml"
credential:
  path: "/srv/guide/credential.toml"
audit:
  path: "/srv/guide/audit.db"

transport:
  kind: matrix
  matrix:
    homeserver: "https://matrix.example.org"
    user_id: "@guide:example.org"
    access_token: "syt_token"
    allowed_users:
      - "@alice:example.org"

policy:
  max_login_attempts: 5
  lockout_duration: "10m"
  admin_idle_timeout: "30m"
  session_ttl: "12h"
  sweep_interval: "30s"

dedupe:
  ttl: "5m"
  max_size: 500

router:
  workers: 8

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Content.Path != "/srv/guide/content.yaml" {
		t.Errorf("Content.Path = %q", cfg.Content.Path)
	}
	if cfg.Audit.Path != "/srv/guide/audit.db" {
		t.Errorf("Audit.Path = %q", cfg.Audit.Path)
	}
	if cfg.Transport.Kind != TransportMatrix {
		t.Errorf("Transport.Kind = %q, want %q", cfg.Transport.Kind, TransportMatrix)
	}
	if cfg.Transport.Matrix.UserID != "@guide:example.org" {
		t.Errorf("Matrix.UserID = %q", cfg.Transport.Matrix.UserID)
	}
	if len(cfg.Transport.Matrix.AllowedUsers) != 1 {
		t.Errorf("Matrix.AllowedUsers = %v", cfg.Transport.Matrix.AllowedUsers)
	}
	if cfg.Policy.MaxLoginAttempts != 5 {
		t.Errorf("Policy.MaxLoginAttempts = %d, want 5", cfg.Policy.MaxLoginAttempts)
	}
	if cfg.Policy.LockoutDuration != 10*time.Minute {
		t.Errorf("Policy.LockoutDuration = %v, want 10m", cfg.Policy.LockoutDuration)
	}
	if cfg.Policy.AdminIdleTimeout != 30*time.Minute {
		t.Errorf("Policy.AdminIdleTimeout = %v, want 30m", cfg.Policy.AdminIdleTimeout)
	}
	if cfg.Policy.SessionTTL != 12*time.Hour {
		t.Errorf("Policy.SessionTTL = %v, want 12h", cfg.Policy.SessionTTL)
	}
	if cfg.Policy.SweepInterval != 30*time.Second {
		t.Errorf("Policy.SweepInterval = %v, want 30s", cfg.Policy.SweepInterval)
	}
	if cfg.Dedupe.TTL != 5*time.Minute || cfg.Dedupe.MaxSize != 500 {
		t.Errorf("Dedupe = %+v", cfg.Dedupe)
	}
	if cfg.Router.Workers != 8 {
		t.Errorf("Router.Workers = %d, want 8", cfg.Router.Workers)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "logging:\n  level: warn\n")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	dir := filepath.Dir(configPath)
	if cfg.Content.Path != filepath.Join(dir, "content.json") {
		t.Errorf("Content.Path = %q, want next to the config file", cfg.Content.Path)
	}
	if cfg.Credential.Path != filepath.Join(dir, "credential.toml") {
		t.Errorf("Credential.Path = %q", cfg.Credential.Path)
	}
	if cfg.Audit.Path != "" {
		t.Errorf("Audit.Path = %q, want empty", cfg.Audit.Path)
	}
	if cfg.Transport.Kind != TransportConsole {
		t.Errorf("Transport.Kind = %q, want console", cfg.Transport.Kind)
	}
	if cfg.Policy.SweepInterval != time.Minute {
		t.Errorf("Policy.SweepInterval = %v, want 1m", cfg.Policy.SweepInterval)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", cfg.Logging.Format)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Content.Path != "content.json" {
		t.Errorf("Content.Path = %q", cfg.Content.Path)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_MATRIX_TOKEN", "secret-token")
	t.Setenv("TEST_GUIDE_DIR", "/var/lib/guide")

	configPath := writeConfig(t, `
content:
  path: "${TEST_GUIDE_DIR}/content.json"
transport:
  kind: matrix
  matrix:
    homeserver: "https://matrix.example.org"
    user_id: "@guide:example.org"
    access_token: "${TEST_MATRIX_TOKEN}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport.Matrix.AccessToken != "secret-token" {
		t.Errorf("AccessToken = %q, want %q", cfg.Transport.Matrix.AccessToken, "secret-token")
	}
	if cfg.Content.Path != "/var/lib/guide/content.json" {
		t.Errorf("Content.Path = %q", cfg.Content.Path)
	}
}

func TestLoad_MemoryAuditPathIsKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "audit:\n  path: \":memory:\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Audit.Path != ":memory:" {
		t.Errorf("Audit.Path = %q, want :memory:", cfg.Audit.Path)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad yaml",
			content: "content: [unterminated",
			wantErr: "parsing config file",
		},
		{
			name:    "bad duration",
			content: "policy:\n  lockout_duration: soon\n",
			wantErr: "policy.lockout_duration",
		},
		{
			name:    "negative duration",
			content: "dedupe:\n  ttl: -5m\n",
			wantErr: "must be positive",
		},
		{
			name:    "unknown transport",
			content: "transport:\n  kind: telegram\n",
			wantErr: "transport.kind",
		},
		{
			name:    "matrix without token",
			content: "transport:\n  kind: matrix\n  matrix:\n    homeserver: https://m.example.org\n    user_id: \"@g:example.org\"\n",
			wantErr: "access_token",
		},
		{
			name:    "bad log format",
			content: "logging:\n  format: xml\n",
			wantErr: "logging.format",
		},
		{
			name:    "negative workers",
			content: "router:\n  workers: -1\n",
			wantErr: "router.workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_EXPAND", "value")

	tests := []struct {
		in   string
		want string
	}{
		{"${TEST_EXPAND}", "value"},
		{"prefix-${TEST_EXPAND}-suffix", "prefix-value-suffix"},
		{"${TEST_UNSET_VARIABLE_XYZ}", ""},
		{"$TEST_EXPAND", "$TEST_EXPAND"},
		{"no vars here", "no vars here"},
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
