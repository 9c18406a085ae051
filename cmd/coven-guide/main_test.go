// ABOUTME: Tests for the coven-guide setup commands and logger
// ABOUTME: Runs init against scripted answers and loads what it wrote

package main

import (
	"bufio"
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-guide/internal/auth"
	"github.com/2389/coven-guide/internal/config"
	"github.com/2389/coven-guide/internal/content"
	"github.com/2389/coven-guide/internal/dedupe"
	"github.com/2389/coven-guide/internal/session"
)

func TestInitFiles_WritesLoadableFiles(t *testing.T) {
	dir := t.TempDir()
	answers := strings.Join([]string{
		"",         // config file name
		"",         // content file
		"Support",  // welcome title
		"",         // welcome text
		"",         // credential file
		"s3cret",   // admin password
		":memory:", // audit
		"",         // transport
		"debug",    // log level
		"",         // log format
	}, "\n") + "\n"

	var out bytes.Buffer
	err := initFiles(bufio.NewReader(strings.NewReader(answers)), &out, dir)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Config written to")

	cfg, err := config.Load(filepath.Join(dir, "guide.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.TransportConsole, cfg.Transport.Kind)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":memory:", cfg.Audit.Path)
	assert.Equal(t, filepath.Join(dir, "content.json"), cfg.Content.Path)

	tree, err := content.Open(cfg.Content.Path, slog.Default())
	require.NoError(t, err)
	root, err := tree.Get(content.RootID)
	require.NoError(t, err)
	assert.Equal(t, "Support", root.Title)
	assert.Equal(t, "Pick a topic below.", root.Body)

	cred, err := auth.LoadCredential(cfg.Credential.Path)
	require.NoError(t, err)
	assert.True(t, cred.IsHashed())
	authn, err := auth.NewAuthenticator(cred)
	require.NoError(t, err)
	assert.True(t, authn.Verify("s3cret"))
	assert.False(t, authn.Verify("wrong"))
}

func TestInitFiles_RequiresPassword(t *testing.T) {
	answers := strings.Repeat("\n", 5)
	var out bytes.Buffer
	err := initFiles(bufio.NewReader(strings.NewReader(answers)), &out, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin password")
}

func TestPrompt(t *testing.T) {
	var out bytes.Buffer
	reader := bufio.NewReader(strings.NewReader("  value  \n\n"))

	assert.Equal(t, "value", prompt(reader, &out, "First", "dflt"))
	assert.Equal(t, "dflt", prompt(reader, &out, "Second", "dflt"))
	// EOF falls back to the default
	assert.Equal(t, "dflt", prompt(reader, &out, "Third", "dflt"))
	assert.Contains(t, out.String(), "First [dflt]: ")
}

func TestSetupLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
		logger.Info("hidden")
		logger.Warn("shown", "component", "test")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"component":"test"`)
	})

	t.Run("text keeps groups and attrs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(config.LoggingConfig{Level: "debug"}, &buf)
		logger.With("component", "router").WithGroup("event").Debug("dispatch", "id", "e1")
		line := buf.String()
		assert.Contains(t, line, "dispatch")
		assert.Contains(t, line, "component=")
		assert.Contains(t, line, "router")
		assert.Contains(t, line, "event.id=")
	})
}

func TestLogStopped_ReportsStats(t *testing.T) {
	cache := dedupe.New(time.Minute, 10)
	cache.Duplicate("e1")
	cache.Duplicate("e1")
	registry := session.NewRegistry(session.DefaultPolicy(), nil)
	registry.Acquire("alice", time.Now()).Release()

	var buf bytes.Buffer
	logStopped(setupLogger(config.LoggingConfig{Format: "json"}, &buf), cache, registry)

	assert.Contains(t, buf.String(), `"msg":"coven-guide stopped"`)
	assert.Contains(t, buf.String(), `"duplicates_dropped":1`)
	assert.Contains(t, buf.String(), `"sessions":1`)
}
