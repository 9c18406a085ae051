// ABOUTME: Shared test helpers for the store package
// ABOUTME: Opens throwaway SQLite databases and runs checks against every AuditLog

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "audit.db")

	store, err := NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// eachAuditLog runs fn against the SQLite and in-memory implementations.
func eachAuditLog(t *testing.T, fn func(t *testing.T, log AuditLog)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, setupTestStore(t))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(0))
	})
}
