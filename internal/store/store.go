// ABOUTME: Audit log interfaces shared by the SQLite and in-memory implementations
// ABOUTME: Consumers depend on AuditLog rather than a concrete store

package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("store closed")

// AuditLog is the append-only record of administrative actions.
type AuditLog interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
	Close() error
}

var (
	_ AuditLog = (*SQLiteStore)(nil)
	_ AuditLog = (*MemoryStore)(nil)
)
