// ABOUTME: In-memory AuditLog implementation used when no database is configured
// ABOUTME: Keeps a bounded ring of recent entries and doubles as a test fake

package store

import (
	"context"
	"sort"
	"sync"
)

// DefaultMemoryCapacity bounds how many entries a MemoryStore retains.
const DefaultMemoryCapacity = 1000

// MemoryStore is an in-memory AuditLog. The oldest entries are discarded
// once capacity is reached.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []AuditEntry
	capacity int
	closed   bool

	// FailAppend, when set, is returned by AppendAuditLog.
	FailAppend error
}

// NewMemoryStore creates a MemoryStore. Non-positive capacity means
// DefaultMemoryCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// AppendAuditLog stores a copy of e.
func (m *MemoryStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.FailAppend != nil {
		return m.FailAppend
	}
	if err := prepareAuditEntry(e); err != nil {
		return err
	}

	m.entries = append(m.entries, *e)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append([]AuditEntry(nil), m.entries[over:]...)
	}
	return nil
}

// ListAuditLog returns matching entries newest first.
func (m *MemoryStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	// walk backwards so equal timestamps keep insertion order reversed
	result := []AuditEntry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		if f.Actor != nil && e.Actor != *f.Actor {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.Target != nil && e.Target != *f.Target {
			continue
		}
		result = append(result, e)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit := normalizeAuditLimit(f.Limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
