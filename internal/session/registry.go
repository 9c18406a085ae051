// ABOUTME: In-memory registry of sessions keyed by chat user id
// ABOUTME: Serializes events per user and evicts idle sessions on a ticker

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is a user's slot in the registry. Acquire returns it locked; the
// holder may read and replace Session until it calls Release.
type Entry struct {
	mu      sync.Mutex
	Session Session
	evicted bool
}

// Release unlocks the entry.
func (e *Entry) Release() {
	e.mu.Unlock()
}

// Registry maps user ids to sessions.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	policy  Policy
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. New sessions use policy's TTL.
func NewRegistry(policy Policy, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		policy:  policy.withDefaults(),
		logger:  logger.With("component", "registry"),
	}
}

// Acquire returns the locked entry for userID, creating a fresh session if
// none exists. It blocks while another event for the same user is in flight.
func (r *Registry) Acquire(userID string, now time.Time) *Entry {
	for {
		r.mu.Lock()
		e, ok := r.entries[userID]
		if !ok {
			e = &Entry{Session: New(userID, now, r.policy)}
			r.entries[userID] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if !e.evicted {
			return e
		}
		// swept between lookup and lock; look again
		e.mu.Unlock()
	}
}

// Get returns a copy of the user's session, if one exists.
func (r *Registry) Get(userID string) (Session, bool) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return Session{}, false
	}
	return e.Session, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts expired sessions that are not currently held and returns
// how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.Session.Expired(now) {
			e.evicted = true
			delete(r.entries, id)
			removed++
		}
		e.mu.Unlock()
	}
	if removed > 0 {
		r.logger.Debug("evicted idle sessions", "count", removed, "remaining", len(r.entries))
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			r.Sweep(now)
		case <-ctx.Done():
			return nil
		}
	}
}
