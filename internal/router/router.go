// ABOUTME: Routes inbound chat events through dedupe, the session registry and the manager
// ABOUTME: Writes audit entries and sends the reply back through the transport

package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-guide/internal/chat"
	"github.com/2389/coven-guide/internal/session"
	"github.com/2389/coven-guide/internal/store"
)

// ErrNoUser is returned for events without a user id.
var ErrNoUser = errors.New("inbound event has no user id")

// Sender delivers a reply to a user.
type Sender interface {
	Send(ctx context.Context, userID string, r chat.Reply) error
}

// Transport is a chat protocol adapter.
type Transport interface {
	Sender
	// Receive blocks until the next event arrives. io.EOF means the
	// transport has no more input.
	Receive(ctx context.Context) (chat.Inbound, error)
}

// Deduper reports whether an event id was already handled.
type Deduper interface {
	Duplicate(id string) bool
}

// AuditWriter records audit entries.
type AuditWriter interface {
	AppendAuditLog(ctx context.Context, e *store.AuditEntry) error
}

const (
	// DefaultWorkers bounds how many users are served concurrently.
	DefaultWorkers = 16
	userQueueSize  = 16
	workerIdle     = time.Minute
)

// Config wires a Router.
type Config struct {
	Manager  *session.Manager
	Registry *session.Registry
	Dedupe   Deduper     // optional
	Audit    AuditWriter // optional
	Workers  int
	Logger   *slog.Logger
}

// Router applies inbound events to sessions.
type Router struct {
	manager  *session.Manager
	registry *session.Registry
	dedupe   Deduper
	audit    AuditWriter
	workers  int
	logger   *slog.Logger

	now func() time.Time
}

// New creates a Router.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Router{
		manager:  cfg.Manager,
		registry: cfg.Registry,
		dedupe:   cfg.Dedupe,
		audit:    cfg.Audit,
		workers:  workers,
		logger:   logger.With("component", "router"),
		now:      time.Now,
	}
}

// Handle processes one event and sends the reply through out. The user's
// session stays locked until the reply is sent, so replies to one user keep
// the order of the events that caused them.
func (r *Router) Handle(ctx context.Context, in chat.Inbound, out Sender) error {
	if in.UserID == "" {
		return ErrNoUser
	}
	if r.dedupe != nil && r.dedupe.Duplicate(in.ID) {
		r.logger.Debug("dropping duplicate event", "id", in.ID, "user", in.UserID)
		return nil
	}

	now := r.now()
	entry := r.registry.Acquire(in.UserID, now)
	defer entry.Release()

	ev := session.ParseEvent(in.Text)
	res := r.manager.Handle(ctx, entry.Session, ev, now)
	if entry.Session.State != res.Session.State {
		r.logger.Debug("session transition",
			"user", in.UserID,
			"from", entry.Session.State,
			"to", res.Session.State,
			"event", ev.Kind,
		)
	}
	entry.Session = res.Session

	r.writeAudit(ctx, res.Audit)

	if err := out.Send(ctx, in.UserID, res.Reply); err != nil {
		return fmt.Errorf("sending reply to %s: %w", in.UserID, err)
	}
	return nil
}

// writeAudit appends entries. Failures are logged and otherwise ignored.
func (r *Router) writeAudit(ctx context.Context, entries []store.AuditEntry) {
	if r.audit == nil {
		return
	}
	for i := range entries {
		if err := r.audit.AppendAuditLog(ctx, &entries[i]); err != nil {
			r.logger.Error("failed to append audit entry",
				"action", entries[i].Action,
				"actor", entries[i].Actor,
				"error", err,
			)
		}
	}
}

type userWorker struct {
	jobs chan chat.Inbound
}

// Run receives events from t until ctx is cancelled or t fails, handling
// each user's events in order on that user's worker. It returns nil on
// cancellation or io.EOF. On io.EOF queued events are finished first; on
// cancellation only the events already being handled are.
func (r *Router) Run(ctx context.Context, t Transport) error {
	ctx, cancel := context.WithCancel(ctx)

	var (
		mu      sync.Mutex
		workers = make(map[string]*userWorker)
		wg      sync.WaitGroup
		sem     = make(chan struct{}, r.workers)
	)
	defer func() {
		cancel()
		wg.Wait()
	}()

	// drain lets queued events finish once input is exhausted
	drain := func() {
		mu.Lock()
		for userID, w := range workers {
			close(w.jobs)
			delete(workers, userID)
		}
		mu.Unlock()
		wg.Wait()
	}

	// must be called with mu held
	startWorker := func(userID string) *userWorker {
		w := &userWorker{jobs: make(chan chat.Inbound, userQueueSize)}
		workers[userID] = w

		wg.Add(1)
		go func() {
			defer wg.Done()
			idle := time.NewTimer(workerIdle)
			defer idle.Stop()

			for {
				select {
				case in, ok := <-w.jobs:
					if !ok {
						return
					}
					select {
					case sem <- struct{}{}:
					case <-ctx.Done():
						return
					}
					if err := r.Handle(ctx, in, t); err != nil {
						r.logger.Error("handling event", "user", in.UserID, "id", in.ID, "error", err)
					}
					<-sem
					idle.Reset(workerIdle)

				case <-idle.C:
					mu.Lock()
					if len(w.jobs) == 0 && workers[userID] == w {
						delete(workers, userID)
						mu.Unlock()
						return
					}
					mu.Unlock()
					idle.Reset(workerIdle)

				case <-ctx.Done():
					return
				}
			}
		}()
		return w
	}

	r.logger.Info("router running", "workers", r.workers)
	for {
		in, err := t.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				r.logger.Info("transport input finished")
				drain()
				return nil
			}
			return fmt.Errorf("receiving event: %w", err)
		}
		if in.UserID == "" {
			r.logger.Warn("ignoring event without user", "id", in.ID)
			continue
		}

		mu.Lock()
		w, ok := workers[in.UserID]
		if !ok {
			w = startWorker(in.UserID)
		}
		select {
		case w.jobs <- in:
		default:
			r.logger.Warn("user queue full, dropping event", "user", in.UserID, "id", in.ID)
		}
		mu.Unlock()
	}
}
