// ABOUTME: Tests for routing inbound events to sessions and replies
// ABOUTME: Uses an in-memory transport and a temp-dir topic tree

package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-guide/internal/auth"
	"github.com/2389/coven-guide/internal/chat"
	"github.com/2389/coven-guide/internal/content"
	"github.com/2389/coven-guide/internal/dedupe"
	"github.com/2389/coven-guide/internal/session"
	"github.com/2389/coven-guide/internal/store"
)

const fixtureJSON = `{
  "root": {"title": "GPS tracker", "body": "Choose a section", "children": ["setup", "about"]},
  "setup": {"title": "Setup", "body": "Insert the SIM card", "children": []},
  "about": {"title": "About", "body": "AK-39B tracker", "children": []}
}`

type fakeTransport struct {
	in      chan chat.Inbound
	recvErr error // returned once in is closed; io.EOF when nil

	mu      sync.Mutex
	sent    map[string][]chat.Reply
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan chat.Inbound, 256), sent: make(map[string][]chat.Reply)}
}

func (f *fakeTransport) Receive(ctx context.Context) (chat.Inbound, error) {
	select {
	case in, ok := <-f.in:
		if !ok {
			if f.recvErr != nil {
				return chat.Inbound{}, f.recvErr
			}
			return chat.Inbound{}, io.EOF
		}
		return in, nil
	case <-ctx.Done():
		return chat.Inbound{}, ctx.Err()
	}
}

func (f *fakeTransport) Send(ctx context.Context, userID string, r chat.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent[userID] = append(f.sent[userID], r)
	return nil
}

func (f *fakeTransport) replies(userID string) []chat.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Reply(nil), f.sent[userID]...)
}

type fixture struct {
	router *Router
	tree   *content.Store
	audit  *store.MemoryStore
	reg    *session.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtureJSON), 0644))
	tree, err := content.Open(path, nil)
	require.NoError(t, err)

	authn, err := auth.NewAuthenticator(auth.Credential{Password: "admin123"})
	require.NoError(t, err)

	audit := store.NewMemoryStore(0)
	reg := session.NewRegistry(session.Policy{}, nil)
	mgr := session.NewManager(session.Config{Content: tree, Verifier: authn, Audit: audit})

	r := New(Config{
		Manager:  mgr,
		Registry: reg,
		Dedupe:   dedupe.New(time.Minute, 100),
		Audit:    audit,
		Workers:  4,
	})
	return &fixture{router: r, tree: tree, audit: audit, reg: reg}
}

func (f *fixture) handle(t *testing.T, out Sender, id, user, text string) {
	t.Helper()
	require.NoError(t, f.router.Handle(context.Background(), chat.Inbound{ID: id, UserID: user, Text: text}, out))
}

func TestRouter_HandleSendsReply(t *testing.T) {
	f := newFixture(t)
	out := newFakeTransport()

	f.handle(t, out, "e1", "alice", "start")

	replies := out.replies("alice")
	require.Len(t, replies, 1)
	assert.Equal(t, "GPS tracker", replies[0].Title)

	s, ok := f.reg.Get("alice")
	require.True(t, ok)
	assert.Equal(t, session.StateBrowsing, s.State)
}

func TestRouter_DropsDuplicateEvents(t *testing.T) {
	f := newFixture(t)
	out := newFakeTransport()

	f.handle(t, out, "e1", "alice", "1")
	f.handle(t, out, "e1", "alice", "1")

	assert.Len(t, out.replies("alice"), 1)
	s, _ := f.reg.Get("alice")
	assert.Equal(t, "setup", s.Node)
}

func TestRouter_EventsWithoutIDAreNotDeduplicated(t *testing.T) {
	f := newFixture(t)
	out := newFakeTransport()

	f.handle(t, out, "", "alice", "start")
	f.handle(t, out, "", "alice", "start")

	assert.Len(t, out.replies("alice"), 2)
}

func TestRouter_WritesAudit(t *testing.T) {
	f := newFixture(t)
	out := newFakeTransport()

	f.handle(t, out, "e1", "alice", "/admin")
	f.handle(t, out, "e2", "alice", "wrong")
	f.handle(t, out, "e3", "alice", "admin123")

	entries, err := f.audit.ListAuditLog(context.Background(), store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, store.AuditLoginSucceeded, entries[0].Action)
	assert.Equal(t, store.AuditLoginFailed, entries[1].Action)
	assert.Equal(t, "alice", entries[0].Actor)
}

func TestRouter_AuditFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.audit.FailAppend = errors.New("database is locked")
	out := newFakeTransport()

	f.handle(t, out, "e1", "alice", "/admin")
	f.handle(t, out, "e2", "alice", "admin123")

	replies := out.replies("alice")
	require.Len(t, replies, 2)
	assert.True(t, replies[1].Admin)
}

func TestRouter_SendErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	out := newFakeTransport()
	out.sendErr = errors.New("connection reset")

	err := f.router.Handle(context.Background(), chat.Inbound{ID: "e1", UserID: "alice", Text: "start"}, out)
	assert.ErrorContains(t, err, "connection reset")
}

func TestRouter_RejectsMissingUser(t *testing.T) {
	f := newFixture(t)
	err := f.router.Handle(context.Background(), chat.Inbound{ID: "e1", Text: "start"}, newFakeTransport())
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestRouter_RunKeepsPerUserOrder(t *testing.T) {
	f := newFixture(t)
	tr := newFakeTransport()

	users := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	const rounds = 10
	for i := 0; i < rounds; i++ {
		for _, u := range users {
			// alternate between a child and back to the root
			text := "1"
			if i%2 == 1 {
				text = "back"
			}
			tr.in <- chat.Inbound{ID: fmt.Sprintf("%s-%d", u, i), UserID: u, Text: text}
		}
	}
	close(tr.in)

	require.NoError(t, f.router.Run(context.Background(), tr))

	for _, u := range users {
		replies := tr.replies(u)
		require.Len(t, replies, rounds, u)
		for i, r := range replies {
			want := "Setup"
			if i%2 == 1 {
				want = "GPS tracker"
			}
			assert.Equal(t, want, r.Title, "%s reply %d", u, i)
		}
	}
}

func TestRouter_RunEditVisibleToOtherUsers(t *testing.T) {
	f := newFixture(t)
	tr := newFakeTransport()

	script := []chat.Inbound{
		{ID: "1", UserID: "admin", Text: "/admin"},
		{ID: "2", UserID: "admin", Text: "admin123"},
		{ID: "3", UserID: "admin", Text: "2"},
		{ID: "4", UserID: "admin", Text: "edit body"},
		{ID: "5", UserID: "admin", Text: "new text"},
	}
	for _, in := range script {
		tr.in <- in
	}
	close(tr.in)
	require.NoError(t, f.router.Run(context.Background(), tr))

	out := newFakeTransport()
	f.handle(t, out, "r1", "reader", "2")
	assert.Equal(t, "new text", out.replies("reader")[0].Body)
}

func TestRouter_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	tr := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.router.Run(ctx, tr) }()

	tr.in <- chat.Inbound{ID: "e1", UserID: "alice", Text: "start"}
	require.Eventually(t, func() bool { return len(tr.replies("alice")) == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRouter_RunReturnsReceiveError(t *testing.T) {
	f := newFixture(t)
	tr := newFakeTransport()
	tr.recvErr = errors.New("sync failed")
	close(tr.in)

	err := f.router.Run(context.Background(), tr)
	assert.ErrorContains(t, err, "sync failed")
}
