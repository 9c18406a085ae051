// ABOUTME: Shared fixtures for session tests
// ABOUTME: Builds a sample topic tree, a counting verifier and a scripted conversation

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/coven-guide/internal/content"
	"github.com/2389/coven-guide/internal/menu"
)

const fixtureJSON = `{
  "root": {"title": "GPS tracker", "body": "Choose a section", "children": ["setup", "about", "problems"]},
  "setup": {"title": "Setup", "body": "Insert the SIM card", "children": ["sim"]},
  "sim": {"title": "SIM card", "body": "Use a nano SIM", "children": []},
  "about": {"title": "About", "body": "AK-39B tracker", "children": []},
  "problems": {"title": "Troubleshooting", "body": "Common issues", "children": []}
}`

const testSecret = "admin123"

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func openTree(t *testing.T) *content.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtureJSON), 0644))
	tree, err := content.Open(path, nil)
	require.NoError(t, err)
	return tree
}

type countingVerifier struct {
	secret string
	calls  int
}

func (v *countingVerifier) Verify(secret string) bool {
	v.calls++
	return secret == v.secret
}

// failingStore returns err from every mutation.
type failingStore struct {
	*content.Store
	err error
}

func (f *failingStore) Create(parentID, title, body string) (string, error) {
	return "", f.err
}

func (f *failingStore) Update(id string, fl content.Fields) error {
	return f.err
}

func (f *failingStore) Delete(id string) (int, error) {
	return 0, f.err
}

func diskFull(path string) error {
	return &content.StorageError{Op: "rename", Path: path, Err: errors.New("no space left on device")}
}

// convo drives one user's session through a manager.
type convo struct {
	t    *testing.T
	m    *Manager
	s    Session
	now  time.Time
	last Result
}

func newConvo(t *testing.T, m *Manager, userID string) *convo {
	return &convo{t: t, m: m, s: New(userID, t0, m.Policy()), now: t0}
}

func (c *convo) send(text string) Result {
	c.t.Helper()
	c.last = c.m.Handle(context.Background(), c.s, ParseEvent(text), c.now)
	c.s = c.last.Session
	return c.last
}

func (c *convo) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *convo) login() {
	c.t.Helper()
	c.send("/admin")
	res := c.send(testSecret)
	require.Equal(c.t, StateAdminMenu, res.Session.State)
}

func newTestManager(t *testing.T, tree ContentStore) (*Manager, *countingVerifier) {
	t.Helper()
	v := &countingVerifier{secret: testSecret}
	m := NewManager(Config{Content: tree, Verifier: v})
	return m, v
}

func labels(opts []menu.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Label
	}
	return out
}
