// ABOUTME: Shared fixtures for content package tests
// ABOUTME: Writes sample documents to temp dirs and checks tree invariants

package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "root": {"title": "GPS tracker", "body": "Choose a section", "children": ["setup", "about", "problems"]},
  "setup": {"title": "Setup", "body": "Insert the SIM card", "children": ["sim"]},
  "sim": {"title": "SIM card", "body": "Use a nano SIM", "children": []},
  "about": {"title": "About", "body": "AK-39B tracker", "children": []},
  "problems": {"title": "Troubleshooting", "body": "Common issues", "children": []}
}`

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func openSample(t *testing.T) *Store {
	t.Helper()
	s, err := Open(writeFile(t, "content.json", sampleJSON), nil)
	require.NoError(t, err)
	return s
}

// requireTreeInvariant checks that every node reachable from the root points
// back at its parent and that no id is orphaned.
func requireTreeInvariant(t *testing.T, s *Store) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	var visit func(id string)
	visit = func(id string) {
		require.False(t, seen[id], "node %q visited twice", id)
		seen[id] = true
		n := s.tree.nodes[id]
		require.NotNil(t, n, "missing node %q", id)
		for _, childID := range n.Children {
			child := s.tree.nodes[childID]
			require.NotNil(t, child, "dangling child %q of %q", childID, id)
			require.Equal(t, id, child.Parent)
			visit(childID)
		}
	}
	visit(RootID)
	require.Len(t, seen, len(s.tree.nodes), "unreachable nodes present")
}
