// ABOUTME: Store owns the content tree behind a reader/writer lock
// ABOUTME: Mutations are applied to a copy, persisted atomically, then swapped in

package content

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// maxIDAttempts bounds retries when a generated short id collides.
const maxIDAttempts = 8

// Store is the only owner of the content tree. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	path   string
	codec  codec
	tree   *tree
	logger *slog.Logger

	// write and newID are swapped out in tests.
	write func(path string, data []byte) error
	newID func() string
}

// Open loads and validates the document at path. A document that is not a
// valid tree is rejected.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading content file: %w", err)
	}

	c := codecFor(path)
	t, err := decodeDocument(c, data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	s := &Store{
		path:   path,
		codec:  c,
		tree:   t,
		logger: logger.With("component", "content"),
		write:  writeFileAtomic,
		newID:  shortID,
	}
	s.logger.Info("content loaded", "path", path, "nodes", len(t.nodes), "format", c.name)
	return s, nil
}

// Init writes a new document at path containing only a root node. It refuses
// to overwrite an existing file.
func Init(path, title, body string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: root title is required", ErrInvalid)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("content file %s already exists", path)
	}

	t := &tree{nodes: map[string]*Node{
		RootID: {ID: RootID, Title: title, Body: body},
	}}
	c := codecFor(path)
	data, err := c.encode(t.toDocument())
	if err != nil {
		return fmt.Errorf("encoding content: %w", err)
	}
	return writeFileAtomic(path, data)
}

// Path returns the file the store persists to.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of nodes in the tree.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tree.nodes)
}

// Get returns a copy of the node with the given id.
func (s *Store) Get(id string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.tree.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return n.clone(), nil
}

// Children returns copies of the node's children in stored order.
func (s *Store) Children(id string) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.tree.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s.childrenLocked(n), nil
}

// View returns the node and its children from one consistent snapshot.
func (s *Store) View(id string) (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.tree.nodes[id]
	if !ok {
		return View{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return View{Node: n.clone(), Children: s.childrenLocked(n)}, nil
}

func (s *Store) childrenLocked(n *Node) []Node {
	children := make([]Node, 0, len(n.Children))
	for _, childID := range n.Children {
		children = append(children, s.tree.nodes[childID].clone())
	}
	return children
}

// Descendants returns how many nodes sit below id.
func (s *Store) Descendants(id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tree.nodes[id]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return len(s.tree.subtree(id)) - 1, nil
}

// Walk visits every node depth-first from the root in display order.
// Returning false from fn skips the node's descendants.
func (s *Store) Walk(fn func(n Node, depth int) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		n := s.tree.nodes[id]
		if !fn(n.clone(), depth) {
			return
		}
		for _, childID := range n.Children {
			visit(childID, depth+1)
		}
	}
	visit(RootID, 0)
}

// Create adds a new child under parentID and returns its id.
func (s *Store) Create(parentID, title, body string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalid)
	}

	var id string
	err := s.mutate("create", func(t *tree) error {
		parent, ok := t.nodes[parentID]
		if !ok {
			return fmt.Errorf("%w: parent %q", ErrNotFound, parentID)
		}

		newID, err := s.freshID(t)
		if err != nil {
			return err
		}

		t.nodes[newID] = &Node{ID: newID, Title: title, Body: body, Parent: parentID}
		parent.Children = append(parent.Children, newID)
		id = newID
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("node created", "id", id, "parent", parentID)
	return id, nil
}

// Update changes the supplied fields of a node.
func (s *Store) Update(id string, f Fields) error {
	if f.IsEmpty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalid)
	}
	if f.Title != nil && strings.TrimSpace(*f.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalid)
	}

	err := s.mutate("update", func(t *tree) error {
		n, ok := t.nodes[id]
		if !ok {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		if f.Title != nil {
			n.Title = *f.Title
		}
		if f.Body != nil {
			n.Body = *f.Body
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("node updated", "id", id, "title", f.Title != nil, "body", f.Body != nil)
	return nil
}

// Delete removes the node and its whole subtree. It returns the number of
// nodes removed.
func (s *Store) Delete(id string) (int, error) {
	if id == RootID {
		return 0, ErrForbidden
	}

	var removed int
	err := s.mutate("delete", func(t *tree) error {
		n, ok := t.nodes[id]
		if !ok {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}

		parent := t.nodes[n.Parent]
		parent.Children = removeString(parent.Children, id)

		ids := t.subtree(id)
		for _, victim := range ids {
			delete(t.nodes, victim)
		}
		removed = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("node deleted", "id", id, "removed", removed)
	return removed, nil
}

// Persist writes the current tree to disk.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(s.tree)
}

// mutate applies fn to a copy of the tree, persists the copy, and swaps it in.
// On any failure the current tree is left untouched.
func (s *Store) mutate(op string, fn func(t *tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.tree.clone()
	if err := fn(next); err != nil {
		return err
	}

	if err := s.persistLocked(next); err != nil {
		s.logger.Error("content persist failed, mutation rolled back", "op", op, "path", s.path, "error", err)
		return err
	}

	s.tree = next
	return nil
}

func (s *Store) persistLocked(t *tree) error {
	data, err := s.codec.encode(t.toDocument())
	if err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}
	if err := s.write(s.path, data); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

func (s *Store) freshID(t *tree) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if _, exists := t.nodes[id]; !exists && id != RootID {
			return id, nil
		}
	}
	return "", errors.New("could not allocate a unique node id")
}

// shortID returns the first 8 hex characters of a random UUID.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
