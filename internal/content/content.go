// ABOUTME: Content tree types and errors for the help topic tree
// ABOUTME: Defines Node, View, Fields and the sentinel errors returned by Store

package content

import (
	"errors"
	"fmt"
)

// RootID is the reserved id of the tree root.
const RootID = "root"

// ErrNotFound is returned when a node id does not exist in the tree
var ErrNotFound = errors.New("node not found")

// ErrForbidden is returned when an operation is not allowed on the root node
var ErrForbidden = errors.New("operation not permitted on root node")

// ErrInvalid is returned for malformed documents and rejected field values
var ErrInvalid = errors.New("invalid content")

// StorageError reports a failed persist. The mutation that triggered it was
// not applied.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("content storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Node is one topic in the help tree.
type Node struct {
	ID       string
	Title    string
	Body     string
	Children []string // child ids in display order
	Parent   string   // empty for the root
}

// IsRoot reports whether n is the tree root.
func (n Node) IsRoot() bool {
	return n.ID == RootID
}

func (n Node) clone() Node {
	c := n
	c.Children = append([]string(nil), n.Children...)
	return c
}

// View is a node together with its children, read under a single lock so the
// three are consistent with each other.
type View struct {
	Node     Node
	Children []Node
}

// Fields is a partial update. Nil fields are left unchanged.
type Fields struct {
	Title *string
	Body  *string
}

// IsEmpty reports whether no field is set.
func (f Fields) IsEmpty() bool {
	return f.Title == nil && f.Body == nil
}
