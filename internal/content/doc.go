// Package content owns the help topic tree that the guide walks users through.
//
// # Document Format
//
// The tree is persisted as a single document mapping node ids to nodes. The
// root node uses the reserved id "root":
//
//	{
//	  "root":    {"title": "GPS tracker help", "body": "Pick a topic", "children": ["setup", "faq"]},
//	  "setup":   {"title": "Setup", "body": "...", "children": []},
//	  "faq":     {"title": "FAQ", "body": "...", "children": []}
//	}
//
// Files ending in .yaml or .yml are read and written as YAML; anything else is JSON.
//
// # Validation
//
// Open rejects documents that are not a single tree rooted at "root":
//
//   - the root node is missing, or listed as someone's child
//   - a child id does not exist
//   - a node is listed as a child more than once (two parents, or a duplicate entry)
//   - a node is unreachable from the root (orphans and detached cycles)
//   - a node has an empty title
//
// # Mutation and Persistence
//
// All mutations go through Store. Each one is applied to a copy of the tree,
// written to disk with a temp-file-and-rename, and only then made visible to
// readers. If the write fails the previous tree stays in place and the call
// returns a *StorageError.
//
// Readers take a shared lock and receive copies, so a title/body pair is never
// observed half-updated.
//
// # Errors
//
//   - ErrNotFound: the node does not exist
//   - ErrForbidden: the operation is not allowed on the root
//   - ErrInvalid: the document or the supplied fields are malformed
//   - *StorageError: persisting the tree failed (use errors.As)
package content
