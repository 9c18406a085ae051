// ABOUTME: In-memory tree representation, document decoding and invariant validation
// ABOUTME: Converts between the persisted id->node document and the linked tree

package content

import (
	"fmt"
	"sort"
	"strings"
)

// docNode is the persisted shape of a node. Parent links are derived on load.
type docNode struct {
	Title    string   `json:"title" yaml:"title"`
	Body     string   `json:"body" yaml:"body"`
	Children []string `json:"children" yaml:"children"`
}

// document is the persisted tree: node id -> node.
type document map[string]docNode

// tree is the validated, linked form of a document.
type tree struct {
	nodes map[string]*Node
}

// buildTree validates doc and links parents. Every violation is reported as ErrInvalid.
func buildTree(doc document) (*tree, error) {
	if _, ok := doc[RootID]; !ok {
		return nil, fmt.Errorf("%w: missing root node %q", ErrInvalid, RootID)
	}

	nodes := make(map[string]*Node, len(doc))
	for id, dn := range doc {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: empty node id", ErrInvalid)
		}
		if strings.TrimSpace(dn.Title) == "" {
			return nil, fmt.Errorf("%w: node %q has an empty title", ErrInvalid, id)
		}
		nodes[id] = &Node{
			ID:       id,
			Title:    dn.Title,
			Body:     dn.Body,
			Children: append([]string(nil), dn.Children...),
		}
	}

	// Link parents in sorted order so error messages are stable.
	for _, id := range sortedIDs(nodes) {
		for _, childID := range nodes[id].Children {
			if childID == RootID {
				return nil, fmt.Errorf("%w: root node listed as a child of %q", ErrInvalid, id)
			}
			child, ok := nodes[childID]
			if !ok {
				return nil, fmt.Errorf("%w: node %q lists unknown child %q", ErrInvalid, id, childID)
			}
			if child.Parent != "" {
				return nil, fmt.Errorf("%w: node %q is listed as a child of both %q and %q",
					ErrInvalid, childID, child.Parent, id)
			}
			child.Parent = id
		}
	}

	// With at most one parent per node, anything unreachable from the root is
	// either an orphan or part of a detached cycle.
	seen := make(map[string]bool, len(nodes))
	stack := []string{RootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		seen[id] = true
		stack = append(stack, nodes[id].Children...)
	}
	if len(seen) != len(nodes) {
		var unreachable []string
		for _, id := range sortedIDs(nodes) {
			if !seen[id] {
				unreachable = append(unreachable, id)
			}
		}
		return nil, fmt.Errorf("%w: nodes unreachable from root: %s",
			ErrInvalid, strings.Join(unreachable, ", "))
	}

	return &tree{nodes: nodes}, nil
}

// toDocument converts the tree back into its persisted shape.
func (t *tree) toDocument() document {
	doc := make(document, len(t.nodes))
	for id, n := range t.nodes {
		children := append([]string{}, n.Children...)
		doc[id] = docNode{Title: n.Title, Body: n.Body, Children: children}
	}
	return doc
}

// clone returns a deep copy that can be mutated without affecting readers of t.
func (t *tree) clone() *tree {
	nodes := make(map[string]*Node, len(t.nodes))
	for id, n := range t.nodes {
		c := n.clone()
		nodes[id] = &c
	}
	return &tree{nodes: nodes}
}

// subtree returns id and all of its descendants.
func (t *tree) subtree(id string) []string {
	var ids []string
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, cur)
		if n, ok := t.nodes[cur]; ok {
			stack = append(stack, n.Children...)
		}
	}
	return ids
}

func sortedIDs(nodes map[string]*Node) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
