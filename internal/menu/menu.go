// ABOUTME: Menu rendering for a content node
// ABOUTME: Produces the ordered, numbered option list shown under every topic

package menu

import "github.com/2389/coven-guide/internal/content"

// Action identifies what selecting an option does.
type Action string

const (
	ActionOpen      Action = "open"
	ActionBack      Action = "back"
	ActionHome      Action = "home"
	ActionEditTitle Action = "edit_title"
	ActionEditBody  Action = "edit_body"
	ActionAddChild  Action = "add_child"
	ActionDelete    Action = "delete"
)

// Labels for the fixed options. Users may type these instead of a number.
const (
	LabelBack      = "back"
	LabelHome      = "home"
	LabelEditTitle = "edit title"
	LabelEditBody  = "edit body"
	LabelAddChild  = "add child"
	LabelDelete    = "delete node"
)

// Option is one selectable menu entry.
type Option struct {
	Label  string
	Action Action
	Target string // node id for ActionOpen
}

// Render lists the node's children in stored order, then back (not at the
// root), home, and the admin entries when isAdmin is set. Delete is never
// offered for the root. The result depends only on the arguments.
func Render(v content.View, isAdmin bool) []Option {
	atRoot := v.Node.IsRoot()

	opts := make([]Option, 0, len(v.Children)+6)
	for _, child := range v.Children {
		opts = append(opts, Option{Label: child.Title, Action: ActionOpen, Target: child.ID})
	}
	if !atRoot {
		opts = append(opts, Option{Label: LabelBack, Action: ActionBack})
	}
	opts = append(opts, Option{Label: LabelHome, Action: ActionHome})

	if isAdmin {
		opts = append(opts,
			Option{Label: LabelEditTitle, Action: ActionEditTitle},
			Option{Label: LabelEditBody, Action: ActionEditBody},
			Option{Label: LabelAddChild, Action: ActionAddChild},
		)
		if !atRoot {
			opts = append(opts, Option{Label: LabelDelete, Action: ActionDelete})
		}
	}
	return opts
}

// Select returns the k-th option, counting from 1.
func Select(opts []Option, k int) (Option, bool) {
	if k < 1 || k > len(opts) {
		return Option{}, false
	}
	return opts[k-1], true
}

// ActionForLabel maps a typed fixed label to its action. Child titles are not
// matched; those are picked by number.
func ActionForLabel(label string) (Action, bool) {
	switch label {
	case LabelBack:
		return ActionBack, true
	case LabelHome:
		return ActionHome, true
	case LabelEditTitle:
		return ActionEditTitle, true
	case LabelEditBody:
		return ActionEditBody, true
	case LabelAddChild:
		return ActionAddChild, true
	case LabelDelete:
		return ActionDelete, true
	}
	return "", false
}
