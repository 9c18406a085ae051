// ABOUTME: Transport-neutral message types exchanged between the core and transports
// ABOUTME: Inbound carries one user event; Reply is the structured response to render

// Package chat holds the message types that cross the transport boundary.
// Transports turn protocol events into Inbound values and render Reply values
// however their protocol prefers.
package chat

import (
	"fmt"
	"strings"

	"github.com/2389/coven-guide/internal/menu"
)

// Inbound is a single event from a user.
type Inbound struct {
	ID     string // transport event id used for deduplication; may be empty
	UserID string
	Text   string
}

// Reply is what the user should see after an event.
type Reply struct {
	Title   string
	Body    string
	Notes   []string // short status lines such as "invalid selection"
	Options []menu.Option
	Admin   bool // the session is in admin mode
}

// PlainText renders the reply without markup: title, body, notes, and a
// numbered option list.
func (r Reply) PlainText() string {
	var b strings.Builder
	for _, note := range r.Notes {
		b.WriteString("» " + note + "\n")
	}
	if len(r.Notes) > 0 {
		b.WriteString("\n")
	}
	if r.Title != "" {
		if r.Admin {
			b.WriteString("[admin] ")
		}
		b.WriteString(r.Title + "\n")
	}
	if r.Body != "" {
		b.WriteString("\n" + r.Body + "\n")
	}
	if len(r.Options) > 0 {
		b.WriteString("\n")
		for i, opt := range r.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Label)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
