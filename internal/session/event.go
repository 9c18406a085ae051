// ABOUTME: Parses raw chat text into session events
// ABOUTME: Recognizes commands, numeric selections, fixed labels and free text

package session

import (
	"strconv"
	"strings"

	"github.com/2389/coven-guide/internal/menu"
)

// EventKind classifies a parsed input.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventAdmin  EventKind = "admin"
	EventCancel EventKind = "cancel"
	EventBack   EventKind = "back"
	EventHome   EventKind = "home"
	EventSelect EventKind = "select"
	EventAction EventKind = "action"
	EventTree   EventKind = "tree"
	EventAudit  EventKind = "audit"
	EventText   EventKind = "text"
)

// Event is one parsed user input.
type Event struct {
	Kind EventKind
	// Text is the trimmed input, kept for every kind so text-expecting
	// states can reinterpret non-command events.
	Text   string
	Index  int         // EventSelect
	Action menu.Action // EventAction
	// Command is set for recognized slash commands and the "exit admin"
	// phrase, the only inputs honoured while a session waits for text.
	Command bool
}

var commands = map[string]EventKind{
	"/start":  EventStart,
	"/menu":   EventStart,
	"/admin":  EventAdmin,
	"/cancel": EventCancel,
	"/back":   EventBack,
	"/home":   EventHome,
	"/tree":   EventTree,
	"/audit":  EventAudit,
}

// ParseEvent classifies text. Matching ignores case and surrounding space.
func ParseEvent(text string) Event {
	trimmed := strings.TrimSpace(text)
	key := strings.ToLower(trimmed)
	ev := Event{Kind: EventText, Text: trimmed}

	// "/start@botname" style suffixes are common in group chats
	if strings.HasPrefix(key, "/") {
		if at := strings.IndexByte(key, '@'); at > 0 {
			key = key[:at]
		}
		if kind, ok := commands[key]; ok {
			ev.Kind = kind
			ev.Command = true
		}
		return ev
	}

	switch key {
	case "start":
		ev.Kind = EventStart
		return ev
	case "exit admin":
		ev.Kind = EventCancel
		ev.Command = true
		return ev
	case menu.LabelBack:
		ev.Kind = EventBack
		return ev
	case menu.LabelHome:
		ev.Kind = EventHome
		return ev
	}

	if n, err := strconv.Atoi(key); err == nil && n > 0 {
		ev.Kind = EventSelect
		ev.Index = n
		return ev
	}
	if action, ok := menu.ActionForLabel(key); ok {
		ev.Kind = EventAction
		ev.Action = action
	}
	return ev
}
