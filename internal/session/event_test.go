// ABOUTME: Tests for parsing chat text into session events
// ABOUTME: Covers commands, numeric selections, fixed labels and free text

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/coven-guide/internal/menu"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		in      string
		kind    EventKind
		index   int
		action  menu.Action
		command bool
	}{
		{"/start", EventStart, 0, "", true},
		{"  /MENU ", EventStart, 0, "", true},
		{"start", EventStart, 0, "", false},
		{"/start@guide_bot", EventStart, 0, "", true},
		{"/admin", EventAdmin, 0, "", true},
		{"/cancel", EventCancel, 0, "", true},
		{"Exit Admin", EventCancel, 0, "", true},
		{"back", EventBack, 0, "", false},
		{"/back", EventBack, 0, "", true},
		{"home", EventHome, 0, "", false},
		{"/tree", EventTree, 0, "", true},
		{"/audit", EventAudit, 0, "", true},
		{"3", EventSelect, 3, "", false},
		{"0", EventText, 0, "", false},
		{"-2", EventText, 0, "", false},
		{"edit title", EventAction, 0, menu.ActionEditTitle, false},
		{"Edit Body", EventAction, 0, menu.ActionEditBody, false},
		{"add child", EventAction, 0, menu.ActionAddChild, false},
		{"delete node", EventAction, 0, menu.ActionDelete, false},
		{"/unknown", EventText, 0, "", false},
		{"how do I reset it?", EventText, 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ev := ParseEvent(tt.in)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.index, ev.Index)
			assert.Equal(t, tt.action, ev.Action)
			assert.Equal(t, tt.command, ev.Command)
		})
	}
}

func TestParseEvent_KeepsTrimmedText(t *testing.T) {
	ev := ParseEvent("  New Title  ")
	assert.Equal(t, "New Title", ev.Text)

	ev = ParseEvent("2")
	assert.Equal(t, "2", ev.Text, "selections keep their text for edit states")
}
