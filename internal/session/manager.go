// ABOUTME: The session transition function that turns one event into a reply
// ABOUTME: Handles browsing, admin login with lockout, and admin content edits

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/coven-guide/internal/auth"
	"github.com/2389/coven-guide/internal/chat"
	"github.com/2389/coven-guide/internal/content"
	"github.com/2389/coven-guide/internal/menu"
	"github.com/2389/coven-guide/internal/store"
)

// ContentStore defines what the manager needs from the topic tree.
type ContentStore interface {
	Get(id string) (content.Node, error)
	View(id string) (content.View, error)
	Descendants(id string) (int, error)
	Walk(fn func(n content.Node, depth int) bool)
	Create(parentID, title, body string) (string, error)
	Update(id string, f content.Fields) error
	Delete(id string) (int, error)
}

// AuditReader lists recent audit entries for the /audit command.
type AuditReader interface {
	ListAuditLog(ctx context.Context, f store.AuditFilter) ([]store.AuditEntry, error)
}

// Result is the outcome of handling one event.
type Result struct {
	Session Session
	Reply   chat.Reply
	// Audit holds entries describing admin actions taken during the event.
	// The caller decides where they are written.
	Audit []store.AuditEntry
}

// Config wires a Manager.
type Config struct {
	Content  ContentStore
	Verifier auth.Verifier
	Audit    AuditReader // optional; /audit reports it as disabled when nil
	Policy   Policy
	Logger   *slog.Logger
}

// Manager applies events to sessions. It holds no per-user state and is
// safe for concurrent use; callers serialize events per user.
type Manager struct {
	content  ContentStore
	verifier auth.Verifier
	audit    AuditReader
	policy   Policy
	logger   *slog.Logger
}

// auditListLimit is how many entries /audit shows.
const auditListLimit = 10

const (
	noteNodeGone      = "that topic no longer exists, back at the start"
	noteInvalidSelect = "invalid selection"
	noteRootDelete    = "the start topic cannot be deleted"
)

// NewManager creates a Manager. Zero policy fields take their defaults.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		content:  cfg.Content,
		verifier: cfg.Verifier,
		audit:    cfg.Audit,
		policy:   cfg.Policy.withDefaults(),
		logger:   logger.With("component", "session"),
	}
}

// Policy returns the effective policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Handle applies ev to s at time now and returns the next session and the
// reply. The returned session is always in a defined state.
func (m *Manager) Handle(ctx context.Context, s Session, ev Event, now time.Time) Result {
	t := &turn{m: m, ctx: ctx, now: now, s: s}

	if t.s.State == "" {
		t.s.State = StateBrowsing
	}
	t.expireAdmin()
	recovered := t.recoverNode()

	switch {
	case ev.Kind == EventAdmin:
		t.beginLogin()
	case ev.Kind == EventCancel:
		t.cancel()
	case recovered && t.s.State != StateLoginPending:
		// the menu the user answered no longer exists; show the root instead
	default:
		switch t.s.State {
		case StateBrowsing:
			t.navigate(ev, false)
		case StateLoginPending:
			t.loginPending(ev)
		case StateAdminMenu:
			t.navigate(ev, true)
		case StateAdminEditing:
			t.editing(ev)
		default:
			m.logger.Warn("resetting session in unknown state", "user", s.UserID, "state", s.State)
			t.s.State = StateBrowsing
			t.s.Node = ""
		}
	}

	t.settle()
	reply := t.render()
	t.settle()

	t.s.LastSeen = now
	t.s.ExpiresAt = now.Add(m.policy.SessionTTL)
	if t.s.Admin {
		t.s.AdminExpiresAt = now.Add(m.policy.AdminIdleTimeout)
	} else {
		t.s.AdminExpiresAt = time.Time{}
	}

	return Result{Session: t.s, Reply: reply, Audit: t.entries}
}

// turn carries the working state of a single Handle call.
type turn struct {
	m   *Manager
	ctx context.Context
	now time.Time
	s   Session

	notes   []string
	entries []store.AuditEntry
	reply   *chat.Reply // overrides the default view for this state
}

func (t *turn) note(msg string) {
	t.notes = append(t.notes, msg)
}

func (t *turn) record(action store.AuditAction, target string, detail map[string]any) {
	t.entries = append(t.entries, store.AuditEntry{
		Actor:     t.s.UserID,
		Action:    action,
		Target:    target,
		Timestamp: t.now,
		Detail:    detail,
	})
}

// settle keeps the derived fields consistent with State.
func (t *turn) settle() {
	t.s.Admin = t.s.State.IsAdmin()
	if t.s.State != StateAdminEditing {
		t.s.Pending = nil
	} else if t.s.Pending == nil {
		t.s.State = StateAdminMenu
	}
}

func (t *turn) toRoot(state State) {
	t.s.State = state
	t.s.Node = ""
	t.s.Pending = nil
}

func (t *turn) expireAdmin() {
	if !t.s.State.IsAdmin() || t.s.AdminExpiresAt.IsZero() || t.now.Before(t.s.AdminExpiresAt) {
		return
	}
	t.m.logger.Info("admin session expired", "user", t.s.UserID)
	t.record(store.AuditAdminExpired, "", nil)
	t.toRoot(StateBrowsing)
	t.note("admin session expired, send /admin to log in again")
}

// recoverNode moves the session to the root when its current or pending
// node was deleted by someone else. It reports whether it did.
func (t *turn) recoverNode() bool {
	gone := func(id string) bool {
		_, err := t.m.content.Get(id)
		return errors.Is(err, content.ErrNotFound)
	}

	if t.s.Pending != nil && gone(t.s.Pending.Node) {
		t.toRoot(StateAdminMenu)
		t.note(noteNodeGone)
		return true
	}
	if t.s.Node != "" && gone(t.s.Node) {
		t.s.Node = ""
		t.note(noteNodeGone)
		return true
	}
	return false
}

func (t *turn) navigate(ev Event, admin bool) {
	switch ev.Kind {
	case EventStart, EventHome:
		t.s.Node = ""
	case EventBack:
		t.back()
	case EventSelect:
		view, err := t.m.content.View(t.s.CurrentNode())
		if err != nil {
			// rendered below with the usual recovery
			return
		}
		opt, ok := menu.Select(menu.Render(view, admin), ev.Index)
		if !ok {
			t.note(noteInvalidSelect)
			return
		}
		t.apply(opt, admin)
	case EventAction:
		t.apply(menu.Option{Action: ev.Action}, admin)
	case EventTree:
		if admin {
			t.reply = t.treeReply()
		}
	case EventAudit:
		if admin {
			t.reply = t.auditReply()
		}
	case EventText:
		if !ev.Command && !strings.HasPrefix(ev.Text, "/") {
			t.note("send the number of an option")
		}
	}
}

func (t *turn) apply(opt menu.Option, admin bool) {
	switch opt.Action {
	case menu.ActionOpen:
		t.s.setNode(opt.Target)
	case menu.ActionBack:
		t.back()
	case menu.ActionHome:
		t.s.Node = ""
	case menu.ActionEditTitle:
		t.beginEdit(admin, FieldTitle)
	case menu.ActionEditBody:
		t.beginEdit(admin, FieldBody)
	case menu.ActionAddChild:
		t.beginEdit(admin, FieldChild)
	case menu.ActionDelete:
		if admin && t.s.CurrentNode() == content.RootID {
			t.note(noteRootDelete)
			return
		}
		t.beginEdit(admin, FieldDelete)
	}
}

func (t *turn) back() {
	n, err := t.m.content.Get(t.s.CurrentNode())
	if err != nil || n.IsRoot() {
		return
	}
	t.s.setNode(n.Parent)
}

func (t *turn) beginEdit(admin bool, f Field) {
	if !admin {
		return
	}
	t.s.State = StateAdminEditing
	t.s.Pending = &EditTarget{Node: t.s.CurrentNode(), Field: f}
}

func (t *turn) leaveEdit(node string) {
	t.s.State = StateAdminMenu
	t.s.Pending = nil
	t.s.setNode(node)
}

func (t *turn) beginLogin() {
	t.s.State = StateLoginPending
	t.s.Pending = nil
}

func (t *turn) cancel() {
	switch t.s.State {
	case StateBrowsing:
		return
	case StateLoginPending:
		t.note("login cancelled")
	default:
		t.m.logger.Info("admin logged out", "user", t.s.UserID)
		t.record(store.AuditLogout, "", nil)
		t.note("left admin mode")
	}
	t.toRoot(StateBrowsing)
}

func (t *turn) loginPending(ev Event) {
	if ev.Command {
		return
	}
	t.attemptLogin(ev.Text)
}

func (t *turn) attemptLogin(secret string) {
	p := t.m.policy

	if !t.s.LockedUntil.IsZero() {
		if t.s.Locked(t.now) {
			t.record(store.AuditLoginRejected, "", nil)
			t.note("login is locked after too many failed attempts")
			return
		}
		t.s.LockedUntil = time.Time{}
		t.s.FailedLogins = 0
	}

	if t.m.verifier.Verify(secret) {
		t.m.logger.Info("admin login succeeded", "user", t.s.UserID)
		t.record(store.AuditLoginSucceeded, "", nil)
		t.s.FailedLogins = 0
		t.s.State = StateAdminMenu
		t.note("admin mode on, send /cancel to leave")
		return
	}

	t.s.FailedLogins++
	t.record(store.AuditLoginFailed, "", map[string]any{"attempt": t.s.FailedLogins})

	if t.s.FailedLogins >= p.MaxLoginAttempts {
		t.s.LockedUntil = t.now.Add(p.LockoutDuration)
		t.m.logger.Warn("admin login locked", "user", t.s.UserID, "until", t.s.LockedUntil)
		t.record(store.AuditLoginLocked, "", map[string]any{"until": t.s.LockedUntil.UTC().Format(time.RFC3339)})
		t.note("incorrect password, too many failed attempts")
		return
	}

	t.m.logger.Warn("admin login failed", "user", t.s.UserID, "attempt", t.s.FailedLogins)
	remaining := p.MaxLoginAttempts - t.s.FailedLogins
	t.note(fmt.Sprintf("incorrect password, %s remaining", plural(remaining, "attempt")))
}

func (t *turn) editing(ev Event) {
	target := t.s.Pending
	if target == nil {
		t.s.State = StateAdminMenu
		return
	}

	switch {
	case ev.Kind == EventBack && ev.Command:
		t.leaveEdit(target.Node)
		t.note("edit abandoned")
	case ev.Kind == EventStart && ev.Command:
		t.leaveEdit(content.RootID)
		t.note("edit abandoned")
	case ev.Command:
		// keep waiting for the text
	default:
		t.applyEdit(*target, ev.Text)
	}
}

func (t *turn) applyEdit(target EditTarget, text string) {
	if text == "" {
		t.note("send some text, or /back to keep things as they are")
		return
	}

	var err error
	switch target.Field {
	case FieldTitle:
		if err = t.m.content.Update(target.Node, content.Fields{Title: &text}); err == nil {
			t.record(store.AuditUpdateNode, target.Node, map[string]any{"field": string(FieldTitle)})
			t.note("title updated")
			t.leaveEdit(target.Node)
		}

	case FieldBody:
		if err = t.m.content.Update(target.Node, content.Fields{Body: &text}); err == nil {
			t.record(store.AuditUpdateNode, target.Node, map[string]any{"field": string(FieldBody)})
			t.note("text updated")
			t.leaveEdit(target.Node)
		}

	case FieldChild:
		title, body := splitChild(text)
		var id string
		if id, err = t.m.content.Create(target.Node, title, body); err == nil {
			t.record(store.AuditCreateNode, id, map[string]any{"parent": target.Node, "title": title})
			t.note(fmt.Sprintf("added %q", title))
			t.leaveEdit(target.Node)
		}

	case FieldDelete:
		if !strings.EqualFold(text, "yes") {
			t.note("nothing deleted")
			t.leaveEdit(target.Node)
			return
		}
		var n content.Node
		if n, err = t.m.content.Get(target.Node); err != nil {
			break
		}
		var removed int
		if removed, err = t.m.content.Delete(target.Node); err == nil {
			t.record(store.AuditDeleteNode, target.Node, map[string]any{"title": n.Title, "removed": removed})
			msg := fmt.Sprintf("deleted %q", n.Title)
			if removed > 1 {
				msg += fmt.Sprintf(" and %s below it", plural(removed-1, "topic"))
			}
			t.note(msg)
			t.leaveEdit(n.Parent)
		}
	}

	if err != nil {
		t.editFailed(target, err)
	}
}

func (t *turn) editFailed(target EditTarget, err error) {
	switch {
	case content.IsStorageError(err):
		t.m.logger.Error("saving content failed", "user", t.s.UserID, "node", target.Node, "field", target.Field, "error", err)
		t.record(store.AuditStorageFailed, target.Node, map[string]any{"field": string(target.Field), "error": err.Error()})
		t.note("could not save the change, nothing was modified. Send it again or /back")
	case errors.Is(err, content.ErrInvalid):
		t.note("invalid input, the title cannot be blank")
	case errors.Is(err, content.ErrNotFound):
		t.toRoot(StateAdminMenu)
		t.note(noteNodeGone)
	case errors.Is(err, content.ErrForbidden):
		t.leaveEdit(target.Node)
		t.note(noteRootDelete)
	default:
		t.m.logger.Error("content edit failed", "user", t.s.UserID, "node", target.Node, "error", err)
		t.note("something went wrong, try again")
	}
}

// splitChild reads "title" or "title | body".
func splitChild(text string) (title, body string) {
	title, body, _ = strings.Cut(text, "|")
	return strings.TrimSpace(title), strings.TrimSpace(body)
}

func (t *turn) render() chat.Reply {
	var r chat.Reply
	switch {
	case t.reply != nil:
		r = *t.reply
	case t.s.State == StateLoginPending:
		r = t.loginPrompt()
	case t.s.State == StateAdminEditing:
		r = t.editPrompt()
	default:
		r = t.nodeReply()
	}
	r.Notes = append(t.notes, r.Notes...)
	r.Admin = t.s.State.IsAdmin()
	return r
}

func (t *turn) nodeReply() chat.Reply {
	view, err := t.m.content.View(t.s.CurrentNode())
	if errors.Is(err, content.ErrNotFound) && t.s.Node != "" {
		t.s.Node = ""
		t.note(noteNodeGone)
		view, err = t.m.content.View(content.RootID)
	}
	if err != nil {
		t.m.logger.Error("rendering topic", "user", t.s.UserID, "node", t.s.CurrentNode(), "error", err)
		return chat.Reply{Title: "Unavailable", Body: "The help topics are unavailable right now."}
	}
	return chat.Reply{
		Title:   view.Node.Title,
		Body:    view.Node.Body,
		Options: menu.Render(view, t.s.State.IsAdmin()),
	}
}

func (t *turn) loginPrompt() chat.Reply {
	body := "Send the admin password, or /cancel to go back."
	if t.s.Locked(t.now) {
		body = fmt.Sprintf("Login is locked for %s. Send /cancel to go back.", formatWait(t.s.LockedUntil.Sub(t.now)))
	}
	return chat.Reply{Title: "Admin login", Body: body}
}

func (t *turn) editPrompt() chat.Reply {
	target := *t.s.Pending
	n, err := t.m.content.Get(target.Node)
	if err != nil {
		t.toRoot(StateAdminMenu)
		t.note(noteNodeGone)
		return t.nodeReply()
	}

	switch target.Field {
	case FieldTitle:
		return chat.Reply{
			Title: "Edit title",
			Body:  fmt.Sprintf("Current title:\n%s\n\nSend the new title, or /back to keep it.", n.Title),
		}
	case FieldBody:
		return chat.Reply{
			Title: "Edit text",
			Body:  fmt.Sprintf("Current text of %q:\n%s\n\nSend the new text, or /back to keep it.", n.Title, n.Body),
		}
	case FieldChild:
		return chat.Reply{
			Title: "Add topic",
			Body:  fmt.Sprintf("Send the title of the new topic under %q, or \"title | text\" to set its text as well. /back to skip.", n.Title),
		}
	default:
		question := fmt.Sprintf("Delete %q", n.Title)
		if below, err := t.m.content.Descendants(n.ID); err == nil && below > 0 {
			question += fmt.Sprintf(" and %s below it", plural(below, "topic"))
		}
		return chat.Reply{
			Title: "Delete topic",
			Body:  question + "? Send yes to confirm, anything else keeps it.",
		}
	}
}

func (t *turn) treeReply() *chat.Reply {
	var b strings.Builder
	t.m.content.Walk(func(n content.Node, depth int) bool {
		fmt.Fprintf(&b, "%s- %s (%s)\n", strings.Repeat("  ", depth), n.Title, n.ID)
		return true
	})
	current := t.nodeReply()
	return &chat.Reply{
		Title:   "Topic tree",
		Body:    strings.TrimRight(b.String(), "\n"),
		Options: current.Options,
	}
}

func (t *turn) auditReply() *chat.Reply {
	if t.m.audit == nil {
		t.note("the audit log is not enabled")
		return nil
	}

	entries, err := t.m.audit.ListAuditLog(t.ctx, store.AuditFilter{Limit: auditListLimit})
	if err != nil {
		t.m.logger.Error("listing audit log", "user", t.s.UserID, "error", err)
		t.note("could not read the audit log")
		return nil
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s %s", e.Timestamp.UTC().Format("2006-01-02 15:04"), e.Actor, e.Action)
		if e.Target != "" {
			b.WriteString(" " + e.Target)
		}
		b.WriteString("\n")
	}
	body := strings.TrimRight(b.String(), "\n")
	if body == "" {
		body = "No entries yet."
	}

	current := t.nodeReply()
	return &chat.Reply{Title: "Recent admin activity", Body: body, Options: current.Options}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// formatWait renders a positive wait rounded up to whole seconds.
func formatWait(d time.Duration) string {
	d = (d + time.Second - 1).Truncate(time.Second)
	if d < time.Second {
		d = time.Second
	}
	switch {
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	case d < time.Minute:
		return plural(int(d/time.Second), "second")
	default:
		return d.String()
	}
}
