// ABOUTME: Session state, edit targets and the timing policy for one chat user
// ABOUTME: Sessions are plain values; Manager.Handle returns the next one

package session

import (
	"time"

	"github.com/2389/coven-guide/internal/content"
)

// State is the conversation mode of a session.
type State string

const (
	StateBrowsing     State = "browsing"
	StateLoginPending State = "login_pending"
	StateAdminMenu    State = "admin_menu"
	StateAdminEditing State = "admin_editing"
)

// IsAdmin reports whether s is one of the elevated states.
func (s State) IsAdmin() bool {
	return s == StateAdminMenu || s == StateAdminEditing
}

// Field is what an AdminEditing session is waiting to receive.
type Field string

const (
	FieldTitle  Field = "title"
	FieldBody   Field = "body"
	FieldChild  Field = "child"
	FieldDelete Field = "delete"
)

// EditTarget names the node and field an admin is editing.
type EditTarget struct {
	Node  string
	Field Field
}

// Session is the conversation state of one user.
type Session struct {
	UserID string
	State  State
	// Node is the current topic. Empty means the root.
	Node  string
	Admin bool

	FailedLogins int
	LockedUntil  time.Time

	Pending *EditTarget // set only in StateAdminEditing

	LastSeen       time.Time
	ExpiresAt      time.Time
	AdminExpiresAt time.Time
}

// New returns a fresh session browsing the root.
func New(userID string, now time.Time, p Policy) Session {
	p = p.withDefaults()
	return Session{
		UserID:    userID,
		State:     StateBrowsing,
		LastSeen:  now,
		ExpiresAt: now.Add(p.SessionTTL),
	}
}

// CurrentNode returns the current node id with the root made explicit.
func (s Session) CurrentNode() string {
	if s.Node == "" {
		return content.RootID
	}
	return s.Node
}

// Locked reports whether admin login is refused at now.
func (s Session) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// Expired reports whether the registry may forget the session at now. A
// session with an active lockout is kept so the lockout cannot be shed by
// going quiet.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt) && !s.Locked(now)
}

func (s *Session) setNode(id string) {
	if id == content.RootID {
		id = ""
	}
	s.Node = id
}

// Policy holds the login and expiry limits applied by Manager.
type Policy struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	AdminIdleTimeout time.Duration
	SessionTTL       time.Duration
}

// Defaults used for zero Policy fields.
const (
	DefaultMaxLoginAttempts = 3
	DefaultLockoutDuration  = 5 * time.Minute
	DefaultAdminIdleTimeout = 15 * time.Minute
	DefaultSessionTTL       = 24 * time.Hour
)

// DefaultPolicy returns the standard limits.
func DefaultPolicy() Policy {
	return Policy{}.withDefaults()
}

func (p Policy) withDefaults() Policy {
	if p.MaxLoginAttempts <= 0 {
		p.MaxLoginAttempts = DefaultMaxLoginAttempts
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = DefaultLockoutDuration
	}
	if p.AdminIdleTimeout <= 0 {
		p.AdminIdleTimeout = DefaultAdminIdleTimeout
	}
	if p.SessionTTL <= 0 {
		p.SessionTTL = DefaultSessionTTL
	}
	return p
}
