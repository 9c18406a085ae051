// ABOUTME: Matrix transport for the help bot built on mautrix
// ABOUTME: Syncs room messages into inbound events and sends formatted replies

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-guide/internal/chat"
)

// ErrNoRoom is returned when replying to a user who has not written yet.
var ErrNoRoom = errors.New("no known room for user")

// networkTimeout bounds a single Matrix API call.
const networkTimeout = 30 * time.Second

const inboxSize = 64

// Config holds the Matrix account settings.
type Config struct {
	Homeserver   string
	UserID       string
	AccessToken  string
	AllowedUsers []string // empty allows everyone
}

// Transport connects the bot to a Matrix homeserver.
type Transport struct {
	client  *mautrix.Client
	self    id.UserID
	allowed map[id.UserID]bool
	inbox   chan chat.Inbound
	logger  *slog.Logger

	mu    sync.Mutex
	rooms map[string]id.RoomID // user id -> room of their latest message
}

// New creates a Matrix transport. It does not contact the homeserver until
// Run is called.
func New(cfg Config, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Homeserver == "" || cfg.UserID == "" || cfg.AccessToken == "" {
		return nil, errors.New("matrix homeserver, user_id and access_token are required")
	}

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	allowed := make(map[id.UserID]bool, len(cfg.AllowedUsers))
	for _, u := range cfg.AllowedUsers {
		allowed[id.UserID(u)] = true
	}

	return &Transport{
		client:  client,
		self:    id.UserID(cfg.UserID),
		allowed: allowed,
		inbox:   make(chan chat.Inbound, inboxSize),
		logger:  logger.With("component", "matrix"),
		rooms:   make(map[string]id.RoomID),
	}, nil
}

// Run syncs with the homeserver until ctx is cancelled.
func (t *Transport) Run(ctx context.Context) error {
	t.logger.Info("starting matrix transport",
		"homeserver", t.client.HomeserverURL.String(),
		"user_id", t.self.String(),
	)

	syncer, ok := t.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", t.client.Syncer)
	}
	// skip the backlog delivered by the first sync
	syncer.OnSync(t.client.DontProcessOldEvents)
	syncer.OnEventType(event.EventMessage, t.handleMessage)
	syncer.OnEventType(event.StateMember, t.handleMember)

	err := t.client.SyncWithContext(ctx)
	if ctx.Err() != nil {
		t.logger.Info("matrix transport stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("matrix sync failed: %w", err)
	}
	return nil
}

// Receive returns the next inbound message.
func (t *Transport) Receive(ctx context.Context) (chat.Inbound, error) {
	select {
	case in := <-t.inbox:
		return in, nil
	case <-ctx.Done():
		return chat.Inbound{}, ctx.Err()
	}
}

// Send posts reply to the room the user last wrote from.
func (t *Transport) Send(ctx context.Context, userID string, reply chat.Reply) error {
	t.mu.Lock()
	roomID, ok := t.rooms[userID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoom, userID)
	}

	content, err := messageContent(reply)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := t.client.SendMessageEvent(ctx, roomID, event.EventMessage, content); err != nil {
		return fmt.Errorf("sending to %s: %w", roomID, err)
	}
	return nil
}

func (t *Transport) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == t.self {
		return
	}
	if len(t.allowed) > 0 && !t.allowed[evt.Sender] {
		t.logger.Debug("ignoring message from non-allowed user", "sender", evt.Sender.String())
		return
	}

	msg, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || msg.MsgType != event.MsgText || msg.Body == "" {
		return
	}

	userID := evt.Sender.String()
	t.mu.Lock()
	t.rooms[userID] = evt.RoomID
	t.mu.Unlock()

	t.logger.Debug("received message",
		"room", evt.RoomID.String(),
		"sender", userID,
		"content", truncate(msg.Body, 50),
	)

	in := chat.Inbound{ID: evt.ID.String(), UserID: userID, Text: msg.Body}
	select {
	case t.inbox <- in:
	case <-ctx.Done():
	}
}

// handleMember joins rooms the bot is invited to.
func (t *Transport) handleMember(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != t.self.String() {
		return
	}
	if evt.Content.AsMember().Membership != event.MembershipInvite {
		return
	}
	if len(t.allowed) > 0 && !t.allowed[evt.Sender] {
		t.logger.Info("declining invite from non-allowed user", "room", evt.RoomID.String(), "sender", evt.Sender.String())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := t.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		t.logger.Error("failed to join room", "room", evt.RoomID.String(), "error", err)
		return
	}
	t.logger.Info("joined room", "room", evt.RoomID.String(), "inviter", evt.Sender.String())
}

// truncate shortens a string to the given max rune count, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
