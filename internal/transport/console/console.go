// ABOUTME: Line-oriented terminal transport for trying the bot locally
// ABOUTME: Reads one event per input line and prints coloured plain-text replies

package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/coven-guide/internal/chat"
)

// DefaultUserID identifies the single console user.
const DefaultUserID = "console"

// Transport reads events from r and writes replies to w.
type Transport struct {
	userID string
	out    io.Writer

	lines   chan string
	readErr error
	start   sync.Once
	in      io.Reader

	done      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{} // closed when the reader goroutine returns

	mu  sync.Mutex // guards out and seq
	seq int

	title  *color.Color
	note   *color.Color
	option *color.Color
	admin  *color.Color
	prompt *color.Color
}

// Option configures a Transport.
type Option func(*Transport)

// WithUserID sets the user id attached to inbound events.
func WithUserID(userID string) Option {
	return func(t *Transport) { t.userID = userID }
}

// WithoutColor disables ANSI colours regardless of the terminal.
func WithoutColor() Option {
	return func(t *Transport) {
		for _, c := range []*color.Color{t.title, t.note, t.option, t.admin, t.prompt} {
			c.DisableColor()
		}
	}
}

// New creates a console transport.
func New(r io.Reader, w io.Writer, opts ...Option) *Transport {
	t := &Transport{
		userID:  DefaultUserID,
		out:     w,
		in:      r,
		lines:   make(chan string),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		title:   color.New(color.FgCyan, color.Bold),
		note:    color.New(color.FgYellow),
		option:  color.New(color.FgGreen),
		admin:   color.New(color.FgMagenta, color.Bold),
		prompt:  color.New(color.FgHiBlack),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// read forwards input lines until the input ends or Close is called. A
// blocked read on the underlying reader only returns with its next line.
func (t *Transport) read() {
	defer close(t.stopped)
	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		select {
		case t.lines <- scanner.Text():
		case <-t.done:
			return
		}
	}
	t.readErr = scanner.Err()
	close(t.lines)
}

// Close stops the reader goroutine. Receive returns io.EOF afterwards.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// Receive returns the next non-blank input line. It returns io.EOF when
// input ends.
func (t *Transport) Receive(ctx context.Context) (chat.Inbound, error) {
	t.start.Do(func() { go t.read() })

	for {
		select {
		case line, ok := <-t.lines:
			if !ok {
				if t.readErr != nil {
					return chat.Inbound{}, fmt.Errorf("reading console input: %w", t.readErr)
				}
				return chat.Inbound{}, io.EOF
			}
			if line == "" {
				continue
			}
			t.mu.Lock()
			t.seq++
			id := "console-" + strconv.Itoa(t.seq)
			t.mu.Unlock()
			return chat.Inbound{ID: id, UserID: t.userID, Text: line}, nil
		case <-t.done:
			return chat.Inbound{}, io.EOF
		case <-ctx.Done():
			return chat.Inbound{}, ctx.Err()
		}
	}
}

// Send prints reply followed by an input prompt.
func (t *Transport) Send(ctx context.Context, userID string, reply chat.Reply) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.out
	for _, note := range reply.Notes {
		t.note.Fprintf(w, "» %s\n", note)
	}
	if len(reply.Notes) > 0 {
		fmt.Fprintln(w)
	}
	if reply.Title != "" {
		if reply.Admin {
			t.admin.Fprint(w, "[admin] ")
		}
		t.title.Fprintln(w, reply.Title)
	}
	if reply.Body != "" {
		fmt.Fprintf(w, "\n%s\n", reply.Body)
	}
	if len(reply.Options) > 0 {
		fmt.Fprintln(w)
		for i, opt := range reply.Options {
			t.option.Fprintf(w, "%2d. ", i+1)
			fmt.Fprintln(w, opt.Label)
		}
	}
	_, err := t.prompt.Fprint(w, "\n> ")
	return err
}
