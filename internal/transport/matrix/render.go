// ABOUTME: Renders replies as Matrix message content
// ABOUTME: Markdown is converted to HTML with goldmark; the plain body stays readable

package matrix

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix/event"

	"github.com/2389/coven-guide/internal/chat"
)

// Markdown renders reply as a markdown document.
func Markdown(reply chat.Reply) string {
	var parts []string
	for _, note := range reply.Notes {
		parts = append(parts, "_"+note+"_")
	}
	if reply.Title != "" {
		title := "**" + reply.Title + "**"
		if reply.Admin {
			title = "`admin` " + title
		}
		parts = append(parts, title)
	}
	if reply.Body != "" {
		parts = append(parts, reply.Body)
	}
	if len(reply.Options) > 0 {
		var b strings.Builder
		for i, opt := range reply.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Label)
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// HTML converts markdown to the HTML used for formatted_body.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func messageContent(reply chat.Reply) (*event.MessageEventContent, error) {
	html, err := HTML(Markdown(reply))
	if err != nil {
		return nil, err
	}
	return &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          reply.PlainText(),
		Format:        event.FormatHTML,
		FormattedBody: html,
	}, nil
}
