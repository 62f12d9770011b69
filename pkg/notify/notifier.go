// Package notify formats session entries as Telegram HTML messages and
// pushes them to the operator's chat.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/halcyondesk/mailroom/pkg/session"
)

// previewLimit bounds the body preview; Telegram rejects over-length
// payloads, and the full text is one /suggest_response away anyway.
const previewLimit = 500

// Sender is the one chat operation the notifier needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Notifier struct {
	logger *log.Logger
	sender Sender
	chatID int64
}

func NewNotifier(logger *log.Logger, sender Sender, chatID int64) *Notifier {
	return &Notifier{
		logger: logger,
		sender: sender,
		chatID: chatID,
	}
}

// Render builds the notification for one entry. Every user-controlled field
// is escaped before it meets the literal HTML fragments.
func (n *Notifier) Render(entry session.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📩 <b>New support email #%d</b>\n", entry.Handle)
	fmt.Fprintf(&b, "👤 From: %s &lt;%s&gt;\n", html.EscapeString(entry.Email.FromName), html.EscapeString(entry.Email.FromAddress))
	fmt.Fprintf(&b, "📝 Subject: %s\n", html.EscapeString(entry.Email.Subject))
	if !entry.Email.ReceivedAt.IsZero() {
		fmt.Fprintf(&b, "🕒 Received: %s\n", entry.Email.ReceivedAt.Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "\n%s\n", html.EscapeString(Truncate(entry.Email.Body, previewLimit)))
	fmt.Fprintf(&b, "\nReply with /suggest_response %d &lt;instructions&gt; to draft a response.", entry.Handle)
	return b.String()
}

// Push delivers one message to the operator chat. Delivery failures are
// logged and swallowed so a rejected payload cannot abort a fetch run.
func (n *Notifier) Push(ctx context.Context, text string) {
	if err := n.sender.SendMessage(ctx, n.chatID, text); err != nil {
		n.logger.Error("Failed to deliver chat message", "chat_id", n.chatID, "error", err)
	}
}

// Truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
