package notify

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/halcyondesk/mailroom/pkg/graphmail"
	"github.com/halcyondesk/mailroom/pkg/session"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, text)
	return f.err
}

func createTestLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func TestRenderEscapesUserContent(t *testing.T) {
	n := NewNotifier(createTestLogger(), &fakeSender{}, 1)
	entry := session.Entry{
		Handle: 2,
		Email: graphmail.Email{
			FromName:    "Evil <script>",
			FromAddress: "evil@example.com",
			Subject:     "1 < 2 & *bold* _text_",
			Body:        "body with <b>tags</b> & ampersands",
		},
	}

	msg := n.Render(entry)

	for _, raw := range []string{"<script>", "<b>tags</b>", "Subject: 1 < 2"} {
		if strings.Contains(msg, raw) {
			t.Errorf("unescaped user content %q in message:\n%s", raw, msg)
		}
	}
	for _, escaped := range []string{"&lt;script&gt;", "&lt;b&gt;tags&lt;/b&gt;", "*bold* _text_"} {
		if !strings.Contains(msg, escaped) {
			t.Errorf("expected %q in message:\n%s", escaped, msg)
		}
	}
	// The literal formatting fragments survive.
	if !strings.Contains(msg, "<b>New support email #2</b>") {
		t.Errorf("bold header missing:\n%s", msg)
	}
	if !strings.Contains(msg, "/suggest_response 2") {
		t.Errorf("suggest hint missing:\n%s", msg)
	}
}

func TestRenderTruncatesLongBodies(t *testing.T) {
	n := NewNotifier(createTestLogger(), &fakeSender{}, 1)
	entry := session.Entry{
		Handle: 1,
		Email:  graphmail.Email{Body: strings.Repeat("a", 2000)},
	}

	msg := n.Render(entry)

	if strings.Contains(msg, strings.Repeat("a", 501)) {
		t.Errorf("body preview longer than limit")
	}
	if !strings.Contains(msg, strings.Repeat("a", 500)+"…") {
		t.Errorf("expected 500-rune preview with ellipsis marker")
	}
}

func TestTruncateShortStringsUntouched(t *testing.T) {
	if got := Truncate("short", 500); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	// Rune-safe: multibyte content must not be split mid-rune.
	if got := Truncate("äääää", 3); got != "äää…" {
		t.Errorf("expected rune-aware cut, got %q", got)
	}
}

func TestPushSwallowsDeliveryErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("payload rejected")}
	n := NewNotifier(createTestLogger(), sender, 1)

	// Must not panic or propagate.
	n.Push(context.Background(), "hello")

	if len(sender.sent) != 1 {
		t.Errorf("expected one send attempt, got %d", len(sender.sent))
	}
}
