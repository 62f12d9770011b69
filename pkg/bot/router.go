// Package bot hosts the Telegram side of the workflow: the long-poll update
// listener and the command router that drives fetches, suggestions and
// refinements.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/halcyondesk/mailroom/pkg/graphmail"
	"github.com/halcyondesk/mailroom/pkg/notify"
	"github.com/halcyondesk/mailroom/pkg/session"
)

const helpText = `<b>Commands</b>
/fetch_emails — fetch unread support emails
/fetch_recent &lt;hours&gt; — fetch unread emails from the last N hours
/suggest_response &lt;n&gt; &lt;instructions&gt; — draft a reply for email #n
/refine_response &lt;n&gt; &lt;instructions&gt; — rework the stored draft for email #n
/help — this message`

type DraftProvider interface {
	Draft(ctx context.Context, email graphmail.Email, instruction string) string
	Refine(ctx context.Context, previousDraft string, instruction string) string
}

type TriggerPublisher interface {
	PublishFetch(since time.Duration, source string) (string, error)
}

// Router turns one inbound command into one reply string. Fetches are
// published to the trigger bus; suggest and refine touch the session store
// directly and run on the caller's goroutine.
type Router struct {
	logger          *log.Logger
	store           *session.Store
	drafts          DraftProvider
	triggers        TriggerPublisher
	defaultLookback time.Duration
}

func NewRouter(logger *log.Logger, store *session.Store, drafts DraftProvider, triggers TriggerPublisher, defaultLookback time.Duration) *Router {
	return &Router{
		logger:          logger,
		store:           store,
		drafts:          drafts,
		triggers:        triggers,
		defaultLookback: defaultLookback,
	}
}

// Handle dispatches a message text. The returned reply is Telegram HTML;
// an empty string means nothing to send. Non-command chatter is ignored.
func (r *Router) Handle(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}

	command := strings.TrimPrefix(fields[0], "/")
	// Group chats append the bot name: /help@SupportMailroomBot.
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	args := fields[1:]

	switch command {
	case "start":
		return "Hello! I will notify you when new support emails arrive. Send /help for the command list."
	case "help":
		return helpText
	case "fetch_emails":
		return r.triggerFetch(r.defaultLookback)
	case "fetch_recent":
		return r.fetchRecent(args)
	case "suggest_response":
		return r.suggest(ctx, args)
	case "refine_response", "improve_response":
		return r.refine(ctx, args)
	default:
		return "Unknown command.\n\n" + helpText
	}
}

func (r *Router) triggerFetch(since time.Duration) string {
	runID, err := r.triggers.PublishFetch(since, "chat")
	if err != nil {
		r.logger.Error("Failed to publish fetch trigger", "error", err)
		return "⚠️ Could not start the fetch: " + html.EscapeString(err.Error())
	}
	r.logger.Info("Fetch triggered from chat", "run_id", runID, "since", since)
	return "🔄 Fetching unread emails…"
}

func (r *Router) fetchRecent(args []string) string {
	if len(args) != 1 {
		return "Usage: /fetch_recent &lt;hours&gt;"
	}
	hours, err := strconv.Atoi(args[0])
	if err != nil || hours <= 0 {
		return "Usage: /fetch_recent &lt;hours&gt; — hours must be a positive number"
	}
	return r.triggerFetch(time.Duration(hours) * time.Hour)
}

func (r *Router) suggest(ctx context.Context, args []string) string {
	handle, instruction, reply := parseHandleAndInstruction(args, "/suggest_response")
	if reply != "" {
		return reply
	}

	entry, err := r.store.Get(handle)
	if err != nil {
		return noSuchHandle(handle, err)
	}

	draft := r.drafts.Draft(ctx, entry.Email, instruction)
	if err := r.store.SetDraft(handle, entry.Generation, draft); err != nil {
		// The batch was replaced while drafting; the handle means a
		// different email now, so the draft is discarded.
		return noSuchHandle(handle, err)
	}

	return renderDraft(handle, entry.Email.Subject, draft,
		fmt.Sprintf("Refine with /refine_response %d &lt;instructions&gt;.", handle))
}

func (r *Router) refine(ctx context.Context, args []string) string {
	handle, instruction, reply := parseHandleAndInstruction(args, "/refine_response")
	if reply != "" {
		return reply
	}

	entry, err := r.store.Get(handle)
	if err != nil {
		return noSuchHandle(handle, err)
	}
	if entry.Draft == "" {
		return fmt.Sprintf("Email #%d has no draft yet. Use /suggest_response %d &lt;instructions&gt; first.", handle, handle)
	}

	draft := r.drafts.Refine(ctx, entry.Draft, instruction)
	if err := r.store.SetDraft(handle, entry.Generation, draft); err != nil {
		return noSuchHandle(handle, err)
	}

	return renderDraft(handle, entry.Email.Subject, draft,
		fmt.Sprintf("Refine again with /refine_response %d &lt;instructions&gt;.", handle))
}

func parseHandleAndInstruction(args []string, command string) (int, string, string) {
	usage := fmt.Sprintf("Usage: %s &lt;email number&gt; &lt;instructions&gt;", command)
	if len(args) < 1 {
		return 0, "", usage
	}
	handle, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", usage
	}
	instruction := strings.TrimSpace(strings.Join(args[1:], " "))
	if instruction == "" {
		return 0, "", usage
	}
	return handle, instruction, ""
}

func noSuchHandle(handle int, err error) string {
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Sprintf("No email #%d in the current batch. Run /fetch_emails to load unread emails.", handle)
	}
	return "⚠️ " + html.EscapeString(err.Error())
}

// draftLimit bounds the draft shown in chat; Telegram caps messages at 4096
// characters and the headers and hint need room too. The stored draft keeps
// its full length.
const draftLimit = 3500

func renderDraft(handle int, subject string, draft string, hint string) string {
	return fmt.Sprintf("🤖 <b>Draft for email #%d</b> (%s)\n\n%s\n\n%s",
		handle, html.EscapeString(subject), html.EscapeString(notify.Truncate(draft, draftLimit)), hint)
}
