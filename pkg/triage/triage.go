// Package triage runs the fetch-and-notify workflow: acquire a Graph token,
// list unread mail, replace the session batch and push one notification per
// entry to the operator chat.
package triage

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/charmbracelet/log"

	"github.com/halcyondesk/mailroom/pkg/graphmail"
	"github.com/halcyondesk/mailroom/pkg/session"
)

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Fetcher interface {
	FetchUnread(ctx context.Context, token string, since time.Duration) ([]graphmail.Email, error)
}

type Notifier interface {
	Render(entry session.Entry) string
	Push(ctx context.Context, text string)
}

type Service struct {
	logger   *log.Logger
	tokens   TokenSource
	fetcher  Fetcher
	store    *session.Store
	notifier Notifier
}

func NewService(logger *log.Logger, tokens TokenSource, fetcher Fetcher, store *session.Store, notifier Notifier) *Service {
	return &Service{
		logger:   logger,
		tokens:   tokens,
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
	}
}

// Run executes one fetch-and-notify pass and returns the new batch size.
// Provider failures are reported to the operator chat and returned; an empty
// inbox is reported as such and is not an error. The prior batch survives a
// failed fetch untouched.
func (s *Service) Run(ctx context.Context, since time.Duration) (int, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.logger.Error("Token acquisition failed", "error", err)
		s.notifier.Push(ctx, fmt.Sprintf("🔒 Mail provider authentication failed: %s", html.EscapeString(err.Error())))
		return 0, err
	}

	emails, err := s.fetcher.FetchUnread(ctx, token, since)
	if err != nil {
		s.logger.Error("Unread fetch failed", "error", err)
		s.notifier.Push(ctx, fmt.Sprintf("⚠️ Could not fetch unread emails: %s", html.EscapeString(err.Error())))
		return 0, err
	}

	if len(emails) == 0 {
		// Handles are only valid relative to the most recent fetch, so an
		// empty fetch still replaces (clears) the batch.
		s.store.Replace(nil)
		s.logger.Info("No unread emails", "since", since)
		s.notifier.Push(ctx, "📭 No unread support emails.")
		return 0, nil
	}

	n := s.store.Replace(emails)
	s.logger.Info("Replaced session batch", "size", n)

	for _, entry := range s.store.Snapshot() {
		s.notifier.Push(ctx, s.notifier.Render(entry))
	}

	return n, nil
}
