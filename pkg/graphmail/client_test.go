package graphmail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func createTestLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

const messagesPayload = `{
	"value": [
		{
			"subject": "Cannot log in",
			"from": {"emailAddress": {"name": "Ada Customer", "address": "ada@example.com"}},
			"receivedDateTime": "2025-03-01T10:30:00Z",
			"body": {"contentType": "html", "content": "<p>Hello,<br>I <b>cannot</b> log in.</p>"}
		},
		{
			"subject": "Re: your ticket",
			"from": {"emailAddress": {"name": "Support", "address": "support@acme.test"}},
			"receivedDateTime": "2025-03-01T10:00:00Z",
			"body": {"contentType": "text", "content": "outbound copy"}
		},
		{
			"subject": "Invoice question",
			"from": {"emailAddress": {"name": "Bob Buyer", "address": "bob@example.com"}},
			"receivedDateTime": "2025-03-01T09:00:00Z",
			"body": {"contentType": "text", "content": "  Where is my invoice?  "}
		}
	]
}`

func newTestClient(serverURL string) *Client {
	c := NewClient(createTestLogger(), "support@acme.test", 5)
	c.graphBase = serverURL
	return c
}

func TestFetchUnreadFiltersAndNormalizes(t *testing.T) {
	var gotQuery string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, messagesPayload)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	emails, err := c.FetchUnread(context.Background(), "tok-1", 0)
	if err != nil {
		t.Fatalf("FetchUnread: %v", err)
	}

	if gotAuth != "Bearer tok-1" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if !strings.Contains(gotQuery, "isRead+eq+false") {
		t.Errorf("expected unread filter in query, got %q", gotQuery)
	}
	if !strings.Contains(gotQuery, "%24top=5") {
		t.Errorf("expected batch cap in query, got %q", gotQuery)
	}

	// Self-mail from support@acme.test is dropped.
	if len(emails) != 2 {
		t.Fatalf("expected 2 emails after self filter, got %d", len(emails))
	}
	for _, e := range emails {
		if strings.EqualFold(e.FromAddress, "support@acme.test") {
			t.Errorf("self mail leaked into results: %+v", e)
		}
	}

	// Provider order (newest first) is preserved.
	if emails[0].Subject != "Cannot log in" || emails[1].Subject != "Invoice question" {
		t.Errorf("unexpected order: %q then %q", emails[0].Subject, emails[1].Subject)
	}

	// HTML body became plain text, plain body was trimmed.
	if strings.Contains(emails[0].Body, "<") {
		t.Errorf("HTML not stripped: %q", emails[0].Body)
	}
	if !strings.Contains(emails[0].Body, "cannot") {
		t.Errorf("body content lost: %q", emails[0].Body)
	}
	if emails[1].Body != "Where is my invoice?" {
		t.Errorf("expected trimmed body, got %q", emails[1].Body)
	}
}

func TestFetchUnreadSinceWindow(t *testing.T) {
	var gotFilter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("$filter")
		fmt.Fprint(w, `{"value": []}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.now = func() time.Time { return time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC) }

	emails, err := c.FetchUnread(context.Background(), "tok", 6*time.Hour)
	if err != nil {
		t.Fatalf("FetchUnread: %v", err)
	}
	if len(emails) != 0 {
		t.Errorf("expected empty result, got %d", len(emails))
	}
	if !strings.Contains(gotFilter, "receivedDateTime ge 2025-03-02T06:00:00Z") {
		t.Errorf("expected recency bound in filter, got %q", gotFilter)
	}
}

func TestFetchUnreadEmptyInboxIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": []}`)
	}))
	defer server.Close()

	emails, err := newTestClient(server.URL).FetchUnread(context.Background(), "tok", 0)
	if err != nil {
		t.Fatalf("expected nil error for empty inbox, got %v", err)
	}
	if len(emails) != 0 {
		t.Errorf("expected no emails, got %d", len(emails))
	}
}

func TestFetchUnreadProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"code": "ErrorAccessDenied", "message": "Access is denied."}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchUnread(context.Background(), "tok", 0)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", fetchErr.StatusCode)
	}
	if !strings.Contains(fetchErr.Message, "ErrorAccessDenied") {
		t.Errorf("expected provider code in message, got %q", fetchErr.Message)
	}
}
