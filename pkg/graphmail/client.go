// Package graphmail lists unread mailbox messages through the Microsoft
// Graph REST API and normalizes them for downstream triage.
package graphmail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jaytaylor/html2text"
	"github.com/samber/lo"
)

const defaultGraphBase = "https://graph.microsoft.com/v1.0"

// Email is one unread message after normalization. Immutable once fetched.
type Email struct {
	FromName    string
	FromAddress string
	Subject     string
	ReceivedAt  time.Time
	Body        string
}

// FetchError reports a non-success response from the Graph API.
type FetchError struct {
	StatusCode int
	Message    string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("graph mail query failed with status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	logger    *log.Logger
	client    *http.Client
	graphBase string
	mailbox   string
	limit     int
	now       func() time.Time
}

// NewClient builds a fetcher for one mailbox. limit caps the batch size;
// older unread mail beyond the cap stays unread at the provider.
func NewClient(logger *log.Logger, mailbox string, limit int) *Client {
	return &Client{
		logger:    logger,
		client:    &http.Client{Timeout: 30 * time.Second},
		graphBase: defaultGraphBase,
		mailbox:   mailbox,
		limit:     limit,
		now:       time.Now,
	}
}

// FetchUnread returns unread inbox messages, newest first. A zero since
// fetches without a recency bound. Outbound mail from the mailbox itself is
// dropped so it never shows up as a new support request. An empty inbox is
// an empty slice, not an error.
func (c *Client) FetchUnread(ctx context.Context, token string, since time.Duration) ([]Email, error) {
	filter := "isRead eq false"
	if since > 0 {
		cutoff := c.now().Add(-since).UTC().Format(time.RFC3339)
		filter = fmt.Sprintf("%s and receivedDateTime ge %s", filter, cutoff)
	}

	query := url.Values{
		"$filter":  {filter},
		"$orderby": {"receivedDateTime desc"},
		"$top":     {fmt.Sprintf("%d", c.limit)},
		"$select":  {"subject,from,receivedDateTime,body"},
	}
	endpoint := fmt.Sprintf("%s/users/%s/mailFolders/inbox/messages?%s",
		c.graphBase, url.PathEscape(c.mailbox), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create messages request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send messages request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read messages response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{StatusCode: resp.StatusCode, Message: graphErrorMessage(body)}
	}

	var result struct {
		Value []graphMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}

	inbound := lo.Filter(result.Value, func(m graphMessage, _ int) bool {
		return !strings.EqualFold(m.From.EmailAddress.Address, c.mailbox)
	})

	emails := make([]Email, 0, len(inbound))
	for _, m := range inbound {
		emails = append(emails, c.normalize(m))
	}

	c.logger.Info("Fetched unread emails", "returned", len(result.Value), "after_self_filter", len(emails))
	return emails, nil
}

type graphMessage struct {
	Subject string `json:"subject"`
	From    struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	ReceivedDateTime time.Time `json:"receivedDateTime"`
	Body             struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

func (c *Client) normalize(m graphMessage) Email {
	content := m.Body.Content
	if strings.EqualFold(m.Body.ContentType, "html") {
		if text, err := html2text.FromString(content, html2text.Options{OmitLinks: true, TextOnly: true}); err == nil {
			content = text
		} else {
			c.logger.Warn("Failed to convert HTML body, keeping raw content", "subject", m.Subject, "error", err)
		}
	}

	return Email{
		FromName:    m.From.EmailAddress.Name,
		FromAddress: m.From.EmailAddress.Address,
		Subject:     m.Subject,
		ReceivedAt:  m.ReceivedDateTime,
		Body:        strings.TrimSpace(content),
	}
}

func graphErrorMessage(body []byte) string {
	var failure struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &failure); err == nil && failure.Error.Code != "" {
		return fmt.Sprintf("%s: %s", failure.Error.Code, failure.Error.Message)
	}
	return string(body)
}
