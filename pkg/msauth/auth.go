// Package msauth acquires Microsoft Graph application tokens via the OAuth2
// client-credentials flow and caches them until shortly before expiry.
package msauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultLoginBase = "https://login.microsoftonline.com"
	graphScope       = "https://graph.microsoft.com/.default"

	// Tokens are treated as expired this long before the provider says so,
	// so a token handed to a caller is never already stale on the wire.
	expirySkew = time.Minute
)

// AuthError reports a rejected or malformed credential exchange.
type AuthError struct {
	StatusCode int
	Detail     string
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("credential exchange failed with status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("credential exchange failed: %s", e.Detail)
}

type Authenticator struct {
	logger       *log.Logger
	client       *http.Client
	loginBase    string
	tenantID     string
	clientID     string
	clientSecret string

	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewAuthenticator(logger *log.Logger, tenantID, clientID, clientSecret string) *Authenticator {
	return &Authenticator{
		logger:       logger,
		client:       &http.Client{Timeout: 30 * time.Second},
		loginBase:    defaultLoginBase,
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// Token returns a bearer token for Microsoft Graph, reusing the cached one
// while it is still comfortably within its lifetime.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Before(a.expiresAt) {
		return a.token, nil
	}

	token, expiresIn, err := a.exchange(ctx)
	if err != nil {
		return "", err
	}

	a.token = token
	a.expiresAt = a.now().Add(time.Duration(expiresIn)*time.Second - expirySkew)
	a.logger.Debug("Acquired Graph access token", "expires_in", expiresIn)
	return a.token, nil
}

func (a *Authenticator) exchange(ctx context.Context) (string, int, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
		"scope":         {graphScope},
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", a.loginBase, a.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("send token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			ErrorCode   string `json:"error"`
			Description string `json:"error_description"`
		}
		detail := string(body)
		if err := json.Unmarshal(body, &failure); err == nil && failure.ErrorCode != "" {
			detail = fmt.Sprintf("%s: %s", failure.ErrorCode, failure.Description)
		}
		return "", 0, &AuthError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", 0, &AuthError{Detail: fmt.Sprintf("malformed token response: %v", err)}
	}
	if result.AccessToken == "" {
		return "", 0, &AuthError{Detail: "token response missing access_token"}
	}

	return result.AccessToken, result.ExpiresIn, nil
}
