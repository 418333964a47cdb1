package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const renewBefore = 2 * time.Minute

// TokenSource exchanges client credentials for a bearer token and caches it
// until shortly before expiry. Safe for concurrent use.
type TokenSource struct {
	apiBase      string
	clientID     string
	clientSecret string
	client       *http.Client
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource builds a token source against {apiBase}/v1/oauth2/token.
func NewTokenSource(apiBase, clientID, clientSecret string, client *http.Client) *TokenSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		apiBase:      strings.TrimRight(apiBase, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       client,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AccessToken returns a cached token or performs the client-credentials
// exchange when none is held or the held one is close to expiring.
func (ts *TokenSource) AccessToken(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Before(ts.expiresAt.Add(-renewBefore)) {
		return ts.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.apiBase+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(ts.clientID, ts.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("paypal token exchange: unexpected status %d", resp.StatusCode)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("paypal token exchange: decode response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("paypal token exchange: empty access_token")
	}

	ts.token = payload.AccessToken
	ts.expiresAt = ts.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return ts.token, nil
}
