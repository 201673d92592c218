package neris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"nerisbridge/internal/config"
)

// refreshBuffer is how long before expiry a cached token is considered
// stale, so a token never expires mid-submission.
const refreshBuffer = 60 * time.Second

// minTokenLifetime floors the lifetime reported by the token endpoint.
const minTokenLifetime = 60 * time.Second

// TokenProvider acquires and caches one OAuth bearer token for the process.
// The read-check-replace sequence is guarded by a mutex held across the
// refresh, so concurrent submissions at expiry produce a single token fetch.
type TokenProvider struct {
	cfg  config.Config
	http *http.Client
	now  func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenProvider(cfg config.Config, httpClient *http.Client) *TokenProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenProvider{cfg: cfg, http: httpClient, now: time.Now}
}

// Token returns the static token when one is configured, the cached token
// while it remains valid, or a freshly fetched one.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if static := strings.TrimSpace(p.cfg.StaticToken); static != "" {
		return static, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.now().Add(refreshBuffer).Before(p.expiresAt) {
		return p.token, nil
	}

	token, lifetime, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}
	p.token = token
	p.expiresAt = p.now().Add(lifetime)
	return token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Challenge   string `json:"challenge"`
}

func (p *TokenProvider) fetch(ctx context.Context) (string, time.Duration, error) {
	clientID := strings.TrimSpace(p.cfg.ClientID)
	clientSecret := strings.TrimSpace(p.cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return "", 0, errors.New("client credentials are not configured (set NERIS_CLIENT_ID and NERIS_CLIENT_SECRET)")
	}

	form := url.Values{}
	form.Set("grant_type", p.cfg.GrantType)
	if p.cfg.GrantType == config.GrantPassword {
		username := strings.TrimSpace(p.cfg.Username)
		password := strings.TrimSpace(p.cfg.Password)
		if username == "" || password == "" {
			return "", 0, errors.New("password grant requires NERIS_USERNAME and NERIS_PASSWORD")
		}
		form.Set("username", username)
		form.Set("password", password)
	}
	if scope := strings.TrimSpace(p.cfg.Scope); scope != "" {
		form.Set("scope", scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("token endpoint response unreadable: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if strings.Contains(msg, "invalid_client") {
			return "", 0, fmt.Errorf("token endpoint rejected the client (%d): %s%s", resp.StatusCode, msg, environmentMismatchHint(p.cfg.BaseURL))
		}
		return "", 0, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, msg)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("token endpoint returned a non-JSON body: %s", strings.TrimSpace(string(body)))
	}
	if parsed.AccessToken == "" {
		if parsed.Challenge != "" {
			return "", 0, fmt.Errorf("token endpoint returned auth challenge %q; interactive challenges are not supported by this proxy", parsed.Challenge)
		}
		return "", 0, errors.New("token endpoint returned no access token")
	}

	lifetime := time.Duration(parsed.ExpiresIn) * time.Second
	if lifetime < minTokenLifetime {
		lifetime = minTokenLifetime
	}
	return parsed.AccessToken, lifetime, nil
}

// environmentMismatchHint points operators at the likely cause of an
// invalid_client failure: credentials issued for the other NERIS environment.
func environmentMismatchHint(baseURL string) string {
	switch strings.TrimRight(baseURL, "/") {
	case config.ProductionBaseURL:
		return " (hint: these credentials may belong to the test environment, " + config.TestBaseURL + ")"
	case config.TestBaseURL:
		return " (hint: these credentials may belong to the production environment, " + config.ProductionBaseURL + ")"
	}
	return ""
}
