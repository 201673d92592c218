package neris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"nerisbridge/internal/config"
)

// CallResult is the outcome of one NERIS API call. Non-2xx statuses are
// results, not errors: upstream failures pass through verbatim to the
// caller. Only transport failures are errors.
type CallResult struct {
	StatusCode int            `json:"status"`
	Body       map[string]any `json:"body"`
}

func (r CallResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Detail flattens the response's detail field to text, whatever shape the
// API chose for it.
func (r CallResult) Detail() string {
	v, ok := r.Body["detail"]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Client talks to the NERIS incident-reporting API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenProvider
}

func NewClient(cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		tokens:  NewTokenProvider(cfg, httpClient),
	}
}

func (c *Client) CreateIncident(ctx context.Context, entityID string, payload any) (CallResult, error) {
	return c.do(ctx, http.MethodPost, "/incident/"+url.PathEscape(entityID), payload)
}

func (c *Client) UpdateIncident(ctx context.Context, entityID, incidentID string, payload any) (CallResult, error) {
	return c.do(ctx, http.MethodPut, "/incident/"+url.PathEscape(entityID)+"/"+url.PathEscape(incidentID), payload)
}

func (c *Client) GetIncident(ctx context.Context, entityID, incidentID string) (CallResult, error) {
	return c.do(ctx, http.MethodGet, "/incident/"+url.PathEscape(entityID)+"/"+url.PathEscape(incidentID), nil)
}

func (c *Client) ValidateIncident(ctx context.Context, entityID string, payload any) (CallResult, error) {
	return c.do(ctx, http.MethodPost, "/incident/"+url.PathEscape(entityID)+"/validate", payload)
}

// ListEntities returns the entities accessible to the current token.
func (c *Client) ListEntities(ctx context.Context) (CallResult, error) {
	return c.do(ctx, http.MethodGet, "/entity", nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (CallResult, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return CallResult{}, err
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return CallResult{}, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return CallResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return CallResult{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CallResult{}, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	return CallResult{StatusCode: resp.StatusCode, Body: normalizeBody(raw)}, nil
}

// normalizeBody keeps diagnostic value for every response shape: a JSON
// object is used as-is, any other JSON value is wrapped under "data", and a
// non-JSON body is wrapped as {"raw": text} rather than discarded.
func normalizeBody(raw []byte) map[string]any {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return map[string]any{}
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return map[string]any{"raw": text}
	}
	if obj, ok := parsed.(map[string]any); ok {
		return obj
	}
	return map[string]any{"data": parsed}
}
