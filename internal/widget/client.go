// Package widget implements the embed-side runtime: the gateway client, the
// local fallback cache, the display scheduler, and the toast stack. Everything
// here degrades gracefully — a dead gateway or an empty cache means no
// notifications, never a crash of the host page.
package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/popkit/popkit/internal/model"
)

// Credentials identifies one embedded widget to the gateway.
type Credentials struct {
	SiteID       string
	WidgetID     string
	SiteAPIKey   string
	WidgetAPIKey string
}

// InitPayload is the gateway's initialization response: display configuration
// plus the fallback snapshot of recent events.
type InitPayload struct {
	SiteID         string             `json:"site_id"`
	WidgetConfig   model.WidgetConfig `json:"widget_config"`
	FallbackEvents []*model.Event     `json:"fallback_events"`
}

// Client talks to the gateway's embed API over HTTP/JSON.
type Client struct {
	baseURL    string
	creds      Credentials
	token      string
	httpClient *http.Client
}

// NewClient creates a client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewClient(baseURL string, creds Credentials) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{},
	}
}

// Token returns the capability token obtained by IssueToken, or "".
func (c *Client) Token() string { return c.token }

// BaseURL returns the gateway base URL the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// IssueToken exchanges the embed credentials for a capability token. The token
// is retained on the client and used for all subsequent calls.
func (c *Client) IssueToken(ctx context.Context) (string, error) {
	body := map[string]string{
		"site_id":   c.creds.SiteID,
		"widget_id": c.creds.WidgetID,
	}
	headers := map[string]string{
		"x-site-api-key":   c.creds.SiteAPIKey,
		"x-widget-api-key": c.creds.WidgetAPIKey,
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tokens", headers, body, &resp); err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Token, nil
}

// Initialize fetches the widget configuration and fallback snapshot.
func (c *Client) Initialize(ctx context.Context) (*InitPayload, error) {
	var payload InitPayload
	if err := c.doJSON(ctx, http.MethodGet, "/v1/init", nil, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ReportEvent submits a new event under the client's token scope.
func (c *Client) ReportEvent(ctx context.Context, eventType string, eventData map[string]any, message model.RenderableMessage) error {
	body := map[string]any{
		"event_type": eventType,
	}
	if len(eventData) > 0 {
		body["event_data"] = eventData
	}
	if !message.IsZero() {
		body["message"] = message
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/events", nil, body, nil)
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON
// response. If result is nil, the response body is discarded.
func (c *Client) doJSON(ctx context.Context, method, path string, headers map[string]string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
