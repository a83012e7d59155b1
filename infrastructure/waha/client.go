package waha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bagasta/waha-relay/config"
	"github.com/bagasta/waha-relay/domains/session"
	"github.com/bagasta/waha-relay/domains/webhook"
)

// Per-call timeouts. Session create/delete get the longest budget because
// the gateway spins browser state up and down for them.
const (
	timeoutProbe   = 5 * time.Second
	timeoutDefault = 10 * time.Second
	timeoutLong    = 30 * time.Second
)

// APIError carries the gateway's HTTP status and message body so callers can
// classify failures (422 conflicts, 404 not-found) without string-matching
// transport errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("waha: %d %s", e.StatusCode, e.Message)
}

// Gateway is the session- and webhook-management surface of the WAHA REST
// API. Retries are the orchestrator's responsibility; the client performs a
// single request per call.
type Gateway interface {
	ListSessions(ctx context.Context) ([]session.Info, error)
	GetSession(ctx context.Context, name string) (*session.Info, error)
	CreateSession(ctx context.Context, payload *session.CreatePayload) (*session.Info, error)
	StartSession(ctx context.Context, name string) error
	StopSession(ctx context.Context, name string) error
	RestartSession(ctx context.Context, name string) error
	LogoutSession(ctx context.Context, name string) error
	DeleteSession(ctx context.Context, name string) error
	GetQR(ctx context.Context, name string) (contentType string, body []byte, err error)
	GetWebhooks(ctx context.Context, name string) ([]webhook.Registration, error)
	PostWebhook(ctx context.Context, name string, hook session.Webhook) error
	PatchSessionConfig(ctx context.Context, name string, cfg *session.Config) error
	SendText(ctx context.Context, name, chatID, text string) error
	SendSeen(ctx context.Context, name, chatID string) error
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeoutLong,
		},
	}
}

// NewClientFromConfig builds a client from the runtime config vars.
func NewClientFromConfig() *Client {
	return NewClient(config.WahaBaseURL, config.WahaAPIKey)
}

func (c *Client) ListSessions(ctx context.Context) ([]session.Info, error) {
	var out []session.Info
	err := c.doJSON(ctx, timeoutProbe, http.MethodGet, "/api/sessions", nil, &out)
	return out, err
}

func (c *Client) GetSession(ctx context.Context, name string) (*session.Info, error) {
	var out session.Info
	if err := c.doJSON(ctx, timeoutDefault, http.MethodGet, "/api/sessions/"+name, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSession(ctx context.Context, payload *session.CreatePayload) (*session.Info, error) {
	var out session.Info
	if err := c.doJSON(ctx, timeoutLong, http.MethodPost, "/api/sessions", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartSession(ctx context.Context, name string) error {
	return c.doJSON(ctx, timeoutLong, http.MethodPost, "/api/sessions/"+name+"/start", nil, nil)
}

func (c *Client) StopSession(ctx context.Context, name string) error {
	return c.doJSON(ctx, timeoutDefault, http.MethodPost, "/api/sessions/"+name+"/stop", nil, nil)
}

func (c *Client) RestartSession(ctx context.Context, name string) error {
	return c.doJSON(ctx, timeoutLong, http.MethodPost, "/api/sessions/"+name+"/restart", nil, nil)
}

func (c *Client) LogoutSession(ctx context.Context, name string) error {
	return c.doJSON(ctx, timeoutDefault, http.MethodPost, "/api/sessions/"+name+"/logout", nil, nil)
}

func (c *Client) DeleteSession(ctx context.Context, name string) error {
	return c.doJSON(ctx, timeoutLong, http.MethodDelete, "/api/sessions/"+name, nil, nil)
}

func (c *Client) GetQR(ctx context.Context, name string) (string, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutDefault)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/api/"+name+"/auth/qr", nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Accept", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, &APIError{StatusCode: resp.StatusCode, Message: apiMessage(body)}
	}
	return resp.Header.Get("Content-Type"), body, nil
}

func (c *Client) GetWebhooks(ctx context.Context, name string) ([]webhook.Registration, error) {
	var out []webhook.Registration
	err := c.doJSON(ctx, timeoutDefault, http.MethodGet, "/api/sessions/"+name+"/webhooks", nil, &out)
	return out, err
}

func (c *Client) PostWebhook(ctx context.Context, name string, hook session.Webhook) error {
	return c.doJSON(ctx, timeoutDefault, http.MethodPost, "/api/sessions/"+name+"/webhooks", hook, nil)
}

// PatchSessionConfig writes a webhook-scoped config fragment. It never sends
// a full session replace, which could restart the session.
func (c *Client) PatchSessionConfig(ctx context.Context, name string, cfg *session.Config) error {
	body := map[string]any{"config": cfg}
	return c.doJSON(ctx, timeoutDefault, http.MethodPatch, "/api/sessions/"+name, body, nil)
}

func (c *Client) SendText(ctx context.Context, name, chatID, text string) error {
	body := map[string]any{
		"session": name,
		"chatId":  chatID,
		"text":    text,
	}
	return c.doJSON(ctx, timeoutLong, http.MethodPost, "/api/sendText", body, nil)
}

func (c *Client) SendSeen(ctx context.Context, name, chatID string) error {
	body := map[string]any{
		"session": name,
		"chatId":  chatID,
	}
	return c.doJSON(ctx, timeoutDefault, http.MethodPost, "/api/sendSeen", body, nil)
}

func (c *Client) doJSON(ctx context.Context, timeout time.Duration, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: apiMessage(body)}
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("waha: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	return req, nil
}

// apiMessage extracts the message field from a gateway error body, falling
// back to the raw body so classification keeps working on plain-text errors.
func apiMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return strings.TrimSpace(string(body))
}
