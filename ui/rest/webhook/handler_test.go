package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bagasta/waha-relay/domains/message"
	domainWebhook "github.com/bagasta/waha-relay/domains/webhook"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRelay struct {
	mu     sync.Mutex
	events []*message.WebhookEvent
}

func (c *captureRelay) HandleMessageEvent(evt *message.WebhookEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *captureRelay) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type secretTargets struct {
	secret string
}

func (s *secretTargets) Get() (*domainWebhook.Target, error) { return nil, nil }
func (s *secretTargets) Save(url, secret string) (*domainWebhook.Target, error) {
	return nil, nil
}
func (s *secretTargets) CandidateURLs() []string  { return nil }
func (s *secretTargets) Secret() string           { return s.secret }
func (s *secretTargets) SyncRuntimeConfig() error { return nil }

func newReceiverApp(relay *captureRelay, secret string) *fiber.App {
	app := fiber.New()
	InitRoutes(app, relay, nil, &secretTargets{secret: secret})
	return app
}

func postEvent(t *testing.T, app *fiber.App, secret string, event string, payload any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"id":      "evt-1",
		"event":   event,
		"session": "default",
		"payload": json.RawMessage(raw),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/waha", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	return resp
}

func TestReceiveRejectsBadSecret(t *testing.T) {
	relay := &captureRelay{}
	app := newReceiverApp(relay, "expected-secret")

	resp := postEvent(t, app, "wrong-secret", "message", message.Payload{From: "1@c.us", Body: "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, relay.count())
}

func TestReceiveAcceptsAndDispatchesMessage(t *testing.T) {
	relay := &captureRelay{}
	app := newReceiverApp(relay, "expected-secret")

	resp := postEvent(t, app, "expected-secret", "message", message.Payload{From: "1@c.us", Body: "hi"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out["received"])

	// Message handling is asynchronous behind the fast 200.
	assert.Eventually(t, func() bool {
		return relay.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestReceiveIgnoresUnknownEvents(t *testing.T) {
	relay := &captureRelay{}
	app := newReceiverApp(relay, "")

	resp := postEvent(t, app, "", "presence.update", map[string]string{"state": "online"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, relay.count())
}

func TestReceiveRejectsMalformedBody(t *testing.T) {
	relay := &captureRelay{}
	app := newReceiverApp(relay, "")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/waha", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
