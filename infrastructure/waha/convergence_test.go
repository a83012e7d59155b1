package waha

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bagasta/waha-relay/domains/session"
	"github.com/bagasta/waha-relay/domains/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHookURL = "http://relay.local:8080/webhooks/waha"

func workingGateway() *fakeGateway {
	gateway := newFakeGateway()
	gateway.getSessionFn = func(ctx context.Context, name string) (*session.Info, error) {
		return &session.Info{Name: name, Status: session.StatusWorking}, nil
	}
	return gateway
}

func satisfyingRegistration() []webhook.Registration {
	return []webhook.Registration{{
		URL:    testHookURL,
		Events: webhook.RequiredEvents,
	}}
}

func TestEnsureDefersWhenNotAuthenticated(t *testing.T) {
	gateway := newFakeGateway()
	gateway.getSessionFn = func(ctx context.Context, name string) (*session.Info, error) {
		return &session.Info{Name: name, Status: session.StatusScanQRCode}, nil
	}
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	result, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.False(t, result.Ensured)
	assert.Equal(t, 0, gateway.callCount("PostWebhook"), "a non-working session must not be written to")
}

func TestEnsureRequiresCandidates(t *testing.T) {
	gateway := workingGateway()
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	_, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, nil)
	assert.Error(t, err)
}

func TestEnsurePreexistingRegistration(t *testing.T) {
	gateway := workingGateway()
	gateway.getWebhooksFn = func(ctx context.Context, name string) ([]webhook.Registration, error) {
		return satisfyingRegistration(), nil
	}
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	result, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	require.NoError(t, err)
	assert.True(t, result.Ensured)
	assert.Equal(t, "preexisting", result.Method)
	assert.Equal(t, 0, gateway.callCount("PostWebhook"))
	assert.Equal(t, 0, gateway.callCount("PatchSessionConfig"))
}

func TestEnsureWritesViaWebhookEndpoint(t *testing.T) {
	gateway := workingGateway()
	registered := false
	gateway.getWebhooksFn = func(ctx context.Context, name string) ([]webhook.Registration, error) {
		if registered {
			return satisfyingRegistration(), nil
		}
		return nil, nil
	}
	gateway.postWebhookFn = func(ctx context.Context, name string, hook session.Webhook) error {
		registered = true
		return nil
	}
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	result, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	require.NoError(t, err)
	assert.True(t, result.Ensured)
	assert.Equal(t, "webhook-endpoint", result.Method)

	require.Len(t, gateway.postedHooks, 1)
	assert.Equal(t, testHookURL, gateway.postedHooks[0].URL)
	assert.Equal(t, webhook.RequiredEvents, gateway.postedHooks[0].Events)
	assert.Equal(t, 0, gateway.callCount("PatchSessionConfig"))
}

func TestEnsureRetriesWithMinimalEvents(t *testing.T) {
	gateway := workingGateway()
	registered := false
	gateway.getWebhooksFn = func(ctx context.Context, name string) ([]webhook.Registration, error) {
		if registered {
			return []webhook.Registration{{URL: testHookURL, Events: webhook.MinimalEvents}}, nil
		}
		return nil, nil
	}
	gateway.postWebhookFn = func(ctx context.Context, name string, hook session.Webhook) error {
		if len(hook.Events) > len(webhook.MinimalEvents) {
			return &APIError{StatusCode: http.StatusBadRequest, Message: "Unknown event type"}
		}
		registered = true
		return nil
	}
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	result, err := engine.Ensure(context.Background(), "default", webhook.MinimalEvents, []string{testHookURL})
	require.NoError(t, err)
	assert.True(t, result.Ensured)

	require.Len(t, gateway.postedHooks, 2)
	assert.Equal(t, webhook.MinimalEvents, gateway.postedHooks[1].Events)
}

func TestEnsureFallsBackToConfigPatch(t *testing.T) {
	gateway := workingGateway()
	patched := false
	gateway.getWebhooksFn = func(ctx context.Context, name string) ([]webhook.Registration, error) {
		if patched {
			return satisfyingRegistration(), nil
		}
		return nil, nil
	}
	gateway.postWebhookFn = func(ctx context.Context, name string, hook session.Webhook) error {
		return &APIError{StatusCode: http.StatusNotFound, Message: "Cannot POST /webhooks"}
	}
	gateway.patchConfigFn = func(ctx context.Context, name string, cfg *session.Config) error {
		patched = true
		return nil
	}
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	result, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	require.NoError(t, err)
	assert.True(t, result.Ensured)
	assert.Equal(t, "config-patch", result.Method)
}

func TestEnsureTrustsVerificationOverWriteError(t *testing.T) {
	gateway := workingGateway()
	verifications := 0
	gateway.getWebhooksFn = func(ctx context.Context, name string) ([]webhook.Registration, error) {
		verifications++
		// The write errored but the registration landed anyway.
		if verifications >= 2 {
			return satisfyingRegistration(), nil
		}
		return nil, nil
	}
	gateway.postWebhookFn = func(ctx context.Context, name string, hook session.Webhook) error {
		return errors.New("request timed out")
	}
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	result, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	require.NoError(t, err)
	assert.True(t, result.Ensured)
	assert.Equal(t, "assumed", result.Method)
}

func TestEnsureFailsWhenAllStrategiesExhausted(t *testing.T) {
	gateway := workingGateway()
	gateway.postWebhookFn = func(ctx context.Context, name string, hook session.Webhook) error {
		return &APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	}
	gateway.patchConfigFn = func(ctx context.Context, name string, cfg *session.Config) error {
		return &APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	}
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	_, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	assert.ErrorIs(t, err, ErrWebhookConvergenceFailed)
}

func TestEnsureIsIdempotent(t *testing.T) {
	gateway := workingGateway()
	gateway.getWebhooksFn = func(ctx context.Context, name string) ([]webhook.Registration, error) {
		return satisfyingRegistration(), nil
	}
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	first, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	require.NoError(t, err)
	require.True(t, first.Ensured)

	second, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	require.NoError(t, err)
	assert.True(t, second.Ensured)
	assert.True(t, second.Cached)

	// Repeated convergence must stay read-only.
	assert.Equal(t, 0, gateway.callCount("PostWebhook"))
	assert.Equal(t, 0, gateway.callCount("PatchSessionConfig"))
}

func TestEnsureReconvergesAfterRemoteDrift(t *testing.T) {
	gateway := workingGateway()
	drifted := false
	gateway.getWebhooksFn = func(ctx context.Context, name string) ([]webhook.Registration, error) {
		if drifted {
			return nil, nil
		}
		return satisfyingRegistration(), nil
	}
	engine := NewConvergenceEngine(gateway, NewStatusTracker(gateway, time.Minute))

	_, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	require.NoError(t, err)
	require.True(t, engine.IsEnsured("default"))

	// Someone wiped the remote registration behind our back.
	drifted = true
	gateway.postWebhookFn = func(ctx context.Context, name string, hook session.Webhook) error {
		drifted = false
		return nil
	}

	result, err := engine.Ensure(context.Background(), "default", webhook.RequiredEvents, []string{testHookURL})
	require.NoError(t, err)
	assert.True(t, result.Ensured)
	assert.False(t, result.Cached)
	assert.Equal(t, 1, gateway.callCount("PostWebhook"))
}
