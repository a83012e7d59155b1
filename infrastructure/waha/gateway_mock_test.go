package waha

import (
	"context"
	"sync"

	"github.com/bagasta/waha-relay/domains/session"
	"github.com/bagasta/waha-relay/domains/webhook"
)

// fakeGateway is a programmable Gateway. Unset functions behave as successful
// no-ops; every method records its call count under the method name.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	createdPayloads []*session.CreatePayload
	postedHooks     []session.Webhook
	patchedConfigs  []*session.Config

	listSessionsFn   func(ctx context.Context) ([]session.Info, error)
	getSessionFn     func(ctx context.Context, name string) (*session.Info, error)
	createSessionFn  func(ctx context.Context, payload *session.CreatePayload) (*session.Info, error)
	startSessionFn   func(ctx context.Context, name string) error
	stopSessionFn    func(ctx context.Context, name string) error
	restartSessionFn func(ctx context.Context, name string) error
	logoutSessionFn  func(ctx context.Context, name string) error
	deleteSessionFn  func(ctx context.Context, name string) error
	getQRFn          func(ctx context.Context, name string) (string, []byte, error)
	getWebhooksFn    func(ctx context.Context, name string) ([]webhook.Registration, error)
	postWebhookFn    func(ctx context.Context, name string, hook session.Webhook) error
	patchConfigFn    func(ctx context.Context, name string, cfg *session.Config) error
	sendTextFn       func(ctx context.Context, name, chatID, text string) error
	sendSeenFn       func(ctx context.Context, name, chatID string) error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: make(map[string]int)}
}

func (f *fakeGateway) record(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeGateway) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeGateway) ListSessions(ctx context.Context) ([]session.Info, error) {
	f.record("ListSessions")
	if f.listSessionsFn != nil {
		return f.listSessionsFn(ctx)
	}
	return nil, nil
}

func (f *fakeGateway) GetSession(ctx context.Context, name string) (*session.Info, error) {
	f.record("GetSession")
	if f.getSessionFn != nil {
		return f.getSessionFn(ctx, name)
	}
	return &session.Info{Name: name, Status: session.StatusWorking}, nil
}

func (f *fakeGateway) CreateSession(ctx context.Context, payload *session.CreatePayload) (*session.Info, error) {
	f.record("CreateSession")
	f.mu.Lock()
	f.createdPayloads = append(f.createdPayloads, payload)
	f.mu.Unlock()
	if f.createSessionFn != nil {
		return f.createSessionFn(ctx, payload)
	}
	return &session.Info{Name: payload.Name, Status: session.StatusStarting}, nil
}

func (f *fakeGateway) StartSession(ctx context.Context, name string) error {
	f.record("StartSession")
	if f.startSessionFn != nil {
		return f.startSessionFn(ctx, name)
	}
	return nil
}

func (f *fakeGateway) StopSession(ctx context.Context, name string) error {
	f.record("StopSession")
	if f.stopSessionFn != nil {
		return f.stopSessionFn(ctx, name)
	}
	return nil
}

func (f *fakeGateway) RestartSession(ctx context.Context, name string) error {
	f.record("RestartSession")
	if f.restartSessionFn != nil {
		return f.restartSessionFn(ctx, name)
	}
	return nil
}

func (f *fakeGateway) LogoutSession(ctx context.Context, name string) error {
	f.record("LogoutSession")
	if f.logoutSessionFn != nil {
		return f.logoutSessionFn(ctx, name)
	}
	return nil
}

func (f *fakeGateway) DeleteSession(ctx context.Context, name string) error {
	f.record("DeleteSession")
	if f.deleteSessionFn != nil {
		return f.deleteSessionFn(ctx, name)
	}
	return nil
}

func (f *fakeGateway) GetQR(ctx context.Context, name string) (string, []byte, error) {
	f.record("GetQR")
	if f.getQRFn != nil {
		return f.getQRFn(ctx, name)
	}
	return "image/png", []byte("qr"), nil
}

func (f *fakeGateway) GetWebhooks(ctx context.Context, name string) ([]webhook.Registration, error) {
	f.record("GetWebhooks")
	if f.getWebhooksFn != nil {
		return f.getWebhooksFn(ctx, name)
	}
	return nil, nil
}

func (f *fakeGateway) PostWebhook(ctx context.Context, name string, hook session.Webhook) error {
	f.record("PostWebhook")
	f.mu.Lock()
	f.postedHooks = append(f.postedHooks, hook)
	f.mu.Unlock()
	if f.postWebhookFn != nil {
		return f.postWebhookFn(ctx, name, hook)
	}
	return nil
}

func (f *fakeGateway) PatchSessionConfig(ctx context.Context, name string, cfg *session.Config) error {
	f.record("PatchSessionConfig")
	f.mu.Lock()
	f.patchedConfigs = append(f.patchedConfigs, cfg)
	f.mu.Unlock()
	if f.patchConfigFn != nil {
		return f.patchConfigFn(ctx, name, cfg)
	}
	return nil
}

func (f *fakeGateway) SendText(ctx context.Context, name, chatID, text string) error {
	f.record("SendText")
	if f.sendTextFn != nil {
		return f.sendTextFn(ctx, name, chatID, text)
	}
	return nil
}

func (f *fakeGateway) SendSeen(ctx context.Context, name, chatID string) error {
	f.record("SendSeen")
	if f.sendSeenFn != nil {
		return f.sendSeenFn(ctx, name, chatID)
	}
	return nil
}

// fakeTargets is a static ITargetUsecase for orchestrator and convergence
// tests.
type fakeTargets struct {
	urls   []string
	secret string
}

func (f *fakeTargets) Get() (*webhook.Target, error) { return nil, nil }
func (f *fakeTargets) Save(url, secret string) (*webhook.Target, error) {
	return &webhook.Target{URL: url, Secret: secret}, nil
}
func (f *fakeTargets) CandidateURLs() []string  { return f.urls }
func (f *fakeTargets) Secret() string           { return f.secret }
func (f *fakeTargets) SyncRuntimeConfig() error { return nil }
