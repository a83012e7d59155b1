package waha

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bagasta/waha-relay/domains/session"
	"github.com/bagasta/waha-relay/domains/webhook"
	"github.com/bagasta/waha-relay/pkg/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrWebhookConvergenceFailed means every configuration strategy failed and
// the verification read did not find the required registration either.
var ErrWebhookConvergenceFailed = errors.New("webhook convergence failed")

// ConvergeResult reports how convergence concluded.
type ConvergeResult struct {
	Ensured  bool   `json:"ensured"`
	Cached   bool   `json:"cached"`
	Deferred bool   `json:"deferred"`
	Method   string `json:"method,omitempty"`
}

// ConvergenceEngine makes the session's registered webhook configuration
// match a desired (url, events) target. The gateway exposes several
// inconsistent APIs for the same logical write, so the engine walks an
// ordered strategy list and trusts an independent verification read over any
// individual write's status.
type ConvergenceEngine struct {
	gateway Gateway
	tracker *StatusTracker

	group singleflight.Group

	mu      sync.Mutex
	ensured map[string]bool

	strategies []convergeStrategy
}

type convergeStrategy struct {
	name  string
	apply func(ctx context.Context, sessionName, url string, events []string) error
}

func NewConvergenceEngine(gateway Gateway, tracker *StatusTracker) *ConvergenceEngine {
	e := &ConvergenceEngine{
		gateway: gateway,
		tracker: tracker,
		ensured: make(map[string]bool),
	}
	e.strategies = []convergeStrategy{
		{name: "webhook-endpoint", apply: e.applyWebhookEndpoint},
		{name: "config-patch", apply: e.applyConfigPatch},
		// A full session update strategy is deliberately excluded: writing
		// the whole session object can restart or stop the session.
	}
	return e
}

// Ensure converges the session's webhook registration onto one of the
// candidate URLs with at least the required events. It refuses to touch a
// session that is not WORKING (returns Deferred) since configuration writes
// against a half-created session can destabilize it. Concurrent calls for
// the same session share one in-flight run.
func (e *ConvergenceEngine) Ensure(ctx context.Context, sessionName string, required []string, candidates []string) (ConvergeResult, error) {
	if len(candidates) == 0 {
		return ConvergeResult{}, errors.New("no candidate webhook urls configured")
	}

	authenticated, err := e.tracker.IsAuthenticated(ctx, sessionName)
	if err != nil {
		return ConvergeResult{}, err
	}
	if !authenticated {
		logrus.Debugf("Webhook convergence deferred: session %s is not WORKING", sessionName)
		return ConvergeResult{Deferred: true}, nil
	}

	v, err, _ := e.group.Do(sessionName, func() (any, error) {
		return e.converge(ctx, sessionName, required, candidates)
	})
	if err != nil {
		return ConvergeResult{}, err
	}
	return v.(ConvergeResult), nil
}

func (e *ConvergenceEngine) converge(ctx context.Context, sessionName string, required, candidates []string) (ConvergeResult, error) {
	metrics.IncConvergenceRuns()

	// Fast path: a cached "ensured" is only trusted after re-verifying,
	// because another task may have mutated the remote state since.
	if e.isEnsured(sessionName) {
		if e.verify(ctx, sessionName, required, candidates) {
			return ConvergeResult{Ensured: true, Cached: true}, nil
		}
		logrus.Warnf("Cached webhook state for %s no longer verifies; re-converging", sessionName)
		e.Invalidate(sessionName)
	}

	// A registration may already satisfy the target even before any write.
	if e.verify(ctx, sessionName, required, candidates) {
		e.markEnsured(sessionName)
		return ConvergeResult{Ensured: true, Method: "preexisting"}, nil
	}

	url := candidates[0]
	for _, strategy := range e.strategies {
		err := strategy.apply(ctx, sessionName, url, required)
		if err != nil {
			logrus.Warnf("Webhook strategy %s failed for %s: %v", strategy.name, sessionName, err)
		}
		// Verify regardless of the write's status: some gateway APIs
		// apply the change but answer ambiguously.
		if e.verify(ctx, sessionName, required, candidates) {
			method := strategy.name
			if err != nil {
				method = "assumed"
			}
			e.markEnsured(sessionName)
			logrus.Infof("Webhook ensured for %s via %s", sessionName, method)
			return ConvergeResult{Ensured: true, Method: method}, nil
		}
	}

	metrics.IncConvergenceErrors()
	return ConvergeResult{}, fmt.Errorf("%w: session %s, url %s", ErrWebhookConvergenceFailed, sessionName, url)
}

// applyWebhookEndpoint registers via the dedicated webhook endpoint, retrying
// once with the minimal event set if the gateway rejects the full one.
func (e *ConvergenceEngine) applyWebhookEndpoint(ctx context.Context, sessionName, url string, events []string) error {
	hook := session.Webhook{
		URL:     url,
		Events:  events,
		Retries: &session.WebhookRetries{Attempts: 3, DelaySeconds: 2},
	}
	err := e.gateway.PostWebhook(ctx, sessionName, hook)
	if err == nil {
		return nil
	}
	logrus.Warnf("Full-event webhook registration failed for %s, retrying with minimal set: %v", sessionName, err)
	hook.Events = webhook.MinimalEvents
	return e.gateway.PostWebhook(ctx, sessionName, hook)
}

// applyConfigPatch writes a webhook-scoped session config fragment.
func (e *ConvergenceEngine) applyConfigPatch(ctx context.Context, sessionName, url string, events []string) error {
	cfg := &session.Config{
		Webhooks: []session.Webhook{{URL: url, Events: events}},
	}
	return e.gateway.PatchSessionConfig(ctx, sessionName, cfg)
}

// verify re-reads the remote webhook list and checks the target is present.
func (e *ConvergenceEngine) verify(ctx context.Context, sessionName string, required, candidates []string) bool {
	registered, err := e.gateway.GetWebhooks(ctx, sessionName)
	if err != nil {
		logrus.Debugf("Webhook verification read failed for %s: %v", sessionName, err)
		return false
	}
	return webhook.Satisfies(registered, candidates, required)
}

// Invalidate forgets the ensured flag for a session (logout, restart).
func (e *ConvergenceEngine) Invalidate(sessionName string) {
	e.mu.Lock()
	delete(e.ensured, sessionName)
	e.mu.Unlock()
}

func (e *ConvergenceEngine) isEnsured(sessionName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensured[sessionName]
}

func (e *ConvergenceEngine) markEnsured(sessionName string) {
	e.mu.Lock()
	e.ensured[sessionName] = true
	e.mu.Unlock()
}

// IsEnsured exposes the cached convergence state for status endpoints.
func (e *ConvergenceEngine) IsEnsured(sessionName string) bool {
	return e.isEnsured(sessionName)
}
