package waha

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bagasta/waha-relay/config"
	"github.com/bagasta/waha-relay/domains/session"
	"github.com/bagasta/waha-relay/domains/webhook"
	pkgError "github.com/bagasta/waha-relay/pkg/error"
	"github.com/bagasta/waha-relay/pkg/metrics"
	"github.com/bagasta/waha-relay/pkg/utils"
	"github.com/sirupsen/logrus"
)

// State is the orchestrator's lifecycle position for the managed session.
type State string

const (
	StateIdle                 State = "IDLE"
	StateCheckingReachability State = "CHECKING_REACHABILITY"
	StateEnsuringSession      State = "ENSURING_SESSION"
	StateMonitoringAuth       State = "MONITORING_AUTH"
	StateConvergingWebhook    State = "CONVERGING_WEBHOOK"
	StateSteady               State = "STEADY"
	StateLogoutLocked         State = "LOGOUT_LOCKED"
)

// Broadcaster receives lifecycle events for real-time subscribers.
// Fire-and-forget: the orchestrator never waits on delivery.
type Broadcaster interface {
	Broadcast(event string, payload map[string]any)
}

// Options are the orchestration tunables. DefaultOptions reads them from the
// config package; tests construct tighter ones.
type Options struct {
	SessionName      string
	PollInterval     time.Duration
	MonitorTimeout   time.Duration
	LogoutWait       time.Duration
	ConvergeAttempts int
	ConvergeInterval time.Duration
	AutoManage       bool
}

func DefaultOptions() Options {
	return Options{
		SessionName:      config.WahaSessionName,
		PollInterval:     config.AuthMonitorInterval,
		MonitorTimeout:   config.AuthMonitorTimeout,
		LogoutWait:       config.LogoutStopWait,
		ConvergeAttempts: config.ConvergeRetryAttempts,
		ConvergeInterval: config.ConvergeRetryInterval,
		AutoManage:       config.WahaAutoManage,
	}
}

// Orchestrator drives the managed session through creation, authentication
// and webhook convergence, and keeps doing so across gateway restarts. One
// orchestrator instance manages exactly one session; all mutable state lives
// on the instance so tests can build isolated ones.
type Orchestrator struct {
	gateway  Gateway
	tracker  *StatusTracker
	limiter  *AttemptLimiter
	engine   *ConvergenceEngine
	recovery *RecoveryManager
	targets  webhook.ITargetUsecase

	opts Options

	sessionRepo session.ISessionRepository
	broadcaster Broadcaster

	mu         sync.Mutex
	state      State
	locked     bool
	monitors   map[string]struct{}
	lastStatus session.Status
}

func NewOrchestrator(gateway Gateway, tracker *StatusTracker, limiter *AttemptLimiter, engine *ConvergenceEngine, recovery *RecoveryManager, targets webhook.ITargetUsecase, opts Options) *Orchestrator {
	o := &Orchestrator{
		gateway:  gateway,
		tracker:  tracker,
		limiter:  limiter,
		engine:   engine,
		recovery: recovery,
		targets:  targets,
		opts:     opts,
		state:    StateIdle,
		monitors: make(map[string]struct{}),
	}
	if recovery != nil {
		recovery.SetRecreate(o.recreateSession)
		recovery.SetGiveUpHook(func(kind ErrorKind, err error) {
			o.broadcast("relay.recovery.gave_up", map[string]any{
				"kind":  string(kind),
				"error": err.Error(),
			})
		})
	}
	return o
}

// SetSessionRepo wires optional persistence for session status history.
func (o *Orchestrator) SetSessionRepo(repo session.ISessionRepository) {
	o.sessionRepo = repo
}

// SetBroadcaster wires the optional real-time event sink.
func (o *Orchestrator) SetBroadcaster(b Broadcaster) {
	o.broadcaster = b
}

func (o *Orchestrator) SessionName() string {
	return o.opts.SessionName
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Locked() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.locked
}

// Start runs the startup sequence: reachability probe, session ensure, then
// the background authentication monitor. Session-management failures are
// logged and swallowed so they never take down the webhook-receiving HTTP
// surface.
func (o *Orchestrator) Start(ctx context.Context) {
	if !o.opts.AutoManage {
		logrus.Info("Session auto-management disabled; skipping orchestration")
		return
	}

	o.setState(StateCheckingReachability)
	if _, err := o.gateway.ListSessions(ctx); err != nil {
		// Reachability failure does not block progress; the session
		// existence check below is the real gate.
		logrus.Warnf("Gateway reachability probe failed: %v", err)
	}

	o.setState(StateEnsuringSession)
	if err := o.EnsureSessionStarted(ctx); err != nil {
		logrus.Errorf("Failed ensuring session %s: %v", o.opts.SessionName, err)
		if o.recovery != nil {
			o.recovery.Recover(ctx, err, o.opts.SessionName, nil)
		}
	}

	o.StartAuthMonitor(ctx)
}

// EnsureSessionStarted makes sure the remote session exists and is starting
// or started. A logout lock blocks it entirely until Unlock.
func (o *Orchestrator) EnsureSessionStarted(ctx context.Context) error {
	if o.Locked() {
		return pkgError.LockedError("session is logout-locked; request a QR code to unlock")
	}

	info, err := o.tracker.GetInfo(ctx, o.opts.SessionName)
	if err != nil {
		return err
	}

	switch info.Status {
	case session.StatusNotFound:
		return o.createSession(ctx)
	case session.StatusFailed:
		// Targeted restart, distinct from recreation.
		logrus.Warnf("Session %s is FAILED; requesting restart", o.opts.SessionName)
		if err := o.gateway.RestartSession(ctx, o.opts.SessionName); err != nil {
			return err
		}
		o.tracker.Invalidate(o.opts.SessionName)
		return nil
	default:
		// Present in any other status: leave it alone.
		return nil
	}
}

// createSession creates the remote session with the webhook configuration
// embedded in the creation payload, which closes the race window between
// session start and webhook registration.
func (o *Orchestrator) createSession(ctx context.Context) error {
	payload := o.createPayload()
	_, err := o.gateway.CreateSession(ctx, payload)
	if err != nil {
		if Classify(err) == ErrConflictAlreadyExists {
			logrus.Infof("Session %s already exists; continuing", o.opts.SessionName)
			o.tracker.Invalidate(o.opts.SessionName)
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			// Transient conflict distinct from already-exists: fall back
			// to the plain start call.
			logrus.Warnf("Session creation conflicted (409); falling back to start: %v", err)
			if startErr := o.gateway.StartSession(ctx, o.opts.SessionName); startErr != nil {
				return startErr
			}
			o.tracker.Invalidate(o.opts.SessionName)
			return nil
		}
		return err
	}
	o.tracker.Invalidate(o.opts.SessionName)
	logrus.Infof("Session %s created", o.opts.SessionName)
	return nil
}

func (o *Orchestrator) createPayload() *session.CreatePayload {
	payload := &session.CreatePayload{
		Name:  o.opts.SessionName,
		Start: true,
	}
	if candidates := o.targets.CandidateURLs(); len(candidates) > 0 {
		payload.Config = &session.Config{
			Webhooks: []session.Webhook{{
				URL:     candidates[0],
				Events:  webhook.RequiredEvents,
				Retries: &session.WebhookRetries{Attempts: 3, DelaySeconds: 2},
			}},
		}
	}
	return payload
}

// StartAuthMonitor launches the background authentication monitor for the
// managed session. Calling it again while one is running is a no-op.
func (o *Orchestrator) StartAuthMonitor(ctx context.Context) {
	name := o.opts.SessionName

	o.mu.Lock()
	if _, running := o.monitors[name]; running {
		o.mu.Unlock()
		return
	}
	o.monitors[name] = struct{}{}
	o.state = StateMonitoringAuth
	o.mu.Unlock()

	logrus.Infof("Authentication monitor started for session %s", name)
	go o.monitorAuth(ctx, name)
}

func (o *Orchestrator) monitorAuth(ctx context.Context, name string) {
	defer func() {
		o.mu.Lock()
		delete(o.monitors, name)
		o.mu.Unlock()
	}()

	deadline := time.Now().Add(o.opts.MonitorTimeout)
	// Two consecutive WORKING observations debounce status flapping.
	stable := utils.NewStableCounter(2)

	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Authentication monitor for %s cancelled", name)
			return
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			logrus.Warnf("Authentication monitor for %s timed out after %s", name, o.opts.MonitorTimeout)
			return
		}
		if o.Locked() {
			logrus.Infof("Authentication monitor for %s stopping: session logout-locked", name)
			return
		}

		status, err := o.tracker.GetStatus(ctx, name)
		if err != nil {
			// Transient blips must not kill the monitor.
			logrus.Debugf("Status poll for %s failed: %v", name, err)
			continue
		}

		o.noteStatus(status)

		if status == session.StatusNotFound {
			stable.Reset()
			// The counter carries attempt state across ticks; exhaustion
			// turns auto-start into a logged no-op.
			o.limiter.AttemptStart(name, "auto-start", func() error {
				return o.EnsureSessionStarted(ctx)
			})
			continue
		}
		if status.Terminal() {
			logrus.Warnf("Authentication monitor for %s exiting on terminal status %s", name, status)
			return
		}

		if !stable.Observe(status == session.StatusWorking) {
			continue
		}

		o.setState(StateConvergingWebhook)
		if err := o.convergeWithRetry(ctx, name); err != nil {
			logrus.Errorf("Webhook convergence failed for %s: %v", name, err)
			if o.recovery != nil {
				o.recovery.Recover(ctx, err, name, nil)
			}
			return
		}
		o.setState(StateSteady)
		logrus.Infof("Session %s authenticated and webhook ensured; monitor stopping", name)
		return
	}
}

// convergeWithRetry runs webhook convergence with a flat retry schedule:
// failures right after authentication are usually propagation delays, so a
// constant interval beats exponential backoff here.
func (o *Orchestrator) convergeWithRetry(ctx context.Context, name string) error {
	schedule := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(o.opts.ConvergeInterval),
		uint64(o.opts.ConvergeAttempts-1),
	)

	return backoff.Retry(func() error {
		result, err := o.engine.Ensure(ctx, name, webhook.RequiredEvents, o.targets.CandidateURLs())
		if err != nil {
			return err
		}
		if result.Deferred {
			return errors.New("session no longer authenticated; deferring webhook convergence")
		}
		o.persistEnsured(true)
		o.broadcast("webhook.ensured", map[string]any{
			"session": name,
			"method":  result.Method,
			"cached":  result.Cached,
		})
		return nil
	}, backoff.WithContext(schedule, ctx))
}

// EnsureWebhook is the on-demand convergence entrypoint (REST surface).
func (o *Orchestrator) EnsureWebhook(ctx context.Context) (ConvergeResult, error) {
	if o.Locked() {
		return ConvergeResult{}, pkgError.LockedError("session is logout-locked")
	}
	result, err := o.engine.Ensure(ctx, o.opts.SessionName, webhook.RequiredEvents, o.targets.CandidateURLs())
	if err == nil && result.Ensured {
		o.persistEnsured(true)
	}
	return result, err
}

// HandleStatusEvent processes a session.status webhook delivery. Push
// deliveries shortcut the polling cadence: the cached status is dropped and,
// on WORKING, the monitor (re)starts so convergence runs with the usual
// debounce.
func (o *Orchestrator) HandleStatusEvent(ctx context.Context, name string, status session.Status) {
	if name != o.opts.SessionName {
		logrus.Debugf("Ignoring status event for unmanaged session %s", name)
		return
	}
	o.tracker.Invalidate(name)
	o.noteStatus(status)
	if status == session.StatusWorking && !o.Locked() {
		o.StartAuthMonitor(ctx)
	}
}

// StopAndLock stops the remote session and enters the logout lock: all
// auto-start and auto-webhook behavior is suppressed until Unlock. The lock
// survives every state; only an explicit unlock (the QR request path) clears
// it.
func (o *Orchestrator) StopAndLock(ctx context.Context) error {
	name := o.opts.SessionName

	o.mu.Lock()
	o.locked = true
	o.state = StateLogoutLocked
	o.mu.Unlock()
	logrus.Infof("Logout lock engaged for session %s", name)

	if err := o.gateway.StopSession(ctx, name); err != nil {
		logrus.Warnf("Stop request for %s failed: %v", name, err)
	}

	// Wait for the gateway to report the session gone or stopped.
	waitDeadline := time.Now().Add(o.opts.LogoutWait)
	for time.Now().Before(waitDeadline) {
		o.tracker.Invalidate(name)
		status, err := o.tracker.GetStatus(ctx, name)
		if err == nil && (status == session.StatusStopped || status == session.StatusNotFound) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.opts.PollInterval):
		}
	}

	o.engine.Invalidate(name)
	o.tracker.Invalidate(name)
	o.limiter.ResetSession(name)
	o.persistEnsured(false)
	o.noteStatus(session.StatusStopped)
	o.broadcast("session.locked", map[string]any{"session": name})
	return nil
}

// Unlock clears the logout lock. The documented trigger is a QR-code
// request, which signals the operator wants the session back.
func (o *Orchestrator) Unlock() {
	o.mu.Lock()
	wasLocked := o.locked
	o.locked = false
	if o.state == StateLogoutLocked {
		o.state = StateIdle
	}
	o.mu.Unlock()
	if wasLocked {
		logrus.Infof("Logout lock released for session %s", o.opts.SessionName)
	}
}

// recreateSession is the SESSION_NOT_WORKING recovery action: delete, then
// create with the webhook config embedded, then watch authentication again.
func (o *Orchestrator) recreateSession(ctx context.Context, name string) error {
	if err := o.gateway.DeleteSession(ctx, name); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			return err
		}
	}
	o.engine.Invalidate(name)
	o.tracker.Invalidate(name)

	if err := o.createSession(ctx); err != nil {
		return err
	}
	o.StartAuthMonitor(ctx)
	return nil
}

func (o *Orchestrator) setState(next State) {
	o.mu.Lock()
	if o.locked && next != StateLogoutLocked {
		// Logout lock is absorbing; nothing else may leave it.
		o.mu.Unlock()
		return
	}
	prev := o.state
	o.state = next
	o.mu.Unlock()
	if prev != next {
		logrus.Debugf("Orchestrator state %s -> %s", prev, next)
	}
}

// noteStatus records a status observation: logs transitions only (not every
// poll), updates the gauge, persists timestamps and broadcasts the change.
func (o *Orchestrator) noteStatus(status session.Status) {
	o.mu.Lock()
	prev := o.lastStatus
	o.lastStatus = status
	o.mu.Unlock()
	if prev == status {
		return
	}

	logrus.Infof("Session %s status: %s -> %s", o.opts.SessionName, orUnknown(prev), status)
	metrics.SetSessionWorking(status == session.StatusWorking)
	o.broadcast("session.status", map[string]any{
		"session": o.opts.SessionName,
		"status":  string(status),
	})

	if o.sessionRepo == nil {
		return
	}
	now := time.Now()
	rec, err := o.sessionRepo.Find(o.opts.SessionName)
	if err != nil || rec == nil {
		rec = &session.Record{Name: o.opts.SessionName, CreatedAt: now}
	}
	rec.Status = string(status)
	rec.UpdatedAt = now
	if status == session.StatusWorking {
		rec.LastConnectedAt = &now
	} else if status.Terminal() {
		rec.LastDisconnectedAt = &now
	}
	if err := o.sessionRepo.Upsert(rec); err != nil {
		logrus.Warnf("Failed persisting session record: %v", err)
	}
}

func (o *Orchestrator) persistEnsured(ensured bool) {
	if o.sessionRepo == nil {
		return
	}
	rec, err := o.sessionRepo.Find(o.opts.SessionName)
	if err != nil || rec == nil {
		rec = &session.Record{Name: o.opts.SessionName, CreatedAt: time.Now()}
	}
	rec.WebhookEnsured = ensured
	rec.UpdatedAt = time.Now()
	if err := o.sessionRepo.Upsert(rec); err != nil {
		logrus.Warnf("Failed persisting webhook-ensured flag: %v", err)
	}
}

func (o *Orchestrator) broadcast(event string, payload map[string]any) {
	if o.broadcaster != nil {
		o.broadcaster.Broadcast(event, payload)
	}
}

func orUnknown(s session.Status) session.Status {
	if s == "" {
		return session.StatusUnknown
	}
	return s
}
