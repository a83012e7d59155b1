package waha

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bagasta/waha-relay/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// ErrorKind is the classification of a gateway failure.
type ErrorKind string

const (
	ErrConflictAlreadyExists ErrorKind = "CONFLICT_ALREADY_EXISTS"
	ErrConnectionRefused     ErrorKind = "CONNECTION_REFUSED"
	ErrTimeout               ErrorKind = "TIMEOUT"
	ErrSessionNotWorking     ErrorKind = "SESSION_NOT_WORKING"
	ErrUnknown               ErrorKind = "UNKNOWN"
)

// Classify maps an error onto the recovery taxonomy. Checks are ordered: a
// 422 without the already-exists wording falls through to the later checks.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
		if isAlreadyExistsMessage(apiErr.Message) {
			return ErrConflictAlreadyExists
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrConnectionRefused
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "econnrefused") {
		return ErrConnectionRefused
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "etimedout") {
		return ErrTimeout
	}

	if strings.Contains(msg, "not working") || strings.Contains(msg, "session status is not") {
		return ErrSessionNotWorking
	}

	return ErrUnknown
}

func isAlreadyExistsMessage(message string) bool {
	msg := strings.ToLower(message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "already started")
}

// ContainerManager is the local container host for the gateway, consulted
// only as a CONNECTION_REFUSED recovery step.
type ContainerManager interface {
	GetStatus(ctx context.Context) (ContainerStatus, error)
	EnsureRunning(ctx context.Context) (bool, error)
}

type ContainerStatus struct {
	Exists    bool
	IsRunning bool
}

// RecoveryManager maps error kinds onto bounded recovery actions. Each kind
// gets at most maxPerKind attempts within a rolling window; past that the
// error surfaces unrecovered instead of being retried indefinitely.
type RecoveryManager struct {
	gateway   Gateway
	container ContainerManager
	// recreate rebuilds the session from scratch (delete + create with
	// webhook config); wired by the orchestrator which owns the payload.
	recreate func(ctx context.Context, sessionName string) error

	maxPerKind int
	window     time.Duration

	mu          sync.Mutex
	occurrences map[ErrorKind]int
	windowStart time.Time

	// onGiveUp is invoked when the per-kind budget runs out, so the
	// caller can surface it (broadcast, alerting).
	onGiveUp func(kind ErrorKind, err error)

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewRecoveryManager(gateway Gateway, container ContainerManager, maxPerKind int, window time.Duration) *RecoveryManager {
	return &RecoveryManager{
		gateway:     gateway,
		container:   container,
		maxPerKind:  maxPerKind,
		window:      window,
		occurrences: make(map[ErrorKind]int),
		windowStart: time.Now(),
		sleep:       time.Sleep,
	}
}

// SetRecreate wires the full-recreation action used for SESSION_NOT_WORKING.
func (r *RecoveryManager) SetRecreate(fn func(ctx context.Context, sessionName string) error) {
	r.recreate = fn
}

// SetGiveUpHook wires the budget-exhausted notification.
func (r *RecoveryManager) SetGiveUpHook(fn func(kind ErrorKind, err error)) {
	r.onGiveUp = fn
}

// Recover classifies err and runs the recovery action for its kind. retry,
// when non-nil, is an idempotent replay of the failed operation used by the
// TIMEOUT path. Returns whether recovery succeeded.
func (r *RecoveryManager) Recover(ctx context.Context, err error, sessionName string, retry func() error) bool {
	kind := Classify(err)
	if !r.consumeBudget(kind) {
		logrus.Warnf("Recovery budget exhausted for %s within window; surfacing error: %v", kind, err)
		metrics.IncRecoveryGiveUps()
		if r.onGiveUp != nil {
			r.onGiveUp(kind, err)
		}
		return false
	}
	metrics.IncRecoveryAttempts()
	logrus.Infof("Attempting recovery for %s (session %s): %v", kind, sessionName, err)

	switch kind {
	case ErrConflictAlreadyExists:
		return r.recoverConflict(ctx, sessionName)
	case ErrConnectionRefused:
		return r.recoverConnectionRefused(ctx, sessionName)
	case ErrTimeout:
		return r.recoverTimeout(ctx, retry)
	case ErrSessionNotWorking:
		return r.recoverNotWorking(ctx, sessionName)
	default:
		return false
	}
}

// consumeBudget counts one occurrence of kind, clearing the whole map when
// the rolling window has elapsed.
func (r *RecoveryManager) consumeBudget(kind ErrorKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.windowStart) > r.window {
		r.occurrences = make(map[ErrorKind]int)
		r.windowStart = time.Now()
	}
	if r.occurrences[kind] >= r.maxPerKind {
		return false
	}
	r.occurrences[kind]++
	return true
}

func (r *RecoveryManager) recoverConflict(ctx context.Context, sessionName string) bool {
	if err := r.gateway.RestartSession(ctx, sessionName); err != nil {
		logrus.Warnf("Conflict recovery restart failed for %s: %v", sessionName, err)
		return false
	}
	return true
}

func (r *RecoveryManager) recoverConnectionRefused(ctx context.Context, sessionName string) bool {
	if r.container != nil {
		status, err := r.container.GetStatus(ctx)
		if err != nil {
			logrus.Warnf("Container status check failed: %v", err)
		} else if !status.IsRunning {
			ok, err := r.container.EnsureRunning(ctx)
			if err != nil {
				logrus.Warnf("Container start failed: %v", err)
				return false
			}
			return ok
		}
	}
	// Container is up (or unmanaged) yet the gateway refuses connections:
	// a session restart is the second line of defense.
	if err := r.gateway.RestartSession(ctx, sessionName); err != nil {
		logrus.Warnf("Connection-refused recovery restart failed for %s: %v", sessionName, err)
		return false
	}
	return true
}

func (r *RecoveryManager) recoverTimeout(ctx context.Context, retry func() error) bool {
	r.sleep(2 * time.Second)
	if retry != nil {
		if err := retry(); err != nil {
			logrus.Warnf("Timeout recovery retry failed: %v", err)
			return false
		}
		return true
	}
	if _, err := r.gateway.ListSessions(ctx); err != nil {
		logrus.Warnf("Gateway still unreachable after timeout: %v", err)
		return false
	}
	return true
}

func (r *RecoveryManager) recoverNotWorking(ctx context.Context, sessionName string) bool {
	if r.recreate != nil {
		if err := r.recreate(ctx, sessionName); err == nil {
			return true
		} else {
			logrus.Warnf("Session recreation failed for %s, falling back to restart: %v", sessionName, err)
		}
	}
	if err := r.gateway.RestartSession(ctx, sessionName); err != nil {
		logrus.Warnf("Not-working recovery restart failed for %s: %v", sessionName, err)
		return false
	}
	return true
}
