package waha

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AttemptLimiter bounds retries per (session, context) key with exponential
// backoff. It deliberately does not loop: each external trigger (a monitor
// tick, a webhook delivery) calls in once and the counter carries attempt
// state across calls. Give-up after the budget is silent apart from a log
// line; the caller decides independently whether that is fatal.
type AttemptLimiter struct {
	maxAttempts int
	baseDelay   time.Duration

	mu     sync.Mutex
	counts map[string]int

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewAttemptLimiter(maxAttempts int, baseDelay time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		counts:      make(map[string]int),
		sleep:       time.Sleep,
	}
}

// AttemptStart runs action once under the (sessionName, context) budget.
// Budget exhausted: log and return without attempting. A failure classified
// as "already exists" clears the counter, since the desired state is already
// in place. After the final failed attempt the counter stays at the cap, so
// only success, already-exists or ResetSession re-arm the key.
func (l *AttemptLimiter) AttemptStart(sessionName, context string, action func() error) {
	key := sessionName + "|" + context

	l.mu.Lock()
	count := l.counts[key]
	if count >= l.maxAttempts {
		l.mu.Unlock()
		logrus.Warnf("Attempt budget exhausted for %s (%d attempts); giving up", key, l.maxAttempts)
		return
	}
	l.counts[key] = count + 1
	l.mu.Unlock()

	l.sleep(l.baseDelay * (1 << count))

	err := action()
	if err == nil {
		l.clear(key)
		return
	}

	if Classify(err) == ErrConflictAlreadyExists {
		logrus.Infof("Attempt for %s hit already-exists; treating as success", key)
		l.clear(key)
		return
	}

	if count+1 >= l.maxAttempts {
		logrus.Errorf("Final attempt %d/%d failed for %s: %v", count+1, l.maxAttempts, key, err)
		return
	}
	logrus.Warnf("Attempt %d/%d failed for %s: %v", count+1, l.maxAttempts, key, err)
}

// Attempts reports the current counter for a key, mainly for tests and
// status introspection.
func (l *AttemptLimiter) Attempts(sessionName, context string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[sessionName+"|"+context]
}

// ResetSession clears every counter belonging to a session, e.g. on logout.
func (l *AttemptLimiter) ResetSession(sessionName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.counts {
		if strings.HasPrefix(key, sessionName+"|") {
			delete(l.counts, key)
		}
	}
}

func (l *AttemptLimiter) clear(key string) {
	l.mu.Lock()
	delete(l.counts, key)
	l.mu.Unlock()
}
