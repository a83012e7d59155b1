package waha

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(maxAttempts int) (*AttemptLimiter, *[]time.Duration) {
	limiter := NewAttemptLimiter(maxAttempts, time.Second)
	slept := &[]time.Duration{}
	limiter.sleep = func(d time.Duration) {
		*slept = append(*slept, d)
	}
	return limiter, slept
}

func TestAttemptLimiterExhaustsBudget(t *testing.T) {
	limiter, slept := newTestLimiter(3)

	invoked := 0
	action := func() error {
		invoked++
		return errors.New("start failed")
	}

	for i := 0; i < 5; i++ {
		limiter.AttemptStart("default", "auto-start", action)
	}

	assert.Equal(t, 3, invoked, "budget of 3 must cap the number of attempts")
	assert.Equal(t, 3, limiter.Attempts("default", "auto-start"))
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, *slept)
}

func TestAttemptLimiterSuccessClearsCounter(t *testing.T) {
	limiter, _ := newTestLimiter(3)

	limiter.AttemptStart("default", "auto-start", func() error {
		return errors.New("first failure")
	})
	assert.Equal(t, 1, limiter.Attempts("default", "auto-start"))

	limiter.AttemptStart("default", "auto-start", func() error {
		return nil
	})
	assert.Equal(t, 0, limiter.Attempts("default", "auto-start"))
}

func TestAttemptLimiterAlreadyExistsClearsCounter(t *testing.T) {
	limiter, _ := newTestLimiter(3)

	limiter.AttemptStart("default", "auto-start", func() error {
		return &APIError{StatusCode: http.StatusUnprocessableEntity, Message: "Session already exists"}
	})

	assert.Equal(t, 0, limiter.Attempts("default", "auto-start"))
}

func TestAttemptLimiterResetSession(t *testing.T) {
	limiter, _ := newTestLimiter(1)

	fail := func() error { return errors.New("nope") }
	limiter.AttemptStart("default", "auto-start", fail)
	limiter.AttemptStart("default", "webhook", fail)
	limiter.AttemptStart("other", "auto-start", fail)

	limiter.ResetSession("default")

	assert.Equal(t, 0, limiter.Attempts("default", "auto-start"))
	assert.Equal(t, 0, limiter.Attempts("default", "webhook"))
	assert.Equal(t, 1, limiter.Attempts("other", "auto-start"))
}

func TestAttemptLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(2)

	fail := func() error { return errors.New("nope") }
	limiter.AttemptStart("default", "auto-start", fail)
	limiter.AttemptStart("default", "auto-start", fail)

	invoked := 0
	limiter.AttemptStart("default", "recovery", func() error {
		invoked++
		return nil
	})

	assert.Equal(t, 1, invoked, "an exhausted key must not starve other contexts")
}
