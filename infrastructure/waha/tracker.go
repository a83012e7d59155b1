package waha

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bagasta/waha-relay/domains/session"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// StatusTracker answers "what state is the session in" with a short-lived
// cache so bursts of concurrent callers (webhook delivery + monitor tick)
// collapse into one gateway read.
type StatusTracker struct {
	gateway Gateway
	cache   *expirable.LRU[string, *session.Info]
}

func NewStatusTracker(gateway Gateway, ttl time.Duration) *StatusTracker {
	return &StatusTracker{
		gateway: gateway,
		cache:   expirable.NewLRU[string, *session.Info](8, nil, ttl),
	}
}

// GetInfo returns the gateway's view of the session. A remote 404 is not an
// error: it maps to the NOT_FOUND sentinel. Any other failure propagates and
// callers must treat it as "unknown state", not as a failed session.
func (t *StatusTracker) GetInfo(ctx context.Context, name string) (*session.Info, error) {
	if info, ok := t.cache.Get(name); ok {
		return info, nil
	}

	info, err := t.gateway.GetSession(ctx, name)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			info = &session.Info{Name: name, Status: session.StatusNotFound}
			t.cache.Add(name, info)
			return info, nil
		}
		return nil, err
	}
	if info.Status == "" {
		info.Status = session.StatusUnknown
	}
	t.cache.Add(name, info)
	return info, nil
}

func (t *StatusTracker) GetStatus(ctx context.Context, name string) (session.Status, error) {
	info, err := t.GetInfo(ctx, name)
	if err != nil {
		return session.StatusUnknown, err
	}
	return info.Status, nil
}

// IsAuthenticated is true iff the session is WORKING.
func (t *StatusTracker) IsAuthenticated(ctx context.Context, name string) (bool, error) {
	status, err := t.GetStatus(ctx, name)
	if err != nil {
		return false, err
	}
	return status == session.StatusWorking, nil
}

// Invalidate drops the cached view so the next read hits the gateway.
func (t *StatusTracker) Invalidate(name string) {
	t.cache.Remove(name)
}
