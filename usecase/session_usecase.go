package usecase

import (
	"context"
	"encoding/base64"
	"errors"

	domainSession "github.com/bagasta/waha-relay/domains/session"
	"github.com/bagasta/waha-relay/infrastructure/waha"
	"github.com/sirupsen/logrus"
)

// SessionService maps the REST surface onto the orchestrator. It holds no
// state of its own; everything lives on the orchestrator so the lifecycle
// has a single owner.
type SessionService struct {
	orchestrator *waha.Orchestrator
	gateway      waha.Gateway
	tracker      *waha.StatusTracker
	engine       *waha.ConvergenceEngine
}

func NewSessionService(orchestrator *waha.Orchestrator, gateway waha.Gateway, tracker *waha.StatusTracker, engine *waha.ConvergenceEngine) domainSession.ISessionUsecase {
	return &SessionService{
		orchestrator: orchestrator,
		gateway:      gateway,
		tracker:      tracker,
		engine:       engine,
	}
}

func (s *SessionService) StartSession() (*domainSession.StatusResponse, error) {
	ctx := context.Background()
	if err := s.orchestrator.EnsureSessionStarted(ctx); err != nil {
		return nil, err
	}
	s.orchestrator.StartAuthMonitor(ctx)
	return s.GetStatus()
}

func (s *SessionService) GetStatus() (*domainSession.StatusResponse, error) {
	info, err := s.tracker.GetInfo(context.Background(), s.orchestrator.SessionName())
	if err != nil {
		return nil, err
	}

	resp := &domainSession.StatusResponse{
		Name:           info.Name,
		Status:         info.Status,
		IsReady:        info.Status == domainSession.StatusWorking,
		Locked:         s.orchestrator.Locked(),
		WebhookEnsured: s.engine.IsEnsured(info.Name),
	}
	if info.Me != nil {
		resp.AccountID = info.Me.ID
		resp.PushName = info.Me.PushName
	}
	return resp, nil
}

// GetQR returns the pairing QR code. Requesting a QR code is the documented
// unlock trigger for a logout-locked session.
func (s *SessionService) GetQR() (*domainSession.QRResponse, error) {
	ctx := context.Background()
	s.orchestrator.Unlock()

	if err := s.orchestrator.EnsureSessionStarted(ctx); err != nil {
		return nil, err
	}
	s.orchestrator.StartAuthMonitor(ctx)

	status, err := s.tracker.GetStatus(ctx, s.orchestrator.SessionName())
	if err != nil {
		return nil, err
	}
	if status == domainSession.StatusWorking {
		return nil, errors.New("session already authenticated")
	}

	contentType, body, err := s.gateway.GetQR(ctx, s.orchestrator.SessionName())
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "image/png"
	}
	return &domainSession.QRResponse{
		ContentType: contentType,
		Base64:      base64.StdEncoding.EncodeToString(body),
	}, nil
}

func (s *SessionService) RestartSession() (*domainSession.StatusResponse, error) {
	ctx := context.Background()
	name := s.orchestrator.SessionName()

	if err := s.gateway.RestartSession(ctx, name); err != nil {
		return nil, err
	}
	s.tracker.Invalidate(name)
	s.engine.Invalidate(name)
	s.orchestrator.StartAuthMonitor(ctx)
	return s.GetStatus()
}

func (s *SessionService) Logout() error {
	ctx := context.Background()
	name := s.orchestrator.SessionName()

	if err := s.gateway.LogoutSession(ctx, name); err != nil {
		// The stop-and-lock below still applies; the gateway may already
		// consider the session logged out.
		logrus.Warnf("Logout request for %s failed: %v", name, err)
	}
	return s.orchestrator.StopAndLock(ctx)
}

func (s *SessionService) EnsureWebhook() (*domainSession.EnsureWebhookResponse, error) {
	result, err := s.orchestrator.EnsureWebhook(context.Background())
	if err != nil {
		return nil, err
	}
	return &domainSession.EnsureWebhookResponse{
		Ensured:  result.Ensured,
		Cached:   result.Cached,
		Deferred: result.Deferred,
		Method:   result.Method,
	}, nil
}
