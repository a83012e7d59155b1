package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bagasta/waha-relay/config"
	"github.com/bagasta/waha-relay/domains/relaylog"
	"github.com/bagasta/waha-relay/domains/send"
	"github.com/bagasta/waha-relay/infrastructure/waha"
	"github.com/sirupsen/logrus"
)

var ErrSessionNotReady = errors.New("SESSION_NOT_READY: session is not working")

// SendService exposes manual outbound sending through the gateway, next to
// the automated relay path.
type SendService struct {
	gateway waha.Gateway
	tracker *waha.StatusTracker
	logs    relaylog.IRelayLogRepository
}

func NewSendService(gateway waha.Gateway, tracker *waha.StatusTracker, logs relaylog.IRelayLogRepository) send.ISendUsecase {
	return &SendService{
		gateway: gateway,
		tracker: tracker,
		logs:    logs,
	}
}

func (s *SendService) SendText(request send.TextRequest) (*send.TextResponse, error) {
	chatID := strings.TrimSpace(request.ChatID)
	text := strings.TrimSpace(request.Text)
	if chatID == "" || text == "" {
		return nil, errors.New("chat_id and text are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	authenticated, err := s.tracker.IsAuthenticated(ctx, config.WahaSessionName)
	if err != nil {
		return nil, err
	}
	if !authenticated {
		return nil, ErrSessionNotReady
	}

	if err := s.gateway.SendText(ctx, config.WahaSessionName, chatID, text); err != nil {
		s.log(chatID, relaylog.StatusFailed, err.Error())
		return nil, err
	}
	s.log(chatID, relaylog.StatusRelayed, "manual send")

	return &send.TextResponse{Delivered: true}, nil
}

func (s *SendService) MarkSeen(request send.SeenRequest) error {
	chatID := strings.TrimSpace(request.ChatID)
	if chatID == "" {
		return errors.New("chat_id is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.gateway.SendSeen(ctx, config.WahaSessionName, chatID)
}

func (s *SendService) log(chatID, status, detail string) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Log(config.WahaSessionName, "", chatID, status, detail); err != nil {
		logrus.Warnf("Failed writing relay log: %v", err)
	}
}
