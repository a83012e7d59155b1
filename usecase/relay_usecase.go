package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bagasta/waha-relay/config"
	"github.com/bagasta/waha-relay/domains/message"
	"github.com/bagasta/waha-relay/domains/relaylog"
	"github.com/bagasta/waha-relay/infrastructure/waha"
	"github.com/bagasta/waha-relay/pkg/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxReplyLength = 4096

type IRelayUsecase interface {
	HandleMessageEvent(evt *message.WebhookEvent) error
}

// RelayService forwards inbound message text to the AI completion backend
// and sends the reply back through the gateway.
type RelayService struct {
	gateway    waha.Gateway
	logs       relaylog.IRelayLogRepository
	httpClient *http.Client

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// completionFn is swapped out in tests.
var completionFn = callCompletion

func NewRelayService(gateway waha.Gateway, logs relaylog.IRelayLogRepository) IRelayUsecase {
	return &RelayService{
		gateway: gateway,
		logs:    logs,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiters: make(map[string]*rate.Limiter),
	}
}

func (s *RelayService) HandleMessageEvent(evt *message.WebhookEvent) error {
	var payload message.Payload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("decode message payload: %w", err)
	}

	// Only direct inbound text gets relayed.
	if payload.FromMe || payload.IsGroup() || payload.IsBroadcast() {
		return nil
	}
	text := strings.TrimSpace(payload.Body)
	if text == "" {
		return nil
	}
	if config.AiBackendURL == "" {
		logrus.Debug("No AI backend configured; message not relayed")
		return nil
	}

	traceID := uuid.New().String()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	if err := s.acquire(ctx, payload.From); err != nil {
		return err
	}

	if err := s.gateway.SendSeen(ctx, evt.Session, payload.From); err != nil {
		logrus.Debugf("[%s] sendSeen failed: %v", traceID, err)
	}

	reply, err := completionFn(ctx, s.httpClient, text, payload.From, traceID)
	if err != nil {
		logrus.Errorf("[%s] AI call failed: %v", traceID, err)
		s.log(evt.Session, payload.ID, payload.From, relaylog.StatusFailed, err.Error())
		return err
	}
	reply = sanitizeReply(reply)
	if reply == "" {
		s.log(evt.Session, payload.ID, payload.From, relaylog.StatusSkipped, "empty completion")
		return nil
	}

	if err := s.gateway.SendText(ctx, evt.Session, payload.From, reply); err != nil {
		logrus.Errorf("[%s] Failed to send reply: %v", traceID, err)
		s.log(evt.Session, payload.ID, payload.From, relaylog.StatusFailed, err.Error())
		return err
	}
	metrics.IncMessagesRelayed()
	s.log(evt.Session, payload.ID, payload.From, relaylog.StatusRelayed, "")
	return nil
}

func (s *RelayService) log(sessionName, messageID, chatID, status, detail string) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Log(sessionName, messageID, chatID, status, detail); err != nil {
		logrus.Warnf("Failed writing relay log: %v", err)
	}
}

// acquire rate-limits per chat so a flood of messages from one conversation
// does not starve the backend.
func (s *RelayService) acquire(ctx context.Context, chatID string) error {
	s.limiterMu.Lock()
	limiter, ok := s.limiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(2*time.Second), 3)
		s.limiters[chatID] = limiter
	}
	s.limiterMu.Unlock()
	return limiter.Wait(ctx)
}

func callCompletion(ctx context.Context, client *http.Client, text, chatID, traceID string) (string, error) {
	payload := map[string]any{
		"model": config.AiModel,
		"messages": []map[string]string{
			{"role": "user", "content": text},
		},
		"max_tokens": config.AiMaxTokens,
		"user":       chatID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.AiBackendURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trace-Id", traceID)
	if config.AiAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+config.AiAPIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ai backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", fmt.Errorf("decode ai response: %w", err)
	}
	if len(completion.Choices) > 0 {
		return completion.Choices[0].Message.Content, nil
	}
	// Some backends answer with a flat reply field instead.
	if completion.Reply != "" {
		return completion.Reply, nil
	}
	return "", errors.New("ai backend returned no completion")
}

func sanitizeReply(reply string) string {
	reply = strings.TrimSpace(reply)
	if len(reply) > maxReplyLength {
		reply = reply[:maxReplyLength]
	}
	return reply
}
