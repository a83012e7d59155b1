package webhook

import (
	"context"
	"encoding/json"

	"github.com/bagasta/waha-relay/domains/message"
	"github.com/bagasta/waha-relay/domains/session"
	domainWebhook "github.com/bagasta/waha-relay/domains/webhook"
	"github.com/bagasta/waha-relay/infrastructure/waha"
	"github.com/bagasta/waha-relay/pkg/metrics"
	"github.com/bagasta/waha-relay/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	relay        usecase.IRelayUsecase
	orchestrator *waha.Orchestrator
	targets      domainWebhook.ITargetUsecase
}

func NewHandler(relay usecase.IRelayUsecase, orchestrator *waha.Orchestrator, targets domainWebhook.ITargetUsecase) *Handler {
	return &Handler{
		relay:        relay,
		orchestrator: orchestrator,
		targets:      targets,
	}
}

// POST /webhooks/waha
//
// The gateway must always get a fast 200: message handling runs in the
// background, and a processing failure is the relay's problem, not a reason
// for the gateway to redeliver forever.
func (h *Handler) Receive(c *fiber.Ctx) error {
	if secret := h.targets.Secret(); secret != "" {
		if c.Get("X-Webhook-Secret") != secret {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    "INVALID_SECRET",
					"message": "webhook secret mismatch",
				},
			})
		}
	}

	var evt message.WebhookEvent
	if err := c.BodyParser(&evt); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INVALID_PAYLOAD",
				"message": "Invalid request body",
			},
		})
	}
	metrics.IncEventsReceived()

	switch evt.Event {
	case "message", "message.any":
		go func(evt message.WebhookEvent) {
			if err := h.relay.HandleMessageEvent(&evt); err != nil {
				logrus.Warnf("Failed handling %s event %s: %v", evt.Event, evt.ID, err)
			}
		}(evt)
	case "session.status":
		var payload message.StatusPayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			logrus.Warnf("Failed decoding session.status payload: %v", err)
			break
		}
		h.orchestrator.HandleStatusEvent(context.Background(), payload.Name, session.Status(payload.Status))
	default:
		logrus.Debugf("Ignoring webhook event %s", evt.Event)
	}

	return c.JSON(fiber.Map{"received": true})
}
