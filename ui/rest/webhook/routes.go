package webhook

import (
	domainWebhook "github.com/bagasta/waha-relay/domains/webhook"
	"github.com/bagasta/waha-relay/infrastructure/waha"
	"github.com/bagasta/waha-relay/usecase"
	"github.com/gofiber/fiber/v2"
)

func InitRoutes(app fiber.Router, relay usecase.IRelayUsecase, orchestrator *waha.Orchestrator, targets domainWebhook.ITargetUsecase) {
	handler := NewHandler(relay, orchestrator, targets)

	app.Post("/webhooks/waha", handler.Receive)
}
