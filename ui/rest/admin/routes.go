package admin

import (
	"github.com/bagasta/waha-relay/domains/relaylog"
	"github.com/bagasta/waha-relay/domains/session"
	"github.com/bagasta/waha-relay/domains/webhook"
	"github.com/gofiber/fiber/v2"
)

func InitRoutes(app fiber.Router, targets webhook.ITargetUsecase, sessions session.ISessionRepository, logs relaylog.IRelayLogRepository) {
	handler := NewHandler(targets, sessions, logs)

	adminGroup := app.Group("/admin")
	adminGroup.Get("/webhook-target", handler.GetTarget)
	adminGroup.Post("/webhook-target", handler.SaveTarget)
	adminGroup.Get("/sessions", handler.ListSessions)
	adminGroup.Get("/analytics", handler.GetAnalytics)
	adminGroup.Get("/relay-log", handler.GetRelayLog)

	app.Get("/metrics", handler.Metrics)
}
