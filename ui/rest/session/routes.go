package session

import (
	"github.com/bagasta/waha-relay/domains/session"
	"github.com/gofiber/fiber/v2"
)

func InitRoutes(app fiber.Router, usecase session.ISessionUsecase) {
	handler := NewHandler(usecase)

	// Session management routes
	app.Post("/session/start", handler.StartSession)
	app.Get("/session/status", handler.GetStatus)
	app.Get("/session/qr", handler.GetQR)
	app.Post("/session/restart", handler.RestartSession)
	app.Post("/session/logout", handler.Logout)
	app.Post("/session/webhook/ensure", handler.EnsureWebhook)
}
