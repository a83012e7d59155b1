package send

import (
	domainSend "github.com/bagasta/waha-relay/domains/send"
	"github.com/gofiber/fiber/v2"
)

func InitRoutes(app fiber.Router, usecase domainSend.ISendUsecase) {
	handler := NewHandler(usecase)

	sendGroup := app.Group("/send")
	sendGroup.Post("/text", handler.SendText)
	sendGroup.Post("/seen", handler.MarkSeen)
}
