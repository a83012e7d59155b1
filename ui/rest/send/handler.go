package send

import (
	"strings"

	domainSend "github.com/bagasta/waha-relay/domains/send"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	usecase domainSend.ISendUsecase
}

func NewHandler(usecase domainSend.ISendUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// POST /send/text
func (h *Handler) SendText(c *fiber.Ctx) error {
	var req domainSend.TextRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INVALID_PAYLOAD",
				"message": "Invalid request body",
			},
		})
	}

	resp, err := h.usecase.SendText(req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

// POST /send/seen
func (h *Handler) MarkSeen(c *fiber.Ctx) error {
	var req domainSend.SeenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INVALID_PAYLOAD",
				"message": "Invalid request body",
			},
		})
	}

	if err := h.usecase.MarkSeen(req); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"acknowledged": true})
}

func errorResponse(c *fiber.Ctx, err error) error {
	statusCode := 500
	errorCode := "INTERNAL_ERROR"

	if strings.Contains(err.Error(), "SESSION_NOT_READY") {
		statusCode = 409
		errorCode = "SESSION_NOT_READY"
	} else if strings.Contains(err.Error(), "required") {
		statusCode = 400
		errorCode = "INVALID_PAYLOAD"
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    errorCode,
			"message": err.Error(),
		},
	})
}
