package session

import (
	"github.com/bagasta/waha-relay/domains/session"
	pkgError "github.com/bagasta/waha-relay/pkg/error"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	usecase session.ISessionUsecase
}

func NewHandler(usecase session.ISessionUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// POST /session/start
func (h *Handler) StartSession(c *fiber.Ctx) error {
	resp, err := h.usecase.StartSession()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

// GET /session/status
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	resp, err := h.usecase.GetStatus()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

// GET /session/qr
func (h *Handler) GetQR(c *fiber.Ctx) error {
	resp, err := h.usecase.GetQR()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

// POST /session/restart
func (h *Handler) RestartSession(c *fiber.Ctx) error {
	resp, err := h.usecase.RestartSession()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

// POST /session/logout
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.usecase.Logout(); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"loggedOut": true})
}

// POST /session/webhook/ensure
func (h *Handler) EnsureWebhook(c *fiber.Ctx) error {
	resp, err := h.usecase.EnsureWebhook()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

// errorResponse distinguishes the logout lock from transient failures: a
// locked session is an operator decision, not an error to retry.
func errorResponse(c *fiber.Ctx, err error) error {
	if pkgError.IsLocked(err) {
		return c.Status(fiber.StatusLocked).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "SESSION_LOCKED",
				"message": err.Error(),
			},
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	})
}
