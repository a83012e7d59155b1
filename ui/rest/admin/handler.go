package admin

import (
	"strconv"
	"strings"

	"github.com/bagasta/waha-relay/config"
	"github.com/bagasta/waha-relay/domains/relaylog"
	"github.com/bagasta/waha-relay/domains/session"
	"github.com/bagasta/waha-relay/domains/webhook"
	"github.com/bagasta/waha-relay/pkg/metrics"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	targets  webhook.ITargetUsecase
	sessions session.ISessionRepository
	logs     relaylog.IRelayLogRepository
}

func NewHandler(targets webhook.ITargetUsecase, sessions session.ISessionRepository, logs relaylog.IRelayLogRepository) *Handler {
	return &Handler{targets: targets, sessions: sessions, logs: logs}
}

// GET /admin/webhook-target
func (h *Handler) GetTarget(c *fiber.Ctx) error {
	cfg, err := h.targets.Get()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INTERNAL_ERROR",
				"message": err.Error(),
			},
		})
	}

	if cfg == nil {
		return c.JSON(fiber.Map{
			"url":    "",
			"secret": "",
		})
	}

	return c.JSON(cfg)
}

type saveRequest struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

// POST /admin/webhook-target
func (h *Handler) SaveTarget(c *fiber.Ctx) error {
	var req saveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INVALID_PAYLOAD",
				"message": "Invalid request body",
			},
		})
	}

	if strings.TrimSpace(req.URL) == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INVALID_PAYLOAD",
				"message": "url is required",
			},
		})
	}

	cfg, err := h.targets.Save(req.URL, req.Secret)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INTERNAL_ERROR",
				"message": err.Error(),
			},
		})
	}

	return c.JSON(cfg)
}

// GET /admin/sessions
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	records, err := h.sessions.List()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INTERNAL_ERROR",
				"message": err.Error(),
			},
		})
	}
	return c.JSON(fiber.Map{"sessions": records})
}

// GET /admin/analytics
func (h *Handler) GetAnalytics(c *fiber.Ctx) error {
	stats, err := h.logs.GetStats(config.WahaSessionName)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INTERNAL_ERROR",
				"message": err.Error(),
			},
		})
	}
	return c.JSON(stats)
}

// GET /admin/relay-log
func (h *Handler) GetRelayLog(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}

	entries, err := h.logs.Recent(config.WahaSessionName, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INTERNAL_ERROR",
				"message": err.Error(),
			},
		})
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// GET /metrics
func (h *Handler) Metrics(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; version=0.0.4")
	return c.SendString(metrics.PrometheusText())
}
