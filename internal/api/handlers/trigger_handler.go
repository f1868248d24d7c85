package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	config "github.com/marqetly/marqetly/configs"
	job "github.com/marqetly/marqetly/internal/jobs"
)

// TriggerHandler exposes the publishing pipeline to an external scheduler
// (cron service, uptime pinger). The in-process poll loop calls the same job.
type TriggerHandler struct {
	cfg config.Config
	pj  *job.PublishJob
}

func NewTriggerHandler(cfg config.Config, pj *job.PublishJob) *TriggerHandler {
	return &TriggerHandler{cfg: cfg, pj: pj}
}

func (h *TriggerHandler) RunPublish(c *fiber.Ctx) error {
	token := c.Get("X-Trigger-Token")
	if h.cfg.TriggerToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.TriggerToken)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid trigger token",
		})
	}

	processed, err := h.pj.Run(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"processed": processed,
	})
}
