package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/marqetly/marqetly/internal/service"
)

type SecretsHandler struct {
	s service.SecretsService
}

func NewSecretsHandler(service service.SecretsService) *SecretsHandler {
	return &SecretsHandler{s: service}
}

type secretUpdate struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (h *SecretsHandler) SetSecret(c *fiber.Ctx) error {
	var body secretUpdate
	if err := c.BodyParser(&body); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.Set(c.Context(), body.Name, body.Value); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// ListSecrets returns names only; stored values are never echoed back.
func (h *SecretsHandler) ListSecrets(c *fiber.Ctx) error {
	names, err := h.s.ListNames(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list secrets",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"names": names,
	})
}

func (h *SecretsHandler) RemoveSecret(c *fiber.Ctx) error {
	name := c.Query("name")

	if err := h.s.Remove(c.Context(), name); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to remove secret",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
