package handlers

import (
	"campushub/server/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Health reports that the API is up
func (h *Handlers) Health(c *fiber.Ctx) error {
	online := 0
	if h.hub != nil {
		online = h.hub.GetOnlineCount()
	}
	return c.JSON(fiber.Map{
		"status":      "ok",
		"message":     "Campushub API is running",
		"onlineUsers": online,
	})
}

// ChatConfig tells clients how to poll
func (h *Handlers) ChatConfig(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, fiber.Map{
		"pollIntervalMs": h.pollInterval.Milliseconds(),
		"maxAttachments": h.chat.MaxAttachments(),
		"defaultGroupId": models.DefaultGroupID,
	})
}
