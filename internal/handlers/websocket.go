package handlers

import (
	"campushub/server/internal/middleware"
	ws "campushub/server/internal/websocket"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// WebSocketUpgrade checks if the request should be upgraded to WebSocket
func (h *Handlers) WebSocketUpgrade(c *fiber.Ctx) error {
	// Check if this is a WebSocket upgrade request
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}

	return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
		"success": false,
		"error":   "WebSocket upgrade required",
	})
}

// WebSocketHandler handles WebSocket connections
func (h *Handlers) WebSocketHandler(c *websocket.Conn) {
	// Set by the auth middleware before the upgrade
	userID, _ := c.Locals("userID").(string)
	if userID == "" {
		c.Close()
		return
	}

	client := ws.NewClient(userID, c, h.hub)
	if !h.hub.Attach(client) {
		// Server is shutting down
		c.Close()
		return
	}

	// Start read and write pumps in separate goroutines
	go client.WritePump()
	client.ReadPump() // This blocks until connection closes
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handlers) GetWebSocketStats(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, fiber.Map{
		"onlineUsers": h.hub.GetOnlineCount(),
		"youOnline":   h.hub.IsUserOnline(middleware.GetUserID(c)),
	})
}
