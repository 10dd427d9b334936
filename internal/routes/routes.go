package routes

import (
	"campushub/server/internal/handlers"
	"campushub/server/internal/metrics"
	"campushub/server/internal/middleware"
	"campushub/server/internal/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, h *handlers.Handlers, tokens *utils.TokenManager, limits *middleware.Limiters) {
	auth := middleware.Auth(tokens)

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// API v1 group
	api := app.Group("/api/v1")

	// Health check (public)
	api.Get("/health", h.Health)

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", limits.Strict(), h.Register)
	authGroup.Post("/login", limits.Strict(), h.Login)
	authGroup.Post("/logout", auth, h.Logout)
	authGroup.Get("/me", auth, h.GetMe)

	// Chat settings for polling clients
	api.Get("/chat/config", auth, h.ChatConfig)

	// Group routes (protected)
	groups := api.Group("/groups", auth)
	groups.Get("/", h.GetGroups)
	groups.Post("/", limits.Moderate(), h.CreateGroup)
	groups.Get("/:groupId", h.GetGroupDetails)
	groups.Post("/:groupId/members", limits.Moderate(), h.AddGroupMember)
	groups.Get("/:groupId/messages", limits.Relaxed(), h.GetMessages)
	groups.Post("/:groupId/messages", limits.Moderate(), h.SendMessage)

	// Course materials (protected)
	fileGroup := api.Group("/files", auth)
	fileGroup.Get("/", h.ListFiles)
	fileGroup.Get("/search", h.SearchFiles)
	fileGroup.Post("/", limits.Upload(), h.UploadFile)
	fileGroup.Get("/:fileId/download", h.DownloadFile)
	fileGroup.Delete("/:fileId", h.DeleteFile)

	// WebSocket route (protected)
	api.Get("/ws", auth, h.WebSocketUpgrade, websocket.New(h.WebSocketHandler))
	api.Get("/ws/stats", auth, h.GetWebSocketStats)

	setupLegacyRoutes(app, h, auth, limits)
}

// setupLegacyRoutes keeps the paths used by the old web client.
// Chat paths address the default group.
func setupLegacyRoutes(app *fiber.App, h *handlers.Handlers, auth fiber.Handler, limits *middleware.Limiters) {
	legacy := app.Group("/api")
	legacy.Post("/register", limits.Strict(), h.Register)
	legacy.Post("/login", limits.Strict(), h.Login)
	legacy.Get("/user-profile", auth, h.GetMe)

	legacy.Post("/upload", auth, limits.Upload(), h.UploadFile)
	legacy.Get("/files", auth, h.ListFiles)
	legacy.Delete("/files/:fileId", auth, h.DeleteFile)
	legacy.Get("/download/:fileId", auth, h.DownloadFile)
	legacy.Get("/search", auth, h.SearchFiles)

	legacy.Get("/chat/messages", auth, limits.Relaxed(), h.GetMessages)
	legacy.Post("/chat/messages", auth, limits.Moderate(), h.SendMessage)
}
