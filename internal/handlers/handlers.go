// Package handlers holds the fiber handlers of the HTTP API.
package handlers

import (
	"errors"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/chat"
	"campushub/server/internal/files"
	"campushub/server/internal/users"
	"campushub/server/internal/utils"
	ws "campushub/server/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Deps are the services the handlers call into
type Deps struct {
	Users         users.Directory
	Tokens        *utils.TokenManager
	Chat          *chat.Service
	Library       *files.Library
	Hub           *ws.Hub
	PollInterval  time.Duration
	SecureCookies bool
	Log           *zap.Logger
}

// Handlers groups every HTTP handler
type Handlers struct {
	users         users.Directory
	tokens        *utils.TokenManager
	chat          *chat.Service
	library       *files.Library
	hub           *ws.Hub
	pollInterval  time.Duration
	secureCookies bool
	log           *zap.Logger
}

// New creates the handlers
func New(d Deps) *Handlers {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 4 * time.Second
	}
	return &Handlers{
		users:         d.Users,
		tokens:        d.Tokens,
		chat:          d.Chat,
		library:       d.Library,
		hub:           d.Hub,
		pollInterval:  d.PollInterval,
		secureCookies: d.SecureCookies,
		log:           d.Log,
	}
}

func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// ErrorHandler renders every error returned by a handler in the API envelope
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal server error"

		var appErr *apperr.Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			status = appErr.Status()
			message = appErr.Message
			if status >= fiber.StatusInternalServerError {
				log.Error("request failed",
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.Error(err))
			}
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			message = fiberErr.Message
		default:
			log.Error("unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}
