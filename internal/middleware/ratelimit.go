package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Limiters builds rate limiting middleware sharing one counter storage.
// A nil storage keeps counters in process memory.
type Limiters struct {
	storage fiber.Storage
}

// NewLimiters creates limiters backed by storage
func NewLimiters(storage fiber.Storage) *Limiters {
	return &Limiters{storage: storage}
}

// RateLimiter creates a rate limiting middleware. Counters are kept per
// name so limiters sharing a storage do not mix.
func (l *Limiters) RateLimiter(name string, max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		Storage:    l.storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Use user ID if authenticated, otherwise use IP
			if userID := GetUserID(c); userID != "" {
				return name + ":" + userID
			}
			return name + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many requests, please try again later",
			})
		},
	})
}

// Strict for sensitive endpoints (e.g., auth)
func (l *Limiters) Strict() fiber.Handler {
	return l.RateLimiter("strict", 5, 15*time.Minute) // 5 requests per 15 minutes
}

// Moderate for regular API calls
func (l *Limiters) Moderate() fiber.Handler {
	return l.RateLimiter("moderate", 30, 1*time.Minute) // 30 requests per minute
}

// Relaxed for read-only endpoints. Polling clients hit these every few seconds.
func (l *Limiters) Relaxed() fiber.Handler {
	return l.RateLimiter("relaxed", 100, 1*time.Minute) // 100 requests per minute
}

// Upload for file uploads
func (l *Limiters) Upload() fiber.Handler {
	return l.RateLimiter("upload", 10, 5*time.Minute) // 10 uploads per 5 minutes
}
