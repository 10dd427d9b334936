package middleware

import (
	"strings"

	"campushub/server/internal/apperr"
	"campushub/server/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// TokenCookie is the cookie set on login
const TokenCookie = "token"

// Auth validates the JWT from the Authorization header or the token cookie
func Auth(tokens *utils.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			tokenString = c.Cookies(TokenCookie)
		}
		if tokenString == "" {
			return apperr.Unauthorized("Unauthorized - No token provided")
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			return apperr.Unauthorized("Unauthorized - Invalid token")
		}

		// Store user info in context
		c.Locals("userID", claims.UserID)
		c.Locals("studentID", claims.StudentID)

		return c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetUserID gets user ID from context
func GetUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals("userID").(string)
	if !ok {
		return ""
	}
	return userID
}

// GetStudentID gets the student ID from context
func GetStudentID(c *fiber.Ctx) string {
	studentID, ok := c.Locals("studentID").(string)
	if !ok {
		return ""
	}
	return studentID
}
