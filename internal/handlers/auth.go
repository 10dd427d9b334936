package handlers

import (
	"strings"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/middleware"
	"campushub/server/internal/models"
	"campushub/server/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RegisterRequest represents registration request body
type RegisterRequest struct {
	StudentID string `json:"studentId"`
	Password  string `json:"password"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Course    string `json:"course"`
	Campus    string `json:"campus"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	StudentID string `json:"studentId"`
	Password  string `json:"password"`
}

// Register handles user registration
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}

	req.StudentID = strings.TrimSpace(req.StudentID)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	req.Course = strings.TrimSpace(req.Course)
	req.Campus = strings.TrimSpace(req.Campus)

	// Validate input
	if req.StudentID == "" || req.Password == "" || req.FullName == "" ||
		req.Email == "" || req.Course == "" || req.Campus == "" {
		return apperr.Validation("All fields are required")
	}
	if len(req.Password) < utils.MinPasswordLength {
		return apperr.Validation("Password must be at least %d characters", utils.MinPasswordLength)
	}
	if len(req.Password) > utils.MaxPasswordBytes {
		return apperr.Validation("Password must be at most %d bytes", utils.MaxPasswordBytes)
	}

	// Hash password
	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return apperr.Storage("Failed to hash password", err)
	}

	user := &models.User{
		StudentID: req.StudentID,
		FullName:  req.FullName,
		Email:     req.Email,
		Course:    req.Course,
		Campus:    req.Campus,
		Password:  hashedPassword,
	}
	if err := h.users.Create(c.UserContext(), user); err != nil {
		return err
	}

	h.log.Info("user registered", zap.String("user_id", user.ID), zap.String("student_id", user.StudentID))
	return ok(c, fiber.StatusCreated, user.ToResponse())
}

// Login handles user login. The token is returned in the body for API
// clients and set as an HTTP-only cookie for the browser.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}

	req.StudentID = strings.TrimSpace(req.StudentID)
	if req.StudentID == "" || req.Password == "" {
		return apperr.Validation("Student ID and password required")
	}

	user, err := h.users.FindByStudentID(c.UserContext(), req.StudentID)
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return err
	}

	// Verify password
	if !utils.CheckPassword(user.Password, req.Password) {
		return apperr.Unauthorized("Invalid credentials")
	}

	token, err := h.tokens.GenerateToken(user.ID, user.StudentID)
	if err != nil {
		return apperr.Storage("Failed to generate token", err)
	}

	// Set HTTP-Only Cookie for access token
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: "Lax",
		MaxAge:   int(h.tokens.TTL() / time.Second),
	})

	return ok(c, fiber.StatusOK, fiber.Map{
		"token": token,
		"user":  user.ToResponse(),
	})
}

// Logout clears the token cookie
func (h *Handlers) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: "Lax",
		Expires:  time.Now().Add(-time.Hour),
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// GetMe returns the authenticated user's profile
func (h *Handlers) GetMe(c *fiber.Ctx) error {
	user, err := h.users.FindByID(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, user.ToResponse())
}
