package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerRecordsCaller(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tokens := utils.NewTokenManager("test-secret", time.Hour)

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core)))
	app.Get("/me", Auth(tokens), func(c *fiber.Ctx) error {
		return c.SendString(GetStudentID(c))
	})
	app.Get("/denied", func(c *fiber.Ctx) error {
		return apperr.Forbidden("no")
	})

	token, err := tokens.GenerateToken("u1", "2024001")
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/denied", nil), -1)
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)

	ok := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "u1", ok["user_id"])
	assert.Equal(t, "2024001", ok["student_id"])

	denied := entries[1].ContextMap()
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.EqualValues(t, fiber.StatusForbidden, denied["status"])
	assert.NotContains(t, denied, "student_id")
}
