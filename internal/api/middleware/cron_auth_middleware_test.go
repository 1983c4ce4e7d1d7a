package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	cfg "github.com/postpilot/postpilot/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cronTestApp(secret string) *fiber.App {
	app := fiber.New()
	m := NewCronAuthMiddleware(cfg.Config{CronSecret: secret})
	app.Get("/cron", m.CronAuth(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestCronAuthRejectsMissingHeader(t *testing.T) {
	app := cronTestApp("s3cret")

	req := httptest.NewRequest("GET", "/cron", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCronAuthRejectsWrongSecret(t *testing.T) {
	app := cronTestApp("s3cret")

	req := httptest.NewRequest("GET", "/cron", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCronAuthAcceptsValidSecret(t *testing.T) {
	app := cronTestApp("s3cret")

	req := httptest.NewRequest("GET", "/cron", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCronAuthRejectsEverythingWhenSecretUnset(t *testing.T) {
	app := cronTestApp("")

	req := httptest.NewRequest("GET", "/cron", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
