package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	cfg "github.com/postpilot/postpilot/configs"
)

type CronAuthMiddleware struct {
	cfg cfg.Config
}

func NewCronAuthMiddleware(cfg cfg.Config) *CronAuthMiddleware {
	return &CronAuthMiddleware{cfg: cfg}
}

// CronAuth gates the sweep trigger behind the shared cron secret. The
// request must carry "Authorization: Bearer <CRON_SECRET>".
func (m *CronAuthMiddleware) CronAuth() fiber.Handler {
	expected := "Bearer " + m.cfg.CronSecret
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if m.cfg.CronSecret == "" || subtle.ConstantTimeCompare([]byte(authHeader), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
