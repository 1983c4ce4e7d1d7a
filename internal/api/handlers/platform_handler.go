package handlers

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
	cfg "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/postpilot/postpilot/pkg/utils"
)

type PlatformHandler struct {
	as  service.AuthService
	cs  service.CredentialService
	cfg cfg.Config
}

func NewPlatformHandler(as service.AuthService, cs service.CredentialService, cfg cfg.Config) *PlatformHandler {
	return &PlatformHandler{as: as, cs: cs, cfg: cfg}
}

func (h *PlatformHandler) Authorize(c *fiber.Ctx) error {
	authURL, err := h.as.GetAuthURL(c.Context(), c.Params("platform"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid platform",
		})
	}
	return c.Redirect(authURL)
}

func (h *PlatformHandler) Callback(c *fiber.Ctx) error {
	platform := c.Params("platform")
	code := c.Query("code")
	state := c.Query("state")

	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No authorization code",
		})
	}

	claims, err := utils.ValidateStateToken(h.cfg.SecretKey, state)
	if err != nil || claims.Platform != platform {
		return h.redirectError(c, platform, "invalid state parameter")
	}

	if err := h.as.HandleCallback(c.Context(), platform, code); err != nil {
		slog.Info(err.Error())
		return h.redirectError(c, platform, err.Error())
	}

	successURL := fmt.Sprintf("%s/auth/success?platform=%s", h.cfg.FrontendURL, url.QueryEscape(platform))
	return c.Redirect(successURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) redirectError(c *fiber.Ctx, platform, message string) error {
	errorURL := fmt.Sprintf("%s/auth/error?platform=%s&error=%s",
		h.cfg.FrontendURL, url.QueryEscape(platform), url.QueryEscape(message))
	return c.Redirect(errorURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListCredentials(c *fiber.Ctx) error {
	creds, err := h.cs.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch connected platforms",
		})
	}
	return c.Status(fiber.StatusOK).JSON(creds)
}

func (h *PlatformHandler) Disconnect(c *fiber.Ctx) error {
	platform := c.Query("platform")
	if platform == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "platform is required",
		})
	}

	if err := h.cs.Disconnect(c.Context(), platform); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to disconnect platform",
		})
	}
	return c.SendStatus(fiber.StatusOK)
}
