package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/postpilot/postpilot/internal/sweep"
)

type CronHandler struct {
	sweeper *sweep.Sweeper
}

func NewCronHandler(sweeper *sweep.Sweeper) *CronHandler {
	return &CronHandler{sweeper: sweeper}
}

// TriggerSweep runs one due-post sweep and reports the per-post outcomes.
func (h *CronHandler) TriggerSweep(c *fiber.Ctx) error {
	summary, err := h.sweeper.Run(c.Context(), time.Now())
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	message := "Scheduled posts processed"
	if summary.Count == 0 {
		message = "No posts to publish"
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": message,
		"count":   summary.Count,
		"results": summary.Outcomes,
	})
}
