package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/queue"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/postpilot/postpilot/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	AsynqClient *asynq.Client
}

func NewPostHandler(service service.PostService, asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{s: service, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	files := form.File["file"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	created, delay, err := h.s.CreatePost(c.Context(), &transfer.PostCreation{
		Caption:       c.FormValue("caption"),
		Platforms:     c.FormValue("platforms"),
		ScheduledTime: c.FormValue("scheduled_time"),
		PublishNow:    c.FormValue("publish_now") == "true",
	}, files[0])
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Scheduled posts also get a delayed queue task; the cron sweep picks
	// up anything the queue misses.
	if created.Status == models.PostStatusScheduled {
		err = queue.EnqueuePost(h.AsynqClient, queue.PublishPostPayload{PostID: created.PostID}, delay)
		if err != nil {
			slog.Info("failed to enqueue publish task", "post_id", created.PostID, "error", err.Error())
		}
	}

	return c.Status(fiber.StatusOK).JSON(created)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postID))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to get post",
			})
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), int64(postID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove post",
		})
	}
	return c.SendStatus(fiber.StatusOK)
}
