package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/postpilot/postpilot/internal/models"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	post, err := q.pr.GetByID(ctx, payload.PostID)
	if err != nil {
		return err
	}
	if post == nil {
		slog.Info("post no longer exists, dropping task", "post_id", payload.PostID)
		return nil
	}
	if post.Status != models.PostStatusScheduled {
		slog.Info("post no longer scheduled, dropping task", "post_id", post.ID, "status", post.Status)
		return nil
	}

	// ProcessPost claims the post conditionally, so an overlapping cron
	// sweep cannot publish it twice.
	outcome, processed := q.sweeper.ProcessPost(ctx, post)
	if !processed {
		slog.Info("post claimed elsewhere, dropping task", "post_id", post.ID)
		return nil
	}

	slog.Info("publish task processed", "post_id", outcome.PostID, "status", outcome.Status)
	return nil
}
