package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/service"
)

const (
	failedRetention = 24 * time.Hour
	draftRetention  = 7 * 24 * time.Hour
)

// CleanupJob reclaims storage from posts whose artifacts will never be
// published: failed posts past a day, drafts past a week. Posted artifacts
// are deleted by the sweep itself.
type CleanupJob struct {
	pr repository.PostRepository
	r2 *service.R2Service
}

func NewCleanupJob(pr repository.PostRepository, r2 *service.R2Service) *CleanupJob {
	return &CleanupJob{pr: pr, r2: r2}
}

func (j *CleanupJob) CleanupStorage() {
	ctx := context.Background()
	now := time.Now()

	j.cleanup(ctx, models.PostStatusFailed, now.Add(-failedRetention))
	j.cleanup(ctx, models.PostStatusDraft, now.Add(-draftRetention))
}

func (j *CleanupJob) cleanup(ctx context.Context, status string, olderThan time.Time) {
	posts, err := j.pr.ListStaleWithMedia(ctx, status, olderThan)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range posts {
		key := service.KeyFromURL(post.MediaURL)
		if err := j.r2.Delete(ctx, key); err != nil {
			slog.Info("failed to delete stale media", "post_id", post.ID, "key", key, "error", err.Error())
			continue
		}
		if err := j.pr.ClearMediaURL(ctx, post.ID); err != nil {
			slog.Info(err.Error())
		}
	}
}
