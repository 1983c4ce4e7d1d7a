package queue

import (
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/sweep"
)

// Queue handles the delayed publish tasks enqueued at post creation. The
// cron sweep remains the safety net for tasks that were lost or never
// enqueued.
type Queue struct {
	pr      repository.PostRepository
	sweeper *sweep.Sweeper
}

func NewQueue(pr repository.PostRepository, sweeper *sweep.Sweeper) *Queue {
	return &Queue{
		pr:      pr,
		sweeper: sweeper,
	}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
