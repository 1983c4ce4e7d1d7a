package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/service"
)

// Storage is the slice of the media store the sweep needs: deleting the
// artifact once a post has been published.
type Storage interface {
	Delete(ctx context.Context, key string) error
}

// Outcome is one processed post's entry in the sweep summary.
type Outcome struct {
	PostID  int64                 `json:"postId"`
	Status  string                `json:"status"`
	Results models.PublishResults `json:"results,omitempty"`
	Error   string                `json:"error,omitempty"`
}

type Summary struct {
	Count    int       `json:"count"`
	Outcomes []Outcome `json:"results"`
}

// Sweeper finds posts due for publication, claims them, dispatches them to
// their platforms, and records the result.
type Sweeper struct {
	pr          repository.PostRepository
	cr          repository.CredentialRepository
	dispatcher  *publisher.Dispatcher
	storage     Storage
	secretKey   []byte
	concurrency int
}

func NewSweeper(
	pr repository.PostRepository,
	cr repository.CredentialRepository,
	dispatcher *publisher.Dispatcher,
	storage Storage,
	secretKey []byte) *Sweeper {
	return &Sweeper{
		pr:          pr,
		cr:          cr,
		dispatcher:  dispatcher,
		storage:     storage,
		secretKey:   secretKey,
		concurrency: 5,
	}
}

// Run processes every post due at now. Posts are independent: one post's
// failure never aborts the sweep for the others.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (*Summary, error) {
	posts, err := s.pr.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, s.concurrency)

	summary := &Summary{Outcomes: []Outcome{}}

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome, processed := s.ProcessPost(ctx, post)
			if !processed {
				return
			}

			mu.Lock()
			summary.Outcomes = append(summary.Outcomes, outcome)
			summary.Count++
			mu.Unlock()
		}(post)
	}

	wg.Wait()
	return summary, nil
}

// ProcessPost publishes one due post. The second return value is false when
// the post was already claimed by a concurrent run and nothing was done.
func (s *Sweeper) ProcessPost(ctx context.Context, post *models.Post) (Outcome, bool) {
	creds, err := service.ResolveCredentials(ctx, s.cr, post.Platforms, s.secretKey)
	if err != nil {
		return s.failPost(ctx, post, "failed to resolve credentials: "+err.Error()), true
	}

	if len(creds) == 0 {
		slog.Info("no credentials found for post", "post_id", post.ID)
		return s.failPost(ctx, post, "no platform credentials found"), true
	}

	claimed, err := s.pr.ClaimScheduled(ctx, post.ID)
	if err != nil {
		return Outcome{PostID: post.ID, Status: post.Status, Error: err.Error()}, true
	}
	if !claimed {
		slog.Info("post already claimed, skipping", "post_id", post.ID)
		return Outcome{}, false
	}

	req := publisher.Request{
		Caption:   post.Caption,
		MediaURL:  post.MediaURL,
		MediaKind: post.MediaKind,
	}
	results := s.dispatcher.Dispatch(ctx, post.Platforms, req, creds)

	status := models.PostStatusPosted
	if results.AllFailed() {
		status = models.PostStatusFailed
	}

	if err := s.pr.SetOutcome(ctx, post.ID, status, results, time.Now()); err != nil {
		slog.Info("failed to persist outcome", "post_id", post.ID, "error", err.Error())
		return Outcome{PostID: post.ID, Status: status, Results: results, Error: err.Error()}, true
	}

	if status == models.PostStatusPosted && post.MediaURL != "" {
		s.cleanupMedia(ctx, post)
	}

	return Outcome{PostID: post.ID, Status: status, Results: results}, true
}

func (s *Sweeper) failPost(ctx context.Context, post *models.Post, message string) Outcome {
	results := models.PublishResults{{Success: false, Error: message}}
	if err := s.pr.SetOutcome(ctx, post.ID, models.PostStatusFailed, results, time.Now()); err != nil {
		slog.Info("failed to persist failure", "post_id", post.ID, "error", err.Error())
	}
	return Outcome{PostID: post.ID, Status: models.PostStatusFailed, Error: message}
}

// cleanupMedia deletes the published post's artifact. Best effort: a failed
// deletion is logged and never reverts the posted status.
func (s *Sweeper) cleanupMedia(ctx context.Context, post *models.Post) {
	key := service.KeyFromURL(post.MediaURL)
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.Info("failed to delete media artifact", "post_id", post.ID, "key", key, "error", err.Error())
		return
	}
	if err := s.pr.ClearMediaURL(ctx, post.ID); err != nil {
		slog.Info("failed to clear media url", "post_id", post.ID, "error", err.Error())
	}
}
