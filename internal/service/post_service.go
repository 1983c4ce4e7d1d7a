package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, pc *transfer.PostCreation, file *multipart.FileHeader) (*transfer.PostCreated, time.Duration, error)
	List(ctx context.Context) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID int64) (*models.Post, error)
	Remove(ctx context.Context, postID int64) error
}

type postService struct {
	pr         repository.PostRepository
	cr         repository.CredentialRepository
	r2         *R2Service
	dispatcher *publisher.Dispatcher
	secretKey  []byte
}

func NewPostService(
	pr repository.PostRepository,
	cr repository.CredentialRepository,
	r2 *R2Service,
	dispatcher *publisher.Dispatcher,
	secretKey []byte) PostService {
	return &postService{
		pr:         pr,
		cr:         cr,
		r2:         r2,
		dispatcher: dispatcher,
		secretKey:  secretKey,
	}
}

var allowedMediaKinds = map[string]string{
	"jpg":  models.MediaKindImage,
	"jpeg": models.MediaKindImage,
	"png":  models.MediaKindImage,
	"mp4":  models.MediaKindVideo,
	"mov":  models.MediaKindVideo,
}

func (s *postService) CreatePost(ctx context.Context, pc *transfer.PostCreation, file *multipart.FileHeader) (*transfer.PostCreated, time.Duration, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return nil, 0, err
	}
	if pc.Caption == "" {
		err := errors.New("caption cannot be empty")
		slog.Info(err.Error())
		return nil, 0, err
	}
	if file == nil {
		err := errors.New("no media file provided")
		slog.Info(err.Error())
		return nil, 0, err
	}

	var platforms []string
	if err := json.Unmarshal([]byte(pc.Platforms), &platforms); err != nil {
		err = fmt.Errorf("invalid platforms format: %w", err)
		slog.Error(err.Error())
		return nil, 0, err
	}
	if len(platforms) == 0 {
		err := errors.New("no platforms selected")
		slog.Error(err.Error())
		return nil, 0, err
	}

	var scheduledAt sql.NullTime
	if pc.ScheduledTime != "" {
		parsed, err := parseScheduledTime(pc.ScheduledTime)
		if err != nil {
			slog.Error(err.Error())
			return nil, 0, err
		}
		scheduledAt = sql.NullTime{Time: parsed, Valid: true}
	}

	mediaURL, mediaKind, err := s.uploadMedia(ctx, file)
	if err != nil {
		return nil, 0, err
	}

	status := models.PostStatusDraft
	switch {
	case pc.PublishNow && !scheduledAt.Valid:
		status = models.PostStatusPosting
	case scheduledAt.Valid:
		status = models.PostStatusScheduled
	}

	post := models.Post{
		Caption:     pc.Caption,
		Platforms:   platforms,
		MediaURL:    mediaURL,
		MediaKind:   mediaKind,
		ScheduledAt: scheduledAt,
		Status:      status,
	}

	postID, err := s.pr.Create(ctx, nil, &post)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating post: %w", err)
	}
	post.ID = postID

	created := &transfer.PostCreated{
		PostID:   postID,
		MediaURL: mediaURL,
		Status:   status,
	}

	// Publish-now bypasses the sweep entirely: dispatch here, persist the
	// same outcome shape the sweep would.
	if status == models.PostStatusPosting {
		results := s.publishNow(ctx, &post)
		created.Status = post.Status
		created.Results = results
		return created, 0, nil
	}

	var delay time.Duration
	if scheduledAt.Valid {
		delay = time.Until(scheduledAt.Time)
		if delay < 0 {
			delay = 0
		}
	}

	return created, delay, nil
}

func (s *postService) publishNow(ctx context.Context, post *models.Post) models.PublishResults {
	creds, err := ResolveCredentials(ctx, s.cr, post.Platforms, s.secretKey)
	if err != nil || len(creds) == 0 {
		message := "no platform credentials found"
		if err != nil {
			message = err.Error()
		}
		results := models.PublishResults{{Success: false, Error: message}}
		post.Status = models.PostStatusFailed
		if err := s.pr.SetOutcome(ctx, post.ID, post.Status, results, time.Now()); err != nil {
			slog.Info(err.Error())
		}
		return results
	}

	req := publisher.Request{
		Caption:   post.Caption,
		MediaURL:  post.MediaURL,
		MediaKind: post.MediaKind,
	}
	results := s.dispatcher.Dispatch(ctx, post.Platforms, req, creds)

	post.Status = models.PostStatusPosted
	if results.AllFailed() {
		post.Status = models.PostStatusFailed
	}

	if err := s.pr.SetOutcome(ctx, post.ID, post.Status, results, time.Now()); err != nil {
		slog.Info(err.Error())
	}

	if post.Status == models.PostStatusPosted && post.MediaURL != "" {
		if err := s.r2.Delete(ctx, KeyFromURL(post.MediaURL)); err != nil {
			slog.Info("failed to delete media artifact", "post_id", post.ID, "error", err.Error())
		} else if err := s.pr.ClearMediaURL(ctx, post.ID); err != nil {
			slog.Info(err.Error())
		}
	}

	return results
}

func (s *postService) uploadMedia(ctx context.Context, file *multipart.FileHeader) (mediaURL, mediaKind string, err error) {
	fileContent, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("error opening file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return "", "", fmt.Errorf("error reading file content: %w", err)
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return "", "", fmt.Errorf("unsupported file type: %w", err)
	}

	kind, ok := allowedMediaKinds[fileType.Extension]
	if !ok {
		return "", "", fmt.Errorf("file type %s is not allowed", fileType.Extension)
	}

	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", "", err
	}

	if err := s.r2.Upload(ctx, key, fileBytes, fileType.MIME.Value); err != nil {
		return "", "", fmt.Errorf("error uploading file: %w", err)
	}

	return s.r2.PublicURL(key), kind, nil
}

func parseScheduledTime(value string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02T15:04"}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid scheduled time format: %s", value)
}

func (s *postService) List(ctx context.Context) ([]*models.Post, error) {
	posts, err := s.pr.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing posts")
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID int64) (*models.Post, error) {
	if postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info")
	}
	if post == nil {
		err := errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (s *postService) Remove(ctx context.Context, postID int64) error {
	if postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		err := errors.New("post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	if post.MediaURL != "" {
		if err := s.r2.Delete(ctx, KeyFromURL(post.MediaURL)); err != nil {
			slog.Info(err.Error())
		}
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post")
	}
	return nil
}
