package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/postpilot/postpilot/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	ListStaleWithMedia(ctx context.Context, status string, olderThan time.Time) ([]*models.Post, error)
	ClaimScheduled(ctx context.Context, id int64) (bool, error)
	SetOutcome(ctx context.Context, id int64, status string, results models.PublishResults, postedAt time.Time) error
	UpdatePostStatus(ctx context.Context, status string, postID int64) error
	ClearMediaURL(ctx context.Context, id int64) error
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, caption, platforms, media_url, media_kind, scheduled_at, status, results, posted_at, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (caption, platforms, media_url, media_kind, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	var err error

	args := []interface{}{post.Caption, pq.Array(post.Platforms), post.MediaURL, post.MediaKind, post.ScheduledAt, post.Status}
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var post models.Post
	var rawResults []byte
	err := row.Scan(&post.ID, &post.Caption, pq.Array(&post.Platforms), &post.MediaURL, &post.MediaKind,
		&post.ScheduledAt, &post.Status, &rawResults, &post.PostedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(rawResults) > 0 {
		if err := json.Unmarshal(rawResults, &post.Results); err != nil {
			return nil, err
		}
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) List(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC`
	return r.queryPosts(ctx, query)
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_at <= $2`
	return r.queryPosts(ctx, query, models.PostStatusScheduled, now)
}

func (r *postRepository) ListStaleWithMedia(ctx context.Context, status string, olderThan time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND media_url <> '' AND created_at < $2`
	return r.queryPosts(ctx, query, status, olderThan)
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...interface{}) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// ClaimScheduled transitions a post to posting only if it is still scheduled.
// Returns false when another sweep already claimed it.
func (r *postRepository) ClaimScheduled(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusPosting, time.Now(), id, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) SetOutcome(ctx context.Context, id int64, status string, results models.PublishResults, postedAt time.Time) error {
	rawResults, err := json.Marshal(results)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	var posted sql.NullTime
	if status == models.PostStatusPosted {
		posted = sql.NullTime{Time: postedAt, Valid: true}
	}

	query := `
		UPDATE posts
		SET status = $1,
			results = $2,
			posted_at = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err = r.db.ExecContext(ctx, query, status, rawResults, posted, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) ClearMediaURL(ctx context.Context, id int64) error {
	query := `UPDATE posts SET media_url = '', updated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
