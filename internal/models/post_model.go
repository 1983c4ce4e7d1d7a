package models

import (
	"database/sql"
	"time"
)

type Post struct {
	ID          int64          `db:"id" json:"id"`
	Caption     string         `db:"caption" json:"caption"`
	Platforms   []string       `db:"platforms" json:"platforms"`
	MediaURL    string         `db:"media_url" json:"media_url"`
	MediaKind   string         `db:"media_kind" json:"media_kind"` // image, video
	ScheduledAt sql.NullTime   `db:"scheduled_at" json:"scheduled_at"`
	Status      string         `db:"status" json:"status"` // draft, scheduled, posting, posted, failed
	Results     PublishResults `db:"results" json:"results"`
	PostedAt    sql.NullTime   `db:"posted_at" json:"posted_at"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// PublishResult records one platform's outcome for a single publish attempt.
// Overwritten wholesale on every attempt, never merged.
type PublishResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	PostID   string `json:"post_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

type PublishResults []PublishResult

// AllFailed reports whether the attempt as a whole failed. An empty result
// set counts as failed: nothing was published.
func (rs PublishResults) AllFailed() bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if r.Success {
			return false
		}
	}
	return true
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPosting   = "posting"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
)

const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)
