package models

import "time"

// PlatformCredential is the normalized token record for one platform.
// One row per platform; the access token is AES-GCM encrypted at rest.
type PlatformCredential struct {
	ID             int64             `db:"id" json:"id"`
	Platform       string            `db:"platform" json:"platform"`
	AccessToken    string            `db:"access_token" json:"-"`
	PlatformUserID string            `db:"platform_user_id" json:"platform_user_id"`
	Extras         map[string]string `db:"extras" json:"extras"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// Keys used in the extras bag. Each publisher validates the keys it needs
// instead of trusting the map blindly.
const (
	ExtraBoardID      = "default_board_id"
	ExtraRefreshToken = "refresh_token"
	ExtraExpiresIn    = "expires_in"
	ExtraChannelID    = "channel_id"
)
