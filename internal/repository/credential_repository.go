package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"github.com/postpilot/postpilot/internal/models"
)

type CredentialRepository interface {
	Upsert(ctx context.Context, cred *models.PlatformCredential) error
	GetByPlatform(ctx context.Context, platform string) (*models.PlatformCredential, error)
	ListByPlatforms(ctx context.Context, platforms []string) ([]*models.PlatformCredential, error)
	List(ctx context.Context) ([]*models.PlatformCredential, error)
	Remove(ctx context.Context, platform string) error
}

type credentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

const credentialColumns = `id, platform, access_token, platform_user_id, extras, created_at, updated_at`

// Upsert keeps one credential row per platform; reconnecting a platform
// replaces the stored token and extras.
func (r *credentialRepository) Upsert(ctx context.Context, cred *models.PlatformCredential) error {
	extras, err := json.Marshal(cred.Extras)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	query := `
		INSERT INTO platform_credentials (platform, access_token, platform_user_id, extras)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (platform) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			platform_user_id = EXCLUDED.platform_user_id,
			extras = EXCLUDED.extras,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = r.db.ExecContext(ctx, query, strings.ToLower(cred.Platform), cred.AccessToken, cred.PlatformUserID, extras)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func scanCredential(row interface{ Scan(...interface{}) error }) (*models.PlatformCredential, error) {
	var cred models.PlatformCredential
	var rawExtras []byte
	err := row.Scan(&cred.ID, &cred.Platform, &cred.AccessToken, &cred.PlatformUserID,
		&rawExtras, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(rawExtras) > 0 {
		if err := json.Unmarshal(rawExtras, &cred.Extras); err != nil {
			return nil, err
		}
	}
	return &cred, nil
}

func (r *credentialRepository) GetByPlatform(ctx context.Context, platform string) (*models.PlatformCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM platform_credentials WHERE platform = $1`
	cred, err := scanCredential(r.db.QueryRowContext(ctx, query, strings.ToLower(platform)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return cred, nil
}

func (r *credentialRepository) ListByPlatforms(ctx context.Context, platforms []string) ([]*models.PlatformCredential, error) {
	lowered := make([]string, len(platforms))
	for i, p := range platforms {
		lowered[i] = strings.ToLower(p)
	}

	query := `SELECT ` + credentialColumns + ` FROM platform_credentials WHERE platform = ANY($1)`
	return r.queryCredentials(ctx, query, pq.Array(lowered))
}

func (r *credentialRepository) List(ctx context.Context) ([]*models.PlatformCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM platform_credentials ORDER BY platform`
	return r.queryCredentials(ctx, query)
}

func (r *credentialRepository) queryCredentials(ctx context.Context, query string, args ...interface{}) ([]*models.PlatformCredential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var creds []*models.PlatformCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return creds, nil
}

func (r *credentialRepository) Remove(ctx context.Context, platform string) error {
	query := `DELETE FROM platform_credentials WHERE platform = $1`
	_, err := r.db.ExecContext(ctx, query, strings.ToLower(platform))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
