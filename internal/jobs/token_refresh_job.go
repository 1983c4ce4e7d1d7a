package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	cfg "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenRefreshJob keeps long-lived platform tokens fresh. Instagram rotates
// its own long-lived token; YouTube goes through the standard OAuth refresh
// grant. LinkedIn and Pinterest have no refresh flow here.
type TokenRefreshJob struct {
	cfg cfg.Config
	cr  repository.CredentialRepository
}

func NewTokenRefreshJob(cfg cfg.Config, cr repository.CredentialRepository) *TokenRefreshJob {
	return &TokenRefreshJob{cfg: cfg, cr: cr}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	creds, err := j.cr.List(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 4)

	for _, cred := range creds {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(cred *models.PlatformCredential) {
			defer wg.Done()
			defer func() { <-semaphore }()

			var err error
			switch cred.Platform {
			case "instagram":
				err = j.refreshInstagram(ctx, cred)
			case "youtube":
				err = j.refreshYoutube(ctx, cred)
			default:
				return
			}
			if err != nil {
				slog.Info("unable to refresh token", "platform", cred.Platform, "error", err.Error())
			}
		}(cred)
	}

	wg.Wait()
}

func (j *TokenRefreshJob) refreshInstagram(ctx context.Context, cred *models.PlatformCredential) error {
	accessToken, err := utils.Decrypt(cred.AccessToken, []byte(j.cfg.SecretKey))
	if err != nil {
		return err
	}

	refreshURL := fmt.Sprintf(
		"https://graph.instagram.com/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		accessToken,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", refreshURL, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("instagram refresh returned status %d", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	encrypted, err := utils.Encrypt([]byte(result.AccessToken), []byte(j.cfg.SecretKey))
	if err != nil {
		return err
	}

	cred.AccessToken = encrypted
	if cred.Extras == nil {
		cred.Extras = map[string]string{}
	}
	cred.Extras[models.ExtraExpiresIn] = strconv.FormatInt(result.ExpiresIn, 10)

	return j.cr.Upsert(ctx, cred)
}

func (j *TokenRefreshJob) refreshYoutube(ctx context.Context, cred *models.PlatformCredential) error {
	encryptedRefresh := cred.Extras[models.ExtraRefreshToken]
	if encryptedRefresh == "" {
		return fmt.Errorf("credential has no refresh token")
	}

	refreshToken, err := utils.Decrypt(encryptedRefresh, []byte(j.cfg.SecretKey))
	if err != nil {
		return err
	}

	conf := &oauth2.Config{
		ClientID:     j.cfg.Google.ClientID,
		ClientSecret: j.cfg.Google.ClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}

	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	encrypted, err := utils.Encrypt([]byte(token.AccessToken), []byte(j.cfg.SecretKey))
	if err != nil {
		return err
	}

	cred.AccessToken = encrypted
	return j.cr.Upsert(ctx, cred)
}
