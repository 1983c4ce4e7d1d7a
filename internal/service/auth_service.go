package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	cfg "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
	"github.com/postpilot/postpilot/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"
)

const (
	INSTAGRAM_AUTH_URL  = "https://www.facebook.com/v18.0/dialog/oauth"
	INSTAGRAM_TOKEN_URL = "https://api.instagram.com/oauth/access_token"
	INSTAGRAM_GRAPH_URL = "https://graph.instagram.com"
	LINKEDIN_AUTH_URL   = "https://www.linkedin.com/oauth/v2/authorization"
	LINKEDIN_TOKEN_URL  = "https://www.linkedin.com/oauth/v2/accessToken"
	LINKEDIN_API_URL    = "https://api.linkedin.com"
	PINTEREST_AUTH_URL  = "https://www.pinterest.com/oauth/"
	PINTEREST_TOKEN_URL = "https://api.pinterest.com/v5/oauth/token"
	PINTEREST_API_URL   = "https://api.pinterest.com/v5"
)

var ErrNoAuthorizationCode = errors.New("no authorization code")

// AuthService drives the per-platform authorization-code flow and persists
// the resulting credential, one record per platform.
type AuthService interface {
	GetAuthURL(ctx context.Context, platform string) (string, error)
	HandleCallback(ctx context.Context, platform, code string) error
}

type authService struct {
	cfg cfg.Config
	cr  repository.CredentialRepository
}

func NewAuthService(cfg cfg.Config, cr repository.CredentialRepository) AuthService {
	return &authService{cfg: cfg, cr: cr}
}

func (s *authService) GetAuthURL(ctx context.Context, platform string) (string, error) {
	state, err := utils.GenerateStateToken(s.cfg.SecretKey, platform, 15*time.Minute)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(platform) {
	case "instagram":
		params := url.Values{}
		params.Add("client_id", s.cfg.Instagram.ClientID)
		params.Add("redirect_uri", s.cfg.Instagram.RedirectURI)
		params.Add("scope", "instagram_basic,instagram_content_publish")
		params.Add("response_type", "code")
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", INSTAGRAM_AUTH_URL, params.Encode()), nil

	case "linkedin":
		params := url.Values{}
		params.Add("client_id", s.cfg.LinkedIn.ClientID)
		params.Add("redirect_uri", s.cfg.LinkedIn.RedirectURI)
		params.Add("scope", "openid profile w_member_social")
		params.Add("response_type", "code")
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", LINKEDIN_AUTH_URL, params.Encode()), nil

	case "pinterest":
		params := url.Values{}
		params.Add("client_id", s.cfg.Pinterest.ClientID)
		params.Add("redirect_uri", s.cfg.Pinterest.RedirectURI)
		params.Add("scope", "boards:read,pins:read,pins:write")
		params.Add("response_type", "code")
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", PINTEREST_AUTH_URL, params.Encode()), nil

	case "youtube":
		conf := s.googleOAuthConfig()
		return conf.AuthCodeURL(state, oauth2.AccessTypeOffline), nil

	default:
		return "", fmt.Errorf("invalid platform: %s", platform)
	}
}

func (s *authService) HandleCallback(ctx context.Context, platform, code string) error {
	if code == "" {
		slog.Info(ErrNoAuthorizationCode.Error())
		return ErrNoAuthorizationCode
	}

	var cred *models.PlatformCredential
	var err error

	switch strings.ToLower(platform) {
	case "instagram":
		cred, err = s.exchangeInstagram(ctx, code)
	case "linkedin":
		cred, err = s.exchangeLinkedIn(ctx, code)
	case "pinterest":
		cred, err = s.exchangePinterest(ctx, code)
	case "youtube":
		cred, err = s.exchangeYoutube(ctx, code)
	default:
		return fmt.Errorf("invalid platform: %s", platform)
	}
	if err != nil {
		return err
	}

	encryptedToken, err := utils.Encrypt([]byte(cred.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	cred.AccessToken = encryptedToken

	if refresh, ok := cred.Extras[models.ExtraRefreshToken]; ok && refresh != "" {
		encryptedRefresh, err := utils.Encrypt([]byte(refresh), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
		cred.Extras[models.ExtraRefreshToken] = encryptedRefresh
	}

	return s.cr.Upsert(ctx, cred)
}

func (s *authService) exchangeInstagram(ctx context.Context, code string) (*models.PlatformCredential, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.Instagram.ClientID)
	data.Set("client_secret", s.cfg.Instagram.ClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.Instagram.RedirectURI)
	data.Set("code", code)

	var shortLived transfer.InstagramTokenResponse
	if err := postForm(ctx, INSTAGRAM_TOKEN_URL, data, nil, &shortLived); err != nil {
		return nil, fmt.Errorf("instagram token exchange failed: %w", err)
	}

	longLivedURL := fmt.Sprintf(
		"%s/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		INSTAGRAM_GRAPH_URL, s.cfg.Instagram.ClientSecret, shortLived.AccessToken,
	)

	var longLived transfer.InstagramLongLivedToken
	if err := getJSON(ctx, longLivedURL, "", &longLived); err != nil {
		return nil, fmt.Errorf("instagram long-lived token exchange failed: %w", err)
	}

	return &models.PlatformCredential{
		Platform:       "instagram",
		AccessToken:    longLived.AccessToken,
		PlatformUserID: strconv.FormatInt(shortLived.UserID, 10),
		Extras: map[string]string{
			models.ExtraExpiresIn: strconv.FormatInt(longLived.ExpiresIn, 10),
		},
	}, nil
}

func (s *authService) exchangeLinkedIn(ctx context.Context, code string) (*models.PlatformCredential, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", s.cfg.LinkedIn.ClientID)
	data.Set("client_secret", s.cfg.LinkedIn.ClientSecret)
	data.Set("redirect_uri", s.cfg.LinkedIn.RedirectURI)

	var token transfer.OAuthTokenResponse
	if err := postForm(ctx, LINKEDIN_TOKEN_URL, data, nil, &token); err != nil {
		return nil, fmt.Errorf("linkedin token exchange failed: %w", err)
	}

	var userInfo transfer.LinkedInUserInfo
	if err := getJSON(ctx, LINKEDIN_API_URL+"/v2/userinfo", token.AccessToken, &userInfo); err != nil {
		return nil, fmt.Errorf("linkedin userinfo fetch failed: %w", err)
	}

	return &models.PlatformCredential{
		Platform:       "linkedin",
		AccessToken:    token.AccessToken,
		PlatformUserID: userInfo.Sub,
		Extras:         map[string]string{},
	}, nil
}

func (s *authService) exchangePinterest(ctx context.Context, code string) (*models.PlatformCredential, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", s.cfg.Pinterest.RedirectURI)

	basicAuth := &basicCredentials{username: s.cfg.Pinterest.ClientID, password: s.cfg.Pinterest.ClientSecret}

	var token transfer.OAuthTokenResponse
	if err := postForm(ctx, PINTEREST_TOKEN_URL, data, basicAuth, &token); err != nil {
		return nil, fmt.Errorf("pinterest token exchange failed: %w", err)
	}

	var boards transfer.PinterestBoards
	if err := getJSON(ctx, PINTEREST_API_URL+"/boards", token.AccessToken, &boards); err != nil {
		return nil, fmt.Errorf("pinterest boards fetch failed: %w", err)
	}

	extras := map[string]string{}
	if len(boards.Items) > 0 {
		extras[models.ExtraBoardID] = boards.Items[0].ID
	}

	return &models.PlatformCredential{
		Platform:       "pinterest",
		AccessToken:    token.AccessToken,
		PlatformUserID: "pinterest_user",
		Extras:         extras,
	}, nil
}

func (s *authService) exchangeYoutube(ctx context.Context, code string) (*models.PlatformCredential, error) {
	conf := s.googleOAuthConfig()

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("youtube token exchange failed: %w", err)
	}

	extras := map[string]string{}
	if token.RefreshToken != "" {
		extras[models.ExtraRefreshToken] = token.RefreshToken
	}

	channelID := "youtube_user"
	client := conf.Client(ctx, token)
	yt, err := youtubeapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		slog.Info(err.Error())
	} else {
		channels, err := yt.Channels.List([]string{"snippet"}).Mine(true).Do()
		if err != nil {
			slog.Info(err.Error())
		} else if len(channels.Items) > 0 {
			channelID = channels.Items[0].Id
			extras[models.ExtraChannelID] = channels.Items[0].Id
		}
	}

	return &models.PlatformCredential{
		Platform:       "youtube",
		AccessToken:    token.AccessToken,
		PlatformUserID: channelID,
		Extras:         extras,
	}, nil
}

func (s *authService) googleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.Google.ClientID,
		ClientSecret: s.cfg.Google.ClientSecret,
		RedirectURL:  s.cfg.Google.RedirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload", "https://www.googleapis.com/auth/youtube.readonly"},
		Endpoint:     google.Endpoint,
	}
}

type basicCredentials struct {
	username string
	password string
}

func postForm(ctx context.Context, endpoint string, data url.Values, basic *basicCredentials, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic != nil {
		req.SetBasicAuth(basic.username, basic.password)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	return nil
}

func getJSON(ctx context.Context, endpoint, bearer string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
