package publisher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

const (
	igPollInterval    = 2 * time.Second
	igMaxPollAttempts = 30
)

// Instagram publishes through the Graph API container flow: create a media
// container, wait for server-side processing on video, then publish it.
type Instagram struct {
	client  *http.Client
	baseURL string
	clock   Clock
}

func NewInstagram() *Instagram {
	return &Instagram{
		client:  newHTTPClient(),
		baseURL: "https://graph.facebook.com/v18.0",
		clock:   realClock{},
	}
}

func (ig *Instagram) Platform() string { return "instagram" }

func (ig *Instagram) Supports(mediaKind string) bool {
	return mediaKind == models.MediaKindImage || mediaKind == models.MediaKindVideo
}

func (ig *Instagram) Publish(ctx context.Context, cred *models.PlatformCredential, req Request) (string, error) {
	creationID, err := ig.createContainer(ctx, cred, req)
	if err != nil {
		return "", err
	}

	if req.MediaKind == models.MediaKindVideo {
		if err := ig.waitForProcessing(ctx, creationID, cred.AccessToken); err != nil {
			return "", err
		}
	}

	return ig.publishContainer(ctx, cred, creationID)
}

func (ig *Instagram) createContainer(ctx context.Context, cred *models.PlatformCredential, req Request) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", ig.baseURL, cred.PlatformUserID)

	payload := map[string]interface{}{
		"caption":      req.Caption,
		"access_token": cred.AccessToken,
	}
	if req.MediaKind == models.MediaKindVideo {
		payload["media_type"] = "VIDEO"
		payload["video_url"] = req.MediaURL
	} else {
		payload["image_url"] = req.MediaURL
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, ig.client, endpoint, nil, payload, &result); err != nil {
		return "", fmt.Errorf("instagram: failed to create media container: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("instagram: no container id returned")
	}
	return result.ID, nil
}

// waitForProcessing polls the container's status_code until it is FINISHED.
// ERROR fails immediately; the attempt budget bounds the wait at roughly
// igMaxPollAttempts * igPollInterval.
func (ig *Instagram) waitForProcessing(ctx context.Context, creationID, accessToken string) error {
	for attempts := 0; attempts < igMaxPollAttempts; attempts++ {
		if err := ig.clock.Sleep(ctx, igPollInterval); err != nil {
			return fmt.Errorf("instagram: polling cancelled: %w", err)
		}

		status, err := ig.containerStatus(ctx, creationID, accessToken)
		if err != nil {
			return err
		}

		switch status {
		case "FINISHED":
			return nil
		case "ERROR":
			return fmt.Errorf("instagram: video processing failed")
		}
	}
	return fmt.Errorf("instagram: video processing timeout")
}

func (ig *Instagram) containerStatus(ctx context.Context, creationID, accessToken string) (string, error) {
	params := url.Values{}
	params.Set("fields", "status_code")
	params.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s?%s", ig.baseURL, creationID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("instagram: error creating request: %w", err)
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("instagram: status poll failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		StatusCode string `json:"status_code"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return "", fmt.Errorf("instagram: error parsing status response: %w", err)
	}
	return result.StatusCode, nil
}

func (ig *Instagram) publishContainer(ctx context.Context, cred *models.PlatformCredential, creationID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", ig.baseURL, cred.PlatformUserID)
	payload := map[string]string{
		"creation_id":  creationID,
		"access_token": cred.AccessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, ig.client, endpoint, nil, payload, &result); err != nil {
		return "", fmt.Errorf("instagram: failed to publish container: %w", err)
	}
	return result.ID, nil
}
