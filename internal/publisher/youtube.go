package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/postpilot/postpilot/internal/models"
)

const ytTitleLimit = 100

// YouTube uploads through a resumable session: submit metadata first, then
// PUT the full video payload to the session URL the API hands back.
type YouTube struct {
	client    *http.Client
	uploadURL string
}

func NewYouTube() *YouTube {
	return &YouTube{
		client:    newHTTPClient(),
		uploadURL: "https://www.googleapis.com/upload/youtube/v3/videos",
	}
}

func (yt *YouTube) Platform() string { return "youtube" }

func (yt *YouTube) Supports(mediaKind string) bool {
	return mediaKind == models.MediaKindVideo
}

func (yt *YouTube) Publish(ctx context.Context, cred *models.PlatformCredential, req Request) (string, error) {
	sessionURL, err := yt.initiateSession(ctx, cred.AccessToken, req.Caption)
	if err != nil {
		return "", err
	}

	video, err := downloadMedia(ctx, yt.client, req.MediaURL)
	if err != nil {
		return "", fmt.Errorf("youtube: %w", err)
	}

	return yt.uploadVideo(ctx, sessionURL, video)
}

func (yt *YouTube) initiateSession(ctx context.Context, accessToken, caption string) (string, error) {
	payload := map[string]interface{}{
		"snippet": map[string]string{
			"title":       truncateCaption(caption, ytTitleLimit),
			"description": caption,
			"categoryId":  "22",
		},
		"status": map[string]string{
			"privacyStatus": "public",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("youtube: error marshalling metadata: %w", err)
	}

	endpoint := yt.uploadURL + "?uploadType=resumable&part=snippet,status"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("youtube: error creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := yt.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("youtube: failed to initiate upload session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("youtube: unexpected status code %d initiating upload: %s", resp.StatusCode, apiErrorMessage(respBody))
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("youtube: no upload session location returned")
	}
	return sessionURL, nil
}

func (yt *YouTube) uploadVideo(ctx context.Context, sessionURL string, video []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", sessionURL, bytes.NewReader(video))
	if err != nil {
		return "", fmt.Errorf("youtube: error creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "video/*")

	resp, err := yt.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube: video upload failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return "", fmt.Errorf("youtube: %w", err)
	}
	return result.ID, nil
}
