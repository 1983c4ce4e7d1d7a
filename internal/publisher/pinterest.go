package publisher

import (
	"context"
	"fmt"
	"net/http"

	"github.com/postpilot/postpilot/internal/models"
)

const pinTitleLimit = 100

// Pinterest creates a pin in a single call. Image only; the target board
// comes from the credential's extras.
type Pinterest struct {
	client *http.Client
	apiURL string
}

func NewPinterest() *Pinterest {
	return &Pinterest{
		client: newHTTPClient(),
		apiURL: "https://api.pinterest.com/v5",
	}
}

func (p *Pinterest) Platform() string { return "pinterest" }

func (p *Pinterest) Supports(mediaKind string) bool {
	return mediaKind == models.MediaKindImage
}

func (p *Pinterest) Publish(ctx context.Context, cred *models.PlatformCredential, req Request) (string, error) {
	boardID := cred.Extras[models.ExtraBoardID]
	if boardID == "" {
		return "", fmt.Errorf("pinterest: credential has no %s", models.ExtraBoardID)
	}

	payload := map[string]interface{}{
		"title":       truncateCaption(req.Caption, pinTitleLimit),
		"description": req.Caption,
		"board_id":    boardID,
		"media_source": map[string]string{
			"source_type": "image_url",
			"url":         req.MediaURL,
		},
	}

	headers := map[string]string{"Authorization": "Bearer " + cred.AccessToken}

	var result struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, p.client, p.apiURL+"/pins", headers, payload, &result); err != nil {
		return "", fmt.Errorf("pinterest: failed to create pin: %w", err)
	}
	return result.ID, nil
}
