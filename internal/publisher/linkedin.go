package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/postpilot/postpilot/internal/models"
)

// LinkedIn publishes through the UGC post flow: register an upload asset,
// transfer the media bytes to the returned URL, then submit the post
// referencing the asset. Text-only posts skip the asset steps.
type LinkedIn struct {
	client *http.Client
	apiURL string
}

func NewLinkedIn() *LinkedIn {
	return &LinkedIn{
		client: newHTTPClient(),
		apiURL: "https://api.linkedin.com",
	}
}

func (li *LinkedIn) Platform() string { return "linkedin" }

func (li *LinkedIn) Supports(mediaKind string) bool { return true }

func (li *LinkedIn) Publish(ctx context.Context, cred *models.PlatformCredential, req Request) (string, error) {
	shareContent := map[string]interface{}{
		"shareCommentary":    map[string]string{"text": req.Caption},
		"shareMediaCategory": "NONE",
	}

	if req.MediaURL != "" {
		uploadURL, asset, err := li.registerUpload(ctx, cred)
		if err != nil {
			return "", err
		}

		media, err := downloadMedia(ctx, li.client, req.MediaURL)
		if err != nil {
			return "", fmt.Errorf("linkedin: %w", err)
		}

		if err := li.uploadAsset(ctx, cred.AccessToken, uploadURL, media); err != nil {
			return "", err
		}

		shareContent["shareMediaCategory"] = "IMAGE"
		shareContent["media"] = []map[string]interface{}{
			{
				"status":      "READY",
				"description": map[string]string{"text": "Image"},
				"media":       asset,
				"title":       map[string]string{"text": "Shared Image"},
			},
		}
	}

	payload := map[string]interface{}{
		"author":         "urn:li:person:" + cred.PlatformUserID,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	headers := map[string]string{
		"Authorization":             "Bearer " + cred.AccessToken,
		"X-Restli-Protocol-Version": "2.0.0",
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, li.client, li.apiURL+"/v2/ugcPosts", headers, payload, &result); err != nil {
		return "", fmt.Errorf("linkedin: failed to submit post: %w", err)
	}
	return result.ID, nil
}

func (li *LinkedIn) registerUpload(ctx context.Context, cred *models.PlatformCredential) (uploadURL, asset string, err error) {
	payload := map[string]interface{}{
		"registerUploadRequest": map[string]interface{}{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   "urn:li:person:" + cred.PlatformUserID,
			"serviceRelationships": []map[string]string{
				{
					"relationshipType": "OWNER",
					"identifier":       "urn:li:userGeneratedContent",
				},
			},
		},
	}

	headers := map[string]string{"Authorization": "Bearer " + cred.AccessToken}

	var result struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism struct {
				MediaUploadHTTPRequest struct {
					UploadURL string `json:"uploadUrl"`
				} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	if err := postJSON(ctx, li.client, li.apiURL+"/v2/assets?action=registerUpload", headers, payload, &result); err != nil {
		return "", "", fmt.Errorf("linkedin: failed to register upload: %w", err)
	}

	uploadURL = result.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	asset = result.Value.Asset
	if uploadURL == "" || asset == "" {
		return "", "", fmt.Errorf("linkedin: register upload returned no asset")
	}
	return uploadURL, asset, nil
}

func (li *LinkedIn) uploadAsset(ctx context.Context, accessToken, uploadURL string, media []byte) error {
	req, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, bytes.NewReader(media))
	if err != nil {
		return fmt.Errorf("linkedin: error creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := li.client.Do(req)
	if err != nil {
		return fmt.Errorf("linkedin: asset upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("linkedin: unexpected status code %d uploading asset: %s", resp.StatusCode, apiErrorMessage(body))
	}
	return nil
}
