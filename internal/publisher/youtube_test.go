package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
)

func ytCred() *models.PlatformCredential {
	return &models.PlatformCredential{Platform: "youtube", AccessToken: "token", PlatformUserID: "UC123"}
}

func TestYouTubePublishResumableUpload(t *testing.T) {
	var metadata map[string]interface{}
	var uploaded []byte

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "resumable", r.URL.Query().Get("uploadType"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		json.NewDecoder(r.Body).Decode(&metadata)
		w.Header().Set("Location", srv.URL+"/session")
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		uploaded, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"id":"yt_video_1"}`)
	})
	mux.HandleFunc("/media/a.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp4-bytes"))
	})

	yt := &YouTube{client: srv.Client(), uploadURL: srv.URL + "/videos"}
	postID, err := yt.Publish(context.Background(), ytCred(), Request{
		Caption:   "weekly vlog",
		MediaURL:  srv.URL + "/media/a.mp4",
		MediaKind: models.MediaKindVideo,
	})

	assert.NoError(t, err)
	assert.Equal(t, "yt_video_1", postID)
	assert.Equal(t, "mp4-bytes", string(uploaded))

	snippet := metadata["snippet"].(map[string]interface{})
	assert.Equal(t, "weekly vlog", snippet["title"])
	assert.Equal(t, "weekly vlog", snippet["description"])
	assert.Equal(t, "22", snippet["categoryId"])
	status := metadata["status"].(map[string]interface{})
	assert.Equal(t, "public", status["privacyStatus"])
}

func TestYouTubeTitleTruncated(t *testing.T) {
	var metadata map[string]interface{}
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&metadata)
		w.Header().Set("Location", srv.URL+"/session")
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"yt_video_2"}`)
	})
	mux.HandleFunc("/media/a.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp4-bytes"))
	})

	caption := strings.Repeat("y", 180)
	yt := &YouTube{client: srv.Client(), uploadURL: srv.URL + "/videos"}
	_, err := yt.Publish(context.Background(), ytCred(), Request{
		Caption:   caption,
		MediaURL:  srv.URL + "/media/a.mp4",
		MediaKind: models.MediaKindVideo,
	})

	assert.NoError(t, err)
	snippet := metadata["snippet"].(map[string]interface{})
	assert.Len(t, snippet["title"], ytTitleLimit)
	assert.Equal(t, caption, snippet["description"])
}

func TestYouTubeSessionInitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"quotaExceeded"}}`)
	}))
	defer srv.Close()

	yt := &YouTube{client: srv.Client(), uploadURL: srv.URL + "/videos"}
	_, err := yt.Publish(context.Background(), ytCred(), Request{
		Caption:   "weekly vlog",
		MediaURL:  "https://cdn.example.com/a.mp4",
		MediaKind: models.MediaKindVideo,
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "initiating upload")
	assert.Contains(t, err.Error(), "quotaExceeded")
}

func TestYouTubeMissingSessionLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	yt := &YouTube{client: srv.Client(), uploadURL: srv.URL + "/videos"}
	_, err := yt.Publish(context.Background(), ytCred(), Request{
		Caption:   "weekly vlog",
		MediaURL:  "https://cdn.example.com/a.mp4",
		MediaKind: models.MediaKindVideo,
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no upload session location")
}

func TestYouTubeSupportsVideoOnly(t *testing.T) {
	yt := NewYouTube()
	assert.True(t, yt.Supports(models.MediaKindVideo))
	assert.False(t, yt.Supports(models.MediaKindImage))
}
