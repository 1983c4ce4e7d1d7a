package publisher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	sleeps int
}

func (f *fakeClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.sleeps++
	return ctx.Err()
}

// igServer fakes the Graph API container flow. statuses is the sequence of
// status_code values returned by successive polls; the last one repeats.
type igServer struct {
	statuses  []string
	polls     int
	published bool
}

func (s *igServer) handler(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/media_publish"):
		s.published = true
		fmt.Fprint(w, `{"id":"ig_post_1"}`)
	case strings.HasSuffix(r.URL.Path, "/media"):
		fmt.Fprint(w, `{"id":"container_1"}`)
	default:
		idx := s.polls
		if idx >= len(s.statuses) {
			idx = len(s.statuses) - 1
		}
		s.polls++
		fmt.Fprintf(w, `{"status_code":%q}`, s.statuses[idx])
	}
}

func testInstagram(srv *httptest.Server) (*Instagram, *fakeClock) {
	clock := &fakeClock{}
	return &Instagram{client: srv.Client(), baseURL: srv.URL, clock: clock}, clock
}

func igCred() *models.PlatformCredential {
	return &models.PlatformCredential{Platform: "instagram", AccessToken: "token", PlatformUserID: "17841400000000000"}
}

func TestInstagramPublishImageSkipsPolling(t *testing.T) {
	backend := &igServer{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	ig, clock := testInstagram(srv)
	postID, err := ig.Publish(context.Background(), igCred(), Request{
		Caption:   "sunset",
		MediaURL:  "https://cdn.example.com/a.jpg",
		MediaKind: models.MediaKindImage,
	})

	assert.NoError(t, err)
	assert.Equal(t, "ig_post_1", postID)
	assert.True(t, backend.published)
	assert.Zero(t, clock.sleeps)
	assert.Zero(t, backend.polls)
}

func TestInstagramPublishVideoWaitsForFinished(t *testing.T) {
	backend := &igServer{statuses: []string{"IN_PROGRESS", "IN_PROGRESS", "FINISHED"}}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	ig, clock := testInstagram(srv)
	postID, err := ig.Publish(context.Background(), igCred(), Request{
		Caption:   "clip",
		MediaURL:  "https://cdn.example.com/a.mp4",
		MediaKind: models.MediaKindVideo,
	})

	assert.NoError(t, err)
	assert.Equal(t, "ig_post_1", postID)
	assert.Equal(t, 3, backend.polls)
	assert.Equal(t, 3, clock.sleeps)
}

func TestInstagramPublishVideoProcessingError(t *testing.T) {
	backend := &igServer{statuses: []string{"IN_PROGRESS", "IN_PROGRESS", "IN_PROGRESS", "IN_PROGRESS", "ERROR"}}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	ig, _ := testInstagram(srv)
	postID, err := ig.Publish(context.Background(), igCred(), Request{
		Caption:   "clip",
		MediaURL:  "https://cdn.example.com/a.mp4",
		MediaKind: models.MediaKindVideo,
	})

	assert.Error(t, err)
	assert.Equal(t, "instagram: video processing failed", err.Error())
	assert.Empty(t, postID)
	assert.False(t, backend.published)
	assert.Equal(t, 5, backend.polls)
}

func TestInstagramPublishVideoProcessingTimeout(t *testing.T) {
	backend := &igServer{statuses: []string{"IN_PROGRESS"}}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	ig, clock := testInstagram(srv)
	_, err := ig.Publish(context.Background(), igCred(), Request{
		Caption:   "clip",
		MediaURL:  "https://cdn.example.com/a.mp4",
		MediaKind: models.MediaKindVideo,
	})

	assert.Error(t, err)
	assert.Equal(t, "instagram: video processing timeout", err.Error())
	assert.Equal(t, igMaxPollAttempts, backend.polls)
	assert.Equal(t, igMaxPollAttempts, clock.sleeps)
	assert.False(t, backend.published)
}

func TestInstagramContainerCreationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid parameter"}}`)
	}))
	defer srv.Close()

	ig, _ := testInstagram(srv)
	_, err := ig.Publish(context.Background(), igCred(), Request{
		Caption:   "sunset",
		MediaURL:  "https://cdn.example.com/a.jpg",
		MediaKind: models.MediaKindImage,
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create media container")
	assert.Contains(t, err.Error(), "Invalid parameter")
}

func TestInstagramSupports(t *testing.T) {
	ig := NewInstagram()
	assert.True(t, ig.Supports(models.MediaKindImage))
	assert.True(t, ig.Supports(models.MediaKindVideo))
	assert.False(t, ig.Supports("gif"))
}
