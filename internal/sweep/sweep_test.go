package sweep

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakePostRepo struct {
	mu           sync.Mutex
	due          []*models.Post
	claimable    map[int64]bool
	outcomes     map[int64]recordedOutcome
	clearedMedia map[int64]bool
}

type recordedOutcome struct {
	status  string
	results models.PublishResults
}

func newFakePostRepo(due ...*models.Post) *fakePostRepo {
	claimable := make(map[int64]bool, len(due))
	for _, p := range due {
		claimable[p.ID] = true
	}
	return &fakePostRepo{
		due:          due,
		claimable:    claimable,
		outcomes:     make(map[int64]recordedOutcome),
		clearedMedia: make(map[int64]bool),
	}
}

func (f *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	for _, p := range f.due {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePostRepo) List(ctx context.Context) ([]*models.Post, error) { return f.due, nil }

func (f *fakePostRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	return f.due, nil
}

func (f *fakePostRepo) ListStaleWithMedia(ctx context.Context, status string, olderThan time.Time) ([]*models.Post, error) {
	return nil, nil
}

func (f *fakePostRepo) ClaimScheduled(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.claimable[id] {
		return false, nil
	}
	f.claimable[id] = false
	return true, nil
}

func (f *fakePostRepo) SetOutcome(ctx context.Context, id int64, status string, results models.PublishResults, postedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[id] = recordedOutcome{status: status, results: results}
	return nil
}

func (f *fakePostRepo) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	return nil
}

func (f *fakePostRepo) ClearMediaURL(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearedMedia[id] = true
	return nil
}

func (f *fakePostRepo) Remove(ctx context.Context, id int64) error { return nil }

type fakeCredRepo struct {
	creds []*models.PlatformCredential
	err   error
}

func (f *fakeCredRepo) Upsert(ctx context.Context, cred *models.PlatformCredential) error {
	return nil
}

func (f *fakeCredRepo) GetByPlatform(ctx context.Context, platform string) (*models.PlatformCredential, error) {
	return nil, nil
}

func (f *fakeCredRepo) ListByPlatforms(ctx context.Context, platforms []string) ([]*models.PlatformCredential, error) {
	if f.err != nil {
		return nil, f.err
	}
	requested := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		requested[p] = true
	}
	var out []*models.PlatformCredential
	for _, c := range f.creds {
		if requested[c.Platform] {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeCredRepo) List(ctx context.Context) ([]*models.PlatformCredential, error) {
	return f.creds, nil
}

func (f *fakeCredRepo) Remove(ctx context.Context, platform string) error { return nil }

type fakeStorage struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, key)
	return nil
}

type stubPublisher struct {
	name   string
	postID string
	err    error
}

func (s *stubPublisher) Platform() string              { return s.name }
func (s *stubPublisher) Supports(mediaKind string) bool { return true }

func (s *stubPublisher) Publish(ctx context.Context, cred *models.PlatformCredential, req publisher.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.postID, nil
}

func encryptedCred(t *testing.T, platform string) *models.PlatformCredential {
	t.Helper()
	token, err := utils.Encrypt([]byte("token-"+platform), testKey)
	require.NoError(t, err)
	return &models.PlatformCredential{Platform: platform, AccessToken: token, PlatformUserID: platform + "_user"}
}

func duePost(id int64, platforms ...string) *models.Post {
	return &models.Post{
		ID:          id,
		Caption:     "caption",
		Platforms:   platforms,
		MediaURL:    "https://media.example.com/obj_1.jpg",
		MediaKind:   models.MediaKindImage,
		ScheduledAt: sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
		Status:      models.PostStatusScheduled,
	}
}

func TestSweepPartialSuccessPostsAndCleansMedia(t *testing.T) {
	pr := newFakePostRepo(duePost(1, "instagram", "linkedin"))
	cr := &fakeCredRepo{creds: []*models.PlatformCredential{
		encryptedCred(t, "instagram"),
		encryptedCred(t, "linkedin"),
	}}
	storage := &fakeStorage{}
	d := publisher.NewDispatcher(time.Second,
		&stubPublisher{name: "instagram", err: errors.New("instagram: video processing failed")},
		&stubPublisher{name: "linkedin", postID: "li_1"},
	)

	s := NewSweeper(pr, cr, d, storage, testKey)
	summary, err := s.Run(context.Background(), time.Now())

	require.NoError(t, err)
	require.Equal(t, 1, summary.Count)

	outcome := summary.Outcomes[0]
	assert.Equal(t, int64(1), outcome.PostID)
	assert.Equal(t, models.PostStatusPosted, outcome.Status)
	require.Len(t, outcome.Results, 2)
	assert.False(t, outcome.Results[0].Success)
	assert.True(t, outcome.Results[1].Success)

	assert.Equal(t, models.PostStatusPosted, pr.outcomes[1].status)
	assert.Equal(t, []string{"obj_1.jpg"}, storage.deleted)
	assert.True(t, pr.clearedMedia[1])
}

func TestSweepAllPlatformsFailedMarksFailed(t *testing.T) {
	pr := newFakePostRepo(duePost(1, "instagram", "pinterest"))
	cr := &fakeCredRepo{creds: []*models.PlatformCredential{
		encryptedCred(t, "instagram"),
		encryptedCred(t, "pinterest"),
	}}
	storage := &fakeStorage{}
	d := publisher.NewDispatcher(time.Second,
		&stubPublisher{name: "instagram", err: errors.New("boom")},
		&stubPublisher{name: "pinterest", err: errors.New("boom")},
	)

	s := NewSweeper(pr, cr, d, storage, testKey)
	summary, err := s.Run(context.Background(), time.Now())

	require.NoError(t, err)
	require.Equal(t, 1, summary.Count)
	assert.Equal(t, models.PostStatusFailed, summary.Outcomes[0].Status)
	assert.Equal(t, models.PostStatusFailed, pr.outcomes[1].status)
	assert.Empty(t, storage.deleted)
	assert.False(t, pr.clearedMedia[1])
}

func TestSweepNoCredentialsMarksFailedWithoutClaim(t *testing.T) {
	pr := newFakePostRepo(duePost(1, "instagram"))
	cr := &fakeCredRepo{}
	s := NewSweeper(pr, cr, publisher.NewDispatcher(time.Second), &fakeStorage{}, testKey)

	summary, err := s.Run(context.Background(), time.Now())

	require.NoError(t, err)
	require.Equal(t, 1, summary.Count)
	assert.Equal(t, models.PostStatusFailed, summary.Outcomes[0].Status)
	assert.Equal(t, "no platform credentials found", summary.Outcomes[0].Error)

	recorded := pr.outcomes[1]
	assert.Equal(t, models.PostStatusFailed, recorded.status)
	require.Len(t, recorded.results, 1)
	assert.False(t, recorded.results[0].Success)
	assert.True(t, pr.claimable[1], "failing before publish must not claim the post")
}

func TestSweepSkipsAlreadyClaimedPost(t *testing.T) {
	post := duePost(1, "instagram")
	pr := newFakePostRepo(post)
	pr.claimable[1] = false
	cr := &fakeCredRepo{creds: []*models.PlatformCredential{encryptedCred(t, "instagram")}}
	d := publisher.NewDispatcher(time.Second, &stubPublisher{name: "instagram", postID: "ig_1"})

	s := NewSweeper(pr, cr, d, &fakeStorage{}, testKey)
	summary, err := s.Run(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Zero(t, summary.Count)
	assert.Empty(t, pr.outcomes)
}

func TestSweepMediaDeletionFailureKeepsPostPosted(t *testing.T) {
	pr := newFakePostRepo(duePost(1, "linkedin"))
	cr := &fakeCredRepo{creds: []*models.PlatformCredential{encryptedCred(t, "linkedin")}}
	storage := &fakeStorage{err: errors.New("bucket unavailable")}
	d := publisher.NewDispatcher(time.Second, &stubPublisher{name: "linkedin", postID: "li_1"})

	s := NewSweeper(pr, cr, d, storage, testKey)
	summary, err := s.Run(context.Background(), time.Now())

	require.NoError(t, err)
	require.Equal(t, 1, summary.Count)
	assert.Equal(t, models.PostStatusPosted, summary.Outcomes[0].Status)
	assert.Equal(t, models.PostStatusPosted, pr.outcomes[1].status)
	assert.False(t, pr.clearedMedia[1], "media url survives a failed deletion")
}

func TestSweepProcessesMultiplePostsIndependently(t *testing.T) {
	pr := newFakePostRepo(
		duePost(1, "instagram"),
		duePost(2, "linkedin"),
		duePost(3, "pinterest"),
	)
	cr := &fakeCredRepo{creds: []*models.PlatformCredential{
		encryptedCred(t, "instagram"),
		encryptedCred(t, "linkedin"),
		encryptedCred(t, "pinterest"),
	}}
	d := publisher.NewDispatcher(time.Second,
		&stubPublisher{name: "instagram", err: errors.New("boom")},
		&stubPublisher{name: "linkedin", postID: "li_1"},
		&stubPublisher{name: "pinterest", postID: "pin_1"},
	)

	s := NewSweeper(pr, cr, d, &fakeStorage{}, testKey)
	summary, err := s.Run(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, models.PostStatusFailed, pr.outcomes[1].status)
	assert.Equal(t, models.PostStatusPosted, pr.outcomes[2].status)
	assert.Equal(t, models.PostStatusPosted, pr.outcomes[3].status)
}
