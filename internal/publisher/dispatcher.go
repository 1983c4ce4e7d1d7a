package publisher

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

// DefaultPublishTimeout bounds every outbound publish so a stalled platform
// API cannot stall the whole sweep. It must exceed the Instagram video poll
// budget (30 polls at 2s).
const DefaultPublishTimeout = 2 * time.Minute

// Dispatcher fans a publish request out to the requested platforms through
// the registered publishers. One publisher per platform name; platforms with
// no publisher, no credential, or an unsupported media kind are skipped
// without emitting a result.
type Dispatcher struct {
	publishers map[string]Publisher
	timeout    time.Duration
}

func NewDispatcher(timeout time.Duration, publishers ...Publisher) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	byName := make(map[string]Publisher, len(publishers))
	for _, p := range publishers {
		byName[p.Platform()] = p
	}
	return &Dispatcher{publishers: byName, timeout: timeout}
}

// Dispatch attempts each requested platform in order. A failure on one
// platform becomes a failed result; the remaining platforms are still
// attempted. Result order matches the requested platform order.
func (d *Dispatcher) Dispatch(ctx context.Context, platforms []string, req Request, creds map[string]*models.PlatformCredential) models.PublishResults {
	var results models.PublishResults

	for _, platform := range platforms {
		name := strings.ToLower(platform)

		pub, ok := d.publishers[name]
		if !ok {
			slog.Warn("platform not supported", "platform", platform)
			continue
		}

		cred, ok := creds[name]
		if !ok || cred == nil {
			continue
		}

		if !pub.Supports(req.MediaKind) {
			continue
		}

		results = append(results, d.publish(ctx, pub, cred, req))
	}

	return results
}

func (d *Dispatcher) publish(ctx context.Context, pub Publisher, cred *models.PlatformCredential, req Request) models.PublishResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	postID, err := pub.Publish(ctx, cred, req)
	if err != nil {
		slog.Info("publish failed", "platform", pub.Platform(), "error", err.Error())
		return models.PublishResult{
			Platform: pub.Platform(),
			Success:  false,
			Error:    err.Error(),
		}
	}

	return models.PublishResult{
		Platform: pub.Platform(),
		Success:  true,
		PostID:   postID,
	}
}
