package media

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ajbarea/aws-image-translate/internal/pipeline"
	"github.com/ajbarea/aws-image-translate/pkg/httpclient"
)

const (
	defaultMaxBytes = int64(10 << 20) // 10 MiB
	defaultTimeout  = 15 * time.Second
)

// allowedContentTypes is the image allow-list. Anything else is a permanent
// unsupported-media failure, never retried.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// Fetcher downloads a single remote asset into memory. It makes exactly one
// attempt per call; the orchestrator's shared retry policy owns retries.
type Fetcher struct {
	client   httpclient.Client
	maxBytes int64
}

// NewFetcher builds a media fetcher. A nil client gets a default resty client.
func NewFetcher(client httpclient.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = httpclient.NewRestyClient(defaultTimeout)
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads url and validates size and content type. Transport errors
// and retryable HTTP statuses come back transient; validation failures come
// back permanent.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if strings.TrimSpace(url) == "" {
		return nil, "", pipeline.Permanent(fmt.Errorf("media url is empty"))
	}

	resp, err := f.client.Get(ctx, url, nil)
	if err != nil {
		return nil, "", pipeline.Transient(fmt.Errorf("fetch media: %w", err))
	}

	if err := classifyStatus(resp.StatusCode()); err != nil {
		return nil, "", err
	}

	contentType := normalizeContentType(resp.Header("Content-Type"))
	if _, ok := allowedContentTypes[contentType]; !ok {
		return nil, "", pipeline.Permanent(fmt.Errorf("%w: content type %q", pipeline.ErrUnsupportedMedia, contentType))
	}

	body := resp.Body()
	if int64(len(body)) > f.maxBytes {
		return nil, "", pipeline.Permanent(fmt.Errorf("%w: %d bytes exceeds ceiling %d", pipeline.ErrUnsupportedMedia, len(body), f.maxBytes))
	}
	if len(body) == 0 {
		return nil, "", pipeline.Permanent(fmt.Errorf("%w: empty response body", pipeline.ErrUnsupportedMedia))
	}

	return body, contentType, nil
}

// classifyStatus maps HTTP statuses onto the retry taxonomy: 429 and 5xx are
// transient, other non-200s permanent.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return pipeline.Transient(fmt.Errorf("media fetch returned status %d", status))
	default:
		return pipeline.Permanent(fmt.Errorf("media fetch returned status %d", status))
	}
}

func normalizeContentType(ct string) string {
	ct = strings.TrimSpace(strings.ToLower(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
