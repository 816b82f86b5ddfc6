package feeds

import (
	"context"

	"github.com/ajbarea/aws-image-translate/internal/domain"
	"github.com/ajbarea/aws-image-translate/pkg/httpclient"
)

// Fetcher retrieves candidate items for one source, newest first. Concrete
// implementations live in source-type-specific files (e.g., reddit.go).
type Fetcher interface {
	Type() string
	Fetch(ctx context.Context, src Source, limit int) ([]domain.CandidateItem, error)
}

// FetcherRegistry resolves the fetcher implementation for a given source config.
type FetcherRegistry interface {
	FetcherFor(src Source) (Fetcher, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within feeds.
type HTTPClient = httpclient.Client
