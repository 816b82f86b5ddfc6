package pipeline

import (
	"context"

	"github.com/ajbarea/aws-image-translate/internal/domain"
)

// The orchestrator receives all of its collaborators through these interfaces
// so tests can substitute in-memory fakes.

// StateStore persists the per-source checkpoint: the newest post identifier
// fully accounted for.
type StateStore interface {
	Get(ctx context.Context, sourceKey string) (postID string, found bool, err error)
	Put(ctx context.Context, sourceKey, postID string) error
}

// ObjectStore is durable, idempotent binary storage keyed by deterministic keys.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// FeedClient yields up to limit candidate posts for a source, newest first.
// Pagination of the underlying feed is hidden behind this call.
type FeedClient interface {
	Fetch(ctx context.Context, sourceKey string, limit int) ([]domain.CandidateItem, error)
}

// MediaFetcher downloads one remote asset. Single attempt: retries are the
// orchestrator's job, via the shared RetryPolicy.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// TextExtractor pulls embedded text out of a stored asset. An empty string is
// a valid result meaning "no text found".
type TextExtractor interface {
	ExtractText(ctx context.Context, assetKey string) (string, error)
}

// LanguageDetector identifies the dominant language of non-empty text.
type LanguageDetector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// Translator translates text between language codes.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// ResultSink durably records one enrichment result. Sink failures are logged
// but never abort the run.
type ResultSink interface {
	Record(ctx context.Context, res domain.EnrichmentResult) error
}
