package publishers

import (
	"time"

	"github.com/ajbarea/aws-image-translate/internal/domain"
)

// Event represents the payload published downstream for each item that
// reached a terminal state.
type Event struct {
	SourceKey   string                  `json:"source_key"`
	PostID      string                  `json:"post_id"`
	Result      domain.EnrichmentResult `json:"result"`
	PublishedAt time.Time               `json:"published_at"`
}

// NewEvent constructs an Event for the given enrichment result.
func NewEvent(res domain.EnrichmentResult) Event {
	return Event{
		SourceKey:   res.SourceKey,
		PostID:      res.PostID,
		Result:      res,
		PublishedAt: time.Now().UTC(),
	}
}
