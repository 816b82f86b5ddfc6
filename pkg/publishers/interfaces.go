package publishers

import "context"

// Publisher sends enrichment result events to a downstream sink (SQS, SNS,
// DynamoDB, HTTP, ...).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}
