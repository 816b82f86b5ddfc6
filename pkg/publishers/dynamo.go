package publishers

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// dynamoClient defines the minimal subset of the DynamoDB client used by
// dynamoPublisher.
type dynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// resultRecord is the item shape written to the results table.
type resultRecord struct {
	SourceKey      string `dynamodbav:"source_key"`
	PostID         string `dynamodbav:"post_id"`
	Status         string `dynamodbav:"status"`
	AssetKey       string `dynamodbav:"asset_key,omitempty"`
	ExtractedText  string `dynamodbav:"extracted_text,omitempty"`
	SourceLanguage string `dynamodbav:"source_language,omitempty"`
	TargetLanguage string `dynamodbav:"target_language,omitempty"`
	TranslatedText string `dynamodbav:"translated_text,omitempty"`
	FailedStage    string `dynamodbav:"failed_stage,omitempty"`
	FailureReason  string `dynamodbav:"failure_reason,omitempty"`
	ProcessedAt    string `dynamodbav:"processed_at"`
}

// dynamoPublisher writes each result into a DynamoDB table. This sink is the
// durable record of translation results.
type dynamoPublisher struct {
	id     string
	typ    string
	table  string
	client dynamoClient
	log    Logger
}

// newDynamoPublisher creates a DynamoDB results publisher with the given configuration.
func newDynamoPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Dynamo == nil {
		return nil, fmt.Errorf("publisher %q missing dynamodb configuration", cfg.ID)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Dynamo.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &dynamoPublisher{
		id:     cfg.ID,
		typ:    TypeDynamoDB,
		table:  cfg.Dynamo.Table,
		client: dynamodb.NewFromConfig(awsCfg),
		log:    ensureLogger(log),
	}, nil
}

func (d *dynamoPublisher) ID() string   { return d.id }
func (d *dynamoPublisher) Type() string { return d.typ }

// Publish writes the result record to the table, keyed by source and post.
// Re-publishing the same result overwrites the identical item, so re-runs
// stay idempotent.
func (d *dynamoPublisher) Publish(ctx context.Context, evt Event) error {
	res := evt.Result
	item, err := attributevalue.MarshalMap(resultRecord{
		SourceKey:      res.SourceKey,
		PostID:         res.PostID,
		Status:         string(res.Status),
		AssetKey:       res.AssetKey,
		ExtractedText:  res.ExtractedText,
		SourceLanguage: res.SourceLanguage,
		TargetLanguage: res.TargetLanguage,
		TranslatedText: res.TranslatedText,
		FailedStage:    string(res.FailedStage),
		FailureReason:  res.FailureReason,
		ProcessedAt:    res.ProcessedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode result item: %w", err)
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}); err != nil {
		d.log.ErrorObj("dynamodb publisher write failed", "publisher_dynamo_error", map[string]any{
			"publisher_id": d.id,
			"error":        err.Error(),
		})
		return fmt.Errorf("put result item: %w", err)
	}
	return nil
}
