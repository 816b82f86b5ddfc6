package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ajbarea/aws-image-translate/internal/pipeline"
)

// dynamoClient defines the minimal subset of the DynamoDB client used by dynamoStore.
type dynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// checkpointRecord is the item shape stored in the checkpoint table.
type checkpointRecord struct {
	SourceKey string `dynamodbav:"source_key"`
	PostID    string `dynamodbav:"post_id"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// dynamoStore implements Store on a DynamoDB table keyed by source_key.
type dynamoStore struct {
	client dynamoClient
	table  string
}

// NewDynamoStore wraps a DynamoDB client as a checkpoint Store.
func NewDynamoStore(client dynamoClient, table string) (Store, error) {
	if client == nil {
		return nil, fmt.Errorf("dynamodb client must not be nil")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, fmt.Errorf("dynamodb checkpoint store requires a table name")
	}
	return &dynamoStore{client: client, table: table}, nil
}

func (d *dynamoStore) Get(ctx context.Context, sourceKey string) (string, bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            keyFor(sourceKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: get item: %v", pipeline.ErrStateStoreUnavailable, err)
	}
	if len(out.Item) == 0 {
		return "", false, nil
	}

	var rec checkpointRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return "", false, fmt.Errorf("decode checkpoint item: %w", err)
	}
	return rec.PostID, true, nil
}

func (d *dynamoStore) Put(ctx context.Context, sourceKey, postID string) error {
	item, err := attributevalue.MarshalMap(checkpointRecord{
		SourceKey: sourceKey,
		PostID:    postID,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint item: %w", err)
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("%w: put item: %v", pipeline.ErrStateStoreUnavailable, err)
	}
	return nil
}

func (d *dynamoStore) Close() error { return nil }

func keyFor(sourceKey string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"source_key": &ddbtypes.AttributeValueMemberS{Value: sourceKey},
	}
}
