package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ajbarea/aws-image-translate/internal/pipeline"
)

type fakeDynamoClient struct {
	item    map[string]ddbtypes.AttributeValue
	getErr  error
	putErr  error
	lastGet *dynamodb.GetItemInput
	lastPut *dynamodb.PutItemInput
}

func (f *fakeDynamoClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGet = params
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func (f *fakeDynamoClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = params
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.item = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestNewDynamoStoreValidation(t *testing.T) {
	if _, err := NewDynamoStore(nil, "table"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewDynamoStore(&fakeDynamoClient{}, "  "); err == nil {
		t.Fatalf("expected error for empty table")
	}
}

func TestDynamoStoreRoundtrip(t *testing.T) {
	client := &fakeDynamoClient{}
	s, err := NewDynamoStore(client, "checkpoints")
	if err != nil {
		t.Fatalf("NewDynamoStore: %v", err)
	}
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "src"); err != nil || found {
		t.Fatalf("Get on empty table = (found=%v, err=%v)", found, err)
	}

	if err := s.Put(ctx, "src", "t3_abc"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if aws.ToString(client.lastPut.TableName) != "checkpoints" {
		t.Fatalf("table = %q", aws.ToString(client.lastPut.TableName))
	}
	if _, ok := client.lastPut.Item["updated_at"]; !ok {
		t.Fatalf("updated_at attribute missing from item")
	}

	got, found, err := s.Get(ctx, "src")
	if err != nil || !found || got != "t3_abc" {
		t.Fatalf("Get = (%q, %v, %v)", got, found, err)
	}
	if !aws.ToBool(client.lastGet.ConsistentRead) {
		t.Fatalf("Get must use a consistent read")
	}
	keyAttr, ok := client.lastGet.Key["source_key"].(*ddbtypes.AttributeValueMemberS)
	if !ok || keyAttr.Value != "src" {
		t.Fatalf("unexpected key attribute: %#v", client.lastGet.Key)
	}
}

func TestDynamoStoreErrorsAreStateStoreUnavailable(t *testing.T) {
	client := &fakeDynamoClient{getErr: errors.New("throttled"), putErr: errors.New("throttled")}
	s, _ := NewDynamoStore(client, "checkpoints")
	ctx := context.Background()

	if _, _, err := s.Get(ctx, "src"); !errors.Is(err, pipeline.ErrStateStoreUnavailable) {
		t.Fatalf("Get error = %v", err)
	}
	if err := s.Put(ctx, "src", "t3_abc"); !errors.Is(err, pipeline.ErrStateStoreUnavailable) {
		t.Fatalf("Put error = %v", err)
	}
}
