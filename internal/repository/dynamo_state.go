package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStateStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type stateItem struct {
	Key       string `dynamodbav:"state_key"`
	Value     []byte `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// DynamoStateStore keeps workspace slices in a table keyed by "state_key".
type DynamoStateStore struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

func NewDynamoStateStore(client DynamoAPI, table string) *DynamoStateStore {
	return &DynamoStateStore{client: client, table: table, now: time.Now}
}

var _ StateStore = (*DynamoStateStore)(nil)

func (s *DynamoStateStore) key(k string) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(struct {
		Key string `dynamodbav:"state_key"`
	}{Key: k})
}

func (s *DynamoStateStore) GetState(ctx context.Context, key string) ([]byte, error) {
	const op = "DynamoStateStore.GetState"
	k, err := s.key(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var it stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return it.Value, nil
}

func (s *DynamoStateStore) PutState(ctx context.Context, key string, value []byte) error {
	const op = "DynamoStateStore.PutState"
	item, err := attributevalue.MarshalMap(stateItem{
		Key:       key,
		Value:     value,
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *DynamoStateStore) DeleteState(ctx context.Context, key string) error {
	const op = "DynamoStateStore.DeleteState"
	k, err := s.key(key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       k,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
