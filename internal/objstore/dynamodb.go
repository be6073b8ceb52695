package objstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// objectItem is the DynamoDB schema for one stored object
type objectItem struct {
	TenantID  string    `dynamodbav:"tenant_id"`
	Payload   []byte    `dynamodbav:"payload"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// DynamoStore keeps one item per key, hash key "tenant_id"
type DynamoStore struct {
	db        *dynamodb.Client
	tableName string
}

// NewDynamo creates a DynamoDB-backed store
func NewDynamo(db *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{db: db, tableName: tableName}
}

func (d *DynamoStore) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"tenant_id": &types.AttributeValueMemberS{Value: key},
	}
}

// Get fetches the payload stored under key
func (d *DynamoStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var item objectItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return item.Payload, nil
}

// Put replaces the whole item for key
func (d *DynamoStore) Put(ctx context.Context, key string, data []byte) error {
	item, err := attributevalue.MarshalMap(&objectItem{
		TenantID:  key,
		Payload:   data,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb PutItem: %w", err)
	}
	return nil
}

// Delete removes the item for key
func (d *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := d.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.key(key),
	})
	if err != nil {
		return fmt.Errorf("dynamodb DeleteItem: %w", err)
	}
	return nil
}
