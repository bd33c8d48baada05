package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoAPI is the subset of the DynamoDB client the cache needs; tests
// substitute a fake.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	ListTables(ctx context.Context, in *dynamodb.ListTablesInput, opts ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

// Dynamo caches entities in one DynamoDB table per kind
// (<prefix>-<kind>-cache), item TTL managed by the table's ttl attribute.
type Dynamo struct {
	client      dynamoAPI
	tablePrefix string
	now         func() time.Time
}

// record is the stored item shape. Data is the entity JSON so the schema
// stays entity-agnostic.
type record struct {
	ID        string `dynamodbav:"id"`
	Data      string `dynamodbav:"data"`
	CreatedAt string `dynamodbav:"createdAt"`
	TTL       int64  `dynamodbav:"ttl"`
}

func NewDynamo(client *dynamodb.Client, tablePrefix string) *Dynamo {
	return &Dynamo{client: client, tablePrefix: tablePrefix, now: time.Now}
}

func (d *Dynamo) table(kind Kind) string {
	return fmt.Sprintf("%s-%s-cache", d.tablePrefix, kind)
}

func (d *Dynamo) Get(ctx context.Context, kind Kind, id string, out any) (bool, error) {
	resp, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table(kind)),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return false, err
	}
	if resp.Item == nil {
		return false, nil
	}

	var rec record
	if err := attributevalue.UnmarshalMap(resp.Item, &rec); err != nil {
		return false, err
	}
	// DynamoDB expires TTL items lazily; enforce it on read as well.
	if rec.TTL > 0 && d.now().Unix() > rec.TTL {
		return false, nil
	}
	if err := json.Unmarshal([]byte(rec.Data), out); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Dynamo) Put(ctx context.Context, kind Kind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := d.now()
	item, err := attributevalue.MarshalMap(record{
		ID:        id,
		Data:      string(data),
		CreatedAt: now.UTC().Format(time.RFC3339),
		TTL:       now.Add(kind.TTL()).Unix(),
	})
	if err != nil {
		return err
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table(kind)),
		Item:      item,
	})
	return err
}

func (d *Dynamo) Delete(ctx context.Context, kind Kind, id string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table(kind)),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	return err
}

func (d *Dynamo) Healthy(ctx context.Context) bool {
	_, err := d.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err == nil
}
