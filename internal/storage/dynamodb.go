package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gatekeeper/internal/models"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDBStore.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// dynamoWindow is the item layout. expires_at is the table's TTL attribute
// in epoch seconds.
type dynamoWindow struct {
	Key         string `dynamodbav:"key"`
	Count       int64  `dynamodbav:"count"`
	WindowStart int64  `dynamodbav:"window_start"`
	ExpiresAt   int64  `dynamodbav:"expires_at"`
}

// recordAttempts bounds how often Record retries after losing a race to
// open a new window.
const recordAttempts = 5

// DynamoDBStore keeps windows in a DynamoDB table with a string partition
// key named "key" and TTL enabled on "expires_at".
//
// Record first tries a conditional increment of a still-current window. If
// the window is missing or expired it conditionally replaces it with a fresh
// one; losing that race to another writer retries from the increment.
type DynamoDBStore struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoDBStore builds a client from the default AWS credential chain.
func NewDynamoDBStore(ctx context.Context, cfg models.DynamoDBConfig) (*DynamoDBStore, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("table is required for DynamoDB storage")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewDynamoDBStoreWithClient(client, cfg.Table), nil
}

// NewDynamoDBStoreWithClient wraps an existing client.
func NewDynamoDBStoreWithClient(client DynamoDBAPI, table string) *DynamoDBStore {
	return &DynamoDBStore{client: client, table: table}
}

func (ds *DynamoDBStore) itemKey(key string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"key": &ddbtypes.AttributeValueMemberS{Value: key},
	}
}

func (ds *DynamoDBStore) Record(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	var result Window
	err := retry.Do(
		func() error {
			w, err := ds.record(ctx, key, now, window)
			if err != nil {
				return err
			}
			result = w
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(recordAttempts),
		retry.Delay(5*time.Millisecond),
		retry.RetryIf(isConditionalCheckFailed),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return Window{}, fmt.Errorf("failed to record request for %s: %w", key, err)
	}
	return result, nil
}

func (ds *DynamoDBStore) record(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	threshold := strconv.FormatInt(toMicros(now)-window.Microseconds(), 10)

	out, err := ds.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(ds.table),
		Key:                 ds.itemKey(key),
		UpdateExpression:    aws.String("ADD #count :one"),
		ConditionExpression: aws.String("#start >= :threshold"),
		ExpressionAttributeNames: map[string]string{
			"#count": "count",
			"#start": "window_start",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":one":       &ddbtypes.AttributeValueMemberN{Value: "1"},
			":threshold": &ddbtypes.AttributeValueMemberN{Value: threshold},
		},
		ReturnValues: ddbtypes.ReturnValueAllNew,
	})
	if err == nil {
		var item dynamoWindow
		if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
			return Window{}, fmt.Errorf("failed to decode window: %w", err)
		}
		return Window{Count: item.Count, Start: fromMicros(item.WindowStart)}, nil
	}
	if !isConditionalCheckFailed(err) {
		return Window{}, err
	}

	fresh := dynamoWindow{
		Key:         key,
		Count:       1,
		WindowStart: toMicros(now),
		ExpiresAt:   now.Add(2 * window).Unix(),
	}
	item, err := attributevalue.MarshalMap(fresh)
	if err != nil {
		return Window{}, fmt.Errorf("failed to encode window: %w", err)
	}

	_, err = ds.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(ds.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#key) OR #start < :threshold"),
		ExpressionAttributeNames: map[string]string{
			"#key":   "key",
			"#start": "window_start",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":threshold": &ddbtypes.AttributeValueMemberN{Value: threshold},
		},
	})
	if err != nil {
		return Window{}, err
	}
	return Window{Count: 1, Start: fromMicros(fresh.WindowStart)}, nil
}

func (ds *DynamoDBStore) Get(ctx context.Context, key string) (Window, error) {
	out, err := ds.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(ds.table),
		Key:            ds.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Window{}, fmt.Errorf("failed to get window for %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return Window{}, ErrNotFound
	}

	var item dynamoWindow
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Window{}, fmt.Errorf("failed to decode window for %s: %w", key, err)
	}
	return Window{Count: item.Count, Start: fromMicros(item.WindowStart)}, nil
}

func (ds *DynamoDBStore) Reset(ctx context.Context, key string) error {
	_, err := ds.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(ds.table),
		Key:       ds.itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to reset window for %s: %w", key, err)
	}
	return nil
}

// PurgeExpired is a no-op; the table TTL removes expired items.
func (ds *DynamoDBStore) PurgeExpired(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	return 0, nil
}

func (ds *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := ds.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(ds.table),
	})
	if err != nil {
		return fmt.Errorf("failed to describe table %s: %w", ds.table, err)
	}
	return nil
}

func (ds *DynamoDBStore) Close() error {
	return nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *ddbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
