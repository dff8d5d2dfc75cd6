package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/thirukguru/aws-account-assessment/service/awserrors"
)

const (
	// JobIDIndex is the global secondary index keyed on JobId.
	JobIDIndex = "JobId"

	batchWriteLimit    = 25
	maxUnprocessedTrys = 5
)

// DynamoDBClientAPI is the subset of the DynamoDB client used by the table backend.
type DynamoDBClientAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDB is the component table backed by a DynamoDB table.
type DynamoDB struct {
	client    DynamoDBClientAPI
	tableName string
	backoff   time.Duration
}

// NewDynamoDB creates the DynamoDB backend from an AWS config.
func NewDynamoDB(cfg aws.Config, tableName string) *DynamoDB {
	return NewDynamoDBWithClient(dynamodb.NewFromConfig(cfg), tableName)
}

// NewDynamoDBWithClient creates the DynamoDB backend around an existing client.
func NewDynamoDBWithClient(client DynamoDBClientAPI, tableName string) *DynamoDB {
	return &DynamoDB{client: client, tableName: tableName, backoff: 200 * time.Millisecond}
}

func (d *DynamoDB) PutItem(ctx context.Context, item Item) error {
	av, err := marshalItem(item)
	if err != nil {
		return err
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// PutItems writes items in batches of 25, resubmitting unprocessed items. Items sharing a
// primary key are collapsed to the last one, as a batch must not repeat a key.
func (d *DynamoDB) PutItems(ctx context.Context, items []Item) error {
	items, err := DedupeByKey(items)
	if err != nil {
		return err
	}
	for start := 0; start < len(items); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(items))
		requests := make([]types.WriteRequest, 0, end-start)
		for _, item := range items[start:end] {
			av, err := marshalItem(item)
			if err != nil {
				return err
			}
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
		}
		if err := d.batchWrite(ctx, requests); err != nil {
			return err
		}
	}
	return nil
}

func (d *DynamoDB) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{d.tableName: requests}
	policy := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), maxUnprocessedTrys-1), ctx)
	return backoff.Retry(func() error {
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			err = fmt.Errorf("failed to batch write items: %w", err)
			if !awserrors.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		pending = out.UnprocessedItems
		if n := len(pending[d.tableName]); n > 0 {
			return fmt.Errorf("failed to write %d items after %d attempts", n, maxUnprocessedTrys)
		}
		return nil
	}, policy)
}

func (d *DynamoDB) newBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(d.backoff),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(10*time.Second),
		backoff.WithMaxElapsedTime(0),
	)
}

func (d *DynamoDB) GetItem(ctx context.Context, key Key) (Item, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       primaryKey(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return unmarshalItem(out.Item)
}

func (d *DynamoDB) DeleteItem(ctx context.Context, key Key) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       primaryKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

func (d *DynamoDB) Query(ctx context.Context, q Query) (Page, error) {
	input, err := d.queryInput(q)
	if err != nil {
		return Page{}, err
	}
	out, err := d.client.Query(ctx, input)
	if err != nil {
		return Page{}, fmt.Errorf("failed to query items: %w", err)
	}

	page := Page{Items: make([]Item, 0, len(out.Items))}
	for _, av := range out.Items {
		item, err := unmarshalItem(av)
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, item)
	}
	if len(out.LastEvaluatedKey) > 0 {
		var last Key
		if err := attributevalue.UnmarshalMap(out.LastEvaluatedKey, &last); err != nil {
			return Page{}, fmt.Errorf("failed to decode last evaluated key: %w", err)
		}
		page.LastKey = &last
	}
	return page, nil
}

func (d *DynamoDB) queryInput(q Query) (*dynamodb.QueryInput, error) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var keyCond, filters []string

	switch {
	case q.JobID != "":
		names["#jobId"] = "JobId"
		values[":jobId"] = &types.AttributeValueMemberS{Value: q.JobID}
		keyCond = append(keyCond, "#jobId = :jobId")
		if q.PartitionKey != "" {
			names["#pk"] = "PartitionKey"
			values[":pk"] = &types.AttributeValueMemberS{Value: q.PartitionKey}
			filters = append(filters, "#pk = :pk")
		}
		if q.SortKeyPrefix != "" {
			names["#sk"] = "SortKey"
			values[":sk"] = &types.AttributeValueMemberS{Value: q.SortKeyPrefix}
			filters = append(filters, "begins_with(#sk, :sk)")
		}
	case q.PartitionKey != "":
		names["#pk"] = "PartitionKey"
		values[":pk"] = &types.AttributeValueMemberS{Value: q.PartitionKey}
		keyCond = append(keyCond, "#pk = :pk")
		if q.SortKeyPrefix != "" {
			names["#sk"] = "SortKey"
			values[":sk"] = &types.AttributeValueMemberS{Value: q.SortKeyPrefix}
			keyCond = append(keyCond, "begins_with(#sk, :sk)")
		}
	default:
		return nil, errors.New("query needs a partition key or a job id")
	}

	for i, f := range q.Contains {
		name := fmt.Sprintf("#f%d", i)
		value := fmt.Sprintf(":f%d", i)
		names[name] = f.Attribute
		values[value] = &types.AttributeValueMemberS{Value: f.Value}
		filters = append(filters, fmt.Sprintf("contains(%s, %s)", name, value))
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		KeyConditionExpression:    aws.String(strings.Join(keyCond, " AND ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if q.JobID != "" {
		input.IndexName = aws.String(JobIDIndex)
	}
	if len(filters) > 0 {
		input.FilterExpression = aws.String(strings.Join(filters, " AND "))
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}
	if q.StartKey != nil {
		start, err := attributevalue.MarshalMap(q.StartKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encode start key: %w", err)
		}
		input.ExclusiveStartKey = start
	}
	return input, nil
}

// Close is a no-op; the client holds no resources.
func (d *DynamoDB) Close() error {
	return nil
}

func primaryKey(key Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PartitionKey": &types.AttributeValueMemberS{Value: key.PartitionKey},
		"SortKey":      &types.AttributeValueMemberS{Value: key.SortKey},
	}
}

func marshalItem(item Item) (map[string]types.AttributeValue, error) {
	if _, err := keyOf(item); err != nil {
		return nil, err
	}
	av, err := attributevalue.MarshalMap(map[string]any(item))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return av, nil
}

func unmarshalItem(av map[string]types.AttributeValue) (Item, error) {
	var item Item
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, nil
}
