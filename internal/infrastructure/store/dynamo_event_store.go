package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/example/eventshop/internal/apperr"
)

// DynamoEventStore is the serverless EventLog. The table uses aggregate_id
// as partition key and version as sort key; committed items reach downstream
// consumers through the table's Kinesis Data Streams integration, so no
// explicit Publisher is wired here.
type DynamoEventStore struct {
	client    *dynamodb.Client
	tableName string
}

type dynamoEvent struct {
	AggregateID   string `dynamodbav:"aggregate_id"`
	Version       int    `dynamodbav:"version"`
	ID            string `dynamodbav:"id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	EventType     string `dynamodbav:"event_type"`
	Payload       string `dynamodbav:"payload"`
	CreatedAt     string `dynamodbav:"created_at"`
	GSI1PK        string `dynamodbav:"gsi1pk"`
}

// allEventsPartition is the fixed GSI1 partition that lets LoadAllEvents
// read the whole log in created_at order.
const allEventsPartition = "EVENTS"

func NewDynamoEventStore(client *dynamodb.Client, tableName string) *DynamoEventStore {
	return &DynamoEventStore{client: client, tableName: tableName}
}

// Append writes the batch in a single transaction. Every put carries a
// condition on (aggregate_id, version) not existing, so a concurrent writer
// racing on the same aggregate cancels the whole transaction and surfaces
// as VERSION_CONFLICT.
func (es *DynamoEventStore) Append(ctx context.Context, aggregateID, aggregateType string, events []EventData, expectedVersion int) ([]Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	stored := make([]Event, 0, len(events))
	items := make([]types.TransactWriteItem, 0, len(events))

	for i, ed := range events {
		payload, err := json.Marshal(ed.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ed.EventType, err)
		}

		ev := Event{
			ID:            uuid.New().String(),
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			EventType:     ed.EventType,
			Payload:       payload,
			Version:       expectedVersion + i + 1,
			CreatedAt:     now,
		}

		av, err := attributevalue.MarshalMap(dynamoEvent{
			AggregateID:   ev.AggregateID,
			Version:       ev.Version,
			ID:            ev.ID,
			AggregateType: ev.AggregateType,
			EventType:     ev.EventType,
			Payload:       string(payload),
			CreatedAt:     now.Format(time.RFC3339Nano),
			GSI1PK:        allEventsPartition,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal event item: %w", err)
		}

		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(es.tableName),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(aggregate_id) AND attribute_not_exists(version)"),
			},
		})
		stored = append(stored, ev)
	}

	_, err := es.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		if isConditionalCheckFailure(err) {
			return nil, apperr.Wrap(err, apperr.CodeVersionConflict,
				fmt.Sprintf("aggregate %s was modified concurrently, expected version %d", aggregateID, expectedVersion))
		}
		return nil, fmt.Errorf("append events for %s: %w", aggregateID, err)
	}

	return stored, nil
}

func isConditionalCheckFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
		return false
	}
	var condFailed *types.ConditionalCheckFailedException
	return errors.As(err, &condFailed)
}

// LoadEvents returns an aggregate's events in version order.
func (es *DynamoEventStore) LoadEvents(ctx context.Context, aggregateID string) ([]Event, error) {
	result, err := es.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		KeyConditionExpression: aws.String("aggregate_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: aggregateID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", aggregateID, err)
	}
	return unmarshalDynamoEvents(result.Items)
}

// LoadAllEvents reads the full log through GSI1, oldest first. Used for
// projection catch-up.
func (es *DynamoEventStore) LoadAllEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	var startKey map[string]types.AttributeValue

	for {
		result, err := es.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(es.tableName),
			IndexName:              aws.String("GSI1"),
			KeyConditionExpression: aws.String("gsi1pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: allEventsPartition},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("load all events: %w", err)
		}

		page, err := unmarshalDynamoEvents(result.Items)
		if err != nil {
			return nil, err
		}
		events = append(events, page...)

		if result.LastEvaluatedKey == nil {
			return events, nil
		}
		startKey = result.LastEvaluatedKey
	}
}

func unmarshalDynamoEvents(items []map[string]types.AttributeValue) ([]Event, error) {
	events := make([]Event, 0, len(items))
	for _, item := range items {
		var de dynamoEvent
		if err := attributevalue.UnmarshalMap(item, &de); err != nil {
			return nil, fmt.Errorf("unmarshal event item: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, de.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp %q: %w", de.CreatedAt, err)
		}
		events = append(events, Event{
			ID:            de.ID,
			AggregateID:   de.AggregateID,
			AggregateType: de.AggregateType,
			EventType:     de.EventType,
			Payload:       json.RawMessage(de.Payload),
			Version:       de.Version,
			CreatedAt:     createdAt,
		})
	}
	return events, nil
}
