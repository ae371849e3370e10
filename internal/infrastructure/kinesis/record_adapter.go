// Package kinesis decodes DynamoDB stream records delivered through Kinesis
// into stored events. The lambda consumers share this adapter.
package kinesis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/example/eventshop/internal/infrastructure/store"
)

// EventFromKinesisRecord decodes one Kinesis record carrying a DynamoDB
// stream change. Non-INSERT changes return (nil, nil): the event log is
// append-only, so only inserts carry new events.
func EventFromKinesisRecord(record events.KinesisEventRecord) (*store.Event, error) {
	var change events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &change); err != nil {
		return nil, fmt.Errorf("unmarshal stream record: %w", err)
	}
	return EventFromStreamRecord(change)
}

// EventFromStreamRecord decodes a DynamoDB stream change directly, for
// consumers wired to the stream without the Kinesis hop.
func EventFromStreamRecord(record events.DynamoDBEventRecord) (*store.Event, error) {
	if record.EventName != "INSERT" {
		return nil, nil
	}
	return eventFromImage(record.Change.NewImage)
}

// EventsFromKinesisEvent decodes a whole batch, collecting per-record errors
// so one malformed record does not drop its siblings.
func EventsFromKinesisEvent(batch events.KinesisEvent) ([]*store.Event, []error) {
	var decoded []*store.Event
	var errs []error
	for _, record := range batch.Records {
		event, err := EventFromKinesisRecord(record)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", record.EventID, err))
			continue
		}
		if event != nil {
			decoded = append(decoded, event)
		}
	}
	return decoded, errs
}

func eventFromImage(image map[string]events.DynamoDBAttributeValue) (*store.Event, error) {
	if image == nil {
		return nil, fmt.Errorf("stream record has no new image")
	}

	event := &store.Event{}
	if v, ok := image["id"]; ok {
		event.ID = v.String()
	}
	if v, ok := image["aggregate_id"]; ok {
		event.AggregateID = v.String()
	}
	if v, ok := image["aggregate_type"]; ok {
		event.AggregateType = v.String()
	}
	if v, ok := image["event_type"]; ok {
		event.EventType = v.String()
	}
	if v, ok := image["payload"]; ok {
		event.Payload = json.RawMessage(v.String())
	}
	if v, ok := image["created_at"]; ok {
		createdAt, err := time.Parse(time.RFC3339Nano, v.String())
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		event.CreatedAt = createdAt
	}
	if v, ok := image["version"]; ok {
		version, err := v.Integer()
		if err != nil {
			return nil, fmt.Errorf("parse version: %w", err)
		}
		event.Version = int(version)
	}

	if event.ID == "" || event.AggregateID == "" || event.EventType == "" {
		return nil, fmt.Errorf("incomplete event: id=%q aggregate_id=%q event_type=%q",
			event.ID, event.AggregateID, event.EventType)
	}
	return event, nil
}
