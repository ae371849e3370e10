package kinesis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productCreatedImage(id string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"id":             events.NewStringAttribute(id),
		"aggregate_id":   events.NewStringAttribute("prod-1"),
		"aggregate_type": events.NewStringAttribute("product"),
		"event_type":     events.NewStringAttribute("ProductCreated"),
		"payload":        events.NewStringAttribute(`{"name":"コーヒー豆"}`),
		"created_at":     events.NewStringAttribute("2024-01-15T10:30:00.123456789Z"),
		"version":        events.NewNumberAttribute("1"),
	}
}

func TestEventFromImage(t *testing.T) {
	tests := []struct {
		name    string
		image   map[string]events.DynamoDBAttributeValue
		wantErr bool
	}{
		{"complete image", productCreatedImage("ev-1"), false},
		{"nil image", nil, true},
		{
			"missing aggregate fields",
			map[string]events.DynamoDBAttributeValue{
				"id": events.NewStringAttribute("ev-1"),
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := eventFromImage(tt.image)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, event)
			assert.Equal(t, "ev-1", event.ID)
			assert.Equal(t, "prod-1", event.AggregateID)
			assert.Equal(t, "product", event.AggregateType)
			assert.Equal(t, "ProductCreated", event.EventType)
			assert.JSONEq(t, `{"name":"コーヒー豆"}`, string(event.Payload))
			assert.Equal(t, 1, event.Version)
			assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC), event.CreatedAt)
		})
	}
}

func TestEventFromStreamRecord(t *testing.T) {
	t.Run("INSERT decodes", func(t *testing.T) {
		event, err := EventFromStreamRecord(events.DynamoDBEventRecord{
			EventName: "INSERT",
			Change:    events.DynamoDBStreamRecord{NewImage: productCreatedImage("ev-1")},
		})

		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, "ev-1", event.ID)
	})

	t.Run("MODIFY and REMOVE are skipped", func(t *testing.T) {
		for _, name := range []string{"MODIFY", "REMOVE"} {
			event, err := EventFromStreamRecord(events.DynamoDBEventRecord{EventName: name})
			require.NoError(t, err)
			assert.Nil(t, event)
		}
	})
}

func TestEventFromKinesisRecord(t *testing.T) {
	change := events.DynamoDBEventRecord{
		EventName: "INSERT",
		Change:    events.DynamoDBStreamRecord{NewImage: productCreatedImage("ev-1")},
	}
	data, err := json.Marshal(change)
	require.NoError(t, err)

	event, err := EventFromKinesisRecord(events.KinesisEventRecord{
		EventID: "kinesis-1",
		Kinesis: events.KinesisRecord{Data: data},
	})

	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "ev-1", event.ID)
}

func TestEventsFromKinesisEvent_MixedBatch(t *testing.T) {
	valid, err := json.Marshal(events.DynamoDBEventRecord{
		EventName: "INSERT",
		Change:    events.DynamoDBStreamRecord{NewImage: productCreatedImage("ev-1")},
	})
	require.NoError(t, err)
	modify, err := json.Marshal(events.DynamoDBEventRecord{EventName: "MODIFY"})
	require.NoError(t, err)

	decoded, errs := EventsFromKinesisEvent(events.KinesisEvent{
		Records: []events.KinesisEventRecord{
			{EventID: "1", Kinesis: events.KinesisRecord{Data: valid}},
			{EventID: "2", Kinesis: events.KinesisRecord{Data: modify}},
			{EventID: "3", Kinesis: events.KinesisRecord{Data: []byte("not json")}},
		},
	})

	require.Len(t, decoded, 1)
	assert.Equal(t, "ev-1", decoded[0].ID)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "record 3")
}
