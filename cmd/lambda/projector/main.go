package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/example/eventshop/internal/config"
	"github.com/example/eventshop/internal/infrastructure/kinesis"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/projection"
)

// Serverless projector: the DynamoDB event log streams inserts through
// Kinesis; each batch is projected into the relational read models.
var projector *projection.Projector

func init() {
	config.Load()

	db, err := store.ConnectPostgres(config.MustGet("DATABASE_URL"))
	if err != nil {
		log.Fatalf("[Projector] failed to connect to PostgreSQL: %v", err)
	}
	projector = projection.NewProjector(store.NewPostgresReadStore(db))
}

func handler(ctx context.Context, batch events.KinesisEvent) (events.KinesisEventResponse, error) {
	var failures []events.KinesisBatchItemFailure

	for _, record := range batch.Records {
		event, err := kinesis.EventFromKinesisRecord(record)
		if err != nil {
			log.Printf("[Projector] failed to decode record %s: %v", record.EventID, err)
			failures = append(failures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
			continue
		}
		if event == nil {
			continue
		}

		if err := projector.Apply(ctx, *event); err != nil {
			log.Printf("[Projector] failed to apply %s event %s: %v", event.EventType, event.ID, err)
			failures = append(failures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
		}
	}

	return events.KinesisEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	lambda.Start(handler)
}
