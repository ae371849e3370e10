package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/example/eventshop/internal/config"
	"github.com/example/eventshop/internal/email"
	"github.com/example/eventshop/internal/infrastructure/kinesis"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/notification"
)

// Serverless notifier: order mail is derived from the event log's change
// stream. Enqueue and send happen in process; the ledger still provides
// idempotency across Kinesis redeliveries.
var trigger *notification.Trigger

func init() {
	config.Load()

	db, err := store.ConnectPostgres(config.MustGet("DATABASE_URL"))
	if err != nil {
		log.Fatalf("[Notifier] failed to connect to PostgreSQL: %v", err)
	}

	readStore := store.NewPostgresReadStore(db)
	ledger := store.NewPostgresEmailLedger(db)
	sender := email.NewService(
		config.Get("SMTP_HOST", "localhost"),
		config.Get("SMTP_PORT", "587"),
		config.Get("SMTP_FROM", "noreply@eventshop.example.com"),
	)

	dispatch := notification.NewHandler(sender, ledger)
	queue := notification.NewQueue(ledger, notification.NewLoopbackPublisher(dispatch))
	trigger = notification.NewTrigger(readStore, queue)
}

func handler(ctx context.Context, batch events.KinesisEvent) (events.KinesisEventResponse, error) {
	var failures []events.KinesisBatchItemFailure

	for _, record := range batch.Records {
		event, err := kinesis.EventFromKinesisRecord(record)
		if err != nil {
			log.Printf("[Notifier] failed to decode record %s: %v", record.EventID, err)
			failures = append(failures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
			continue
		}
		if event == nil {
			continue
		}

		if err := trigger.HandleEvent(ctx, *event); err != nil {
			log.Printf("[Notifier] failed to handle %s event %s: %v", event.EventType, event.ID, err)
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
