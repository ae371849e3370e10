package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/example/eventshop/internal/config"
	"github.com/example/eventshop/internal/infrastructure/kafka"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/projection"
)

// The projector rebuilds the read models: a full catch-up replay from the
// event log at boot, then the Kafka stream for everything that follows.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadProjector()

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Projector] failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	if err := store.InitSchema(ctx, db); err != nil {
		log.Fatalf("[Projector] failed to initialise schema: %v", err)
	}

	readStore := store.NewPostgresReadStore(db)
	eventLog := store.NewPostgresEventStore(db, nil)
	projector := projection.NewProjector(readStore)

	events, err := eventLog.LoadAllEvents(ctx)
	if err != nil {
		log.Fatalf("[Projector] failed to load events for catch-up: %v", err)
	}
	log.Printf("[Projector] replaying %d events", len(events))
	if err := projector.ApplyAll(ctx, events); err != nil {
		log.Printf("[Projector] catch-up replay: %v", err)
	}
	log.Println("[Projector] catch-up complete")

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.EventsTopic, cfg.GroupID)
	defer consumer.Close()

	log.Printf("[Projector] consuming %s as group %s", cfg.EventsTopic, cfg.GroupID)
	if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
		log.Fatalf("[Projector] consumer error: %v", err)
	}
	log.Println("[Projector] stopped")
}
