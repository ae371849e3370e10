package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/eventshop/internal/config"
	"github.com/example/eventshop/internal/email"
	"github.com/example/eventshop/internal/infrastructure/kafka"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/notification"
)

const sweepInterval = 5 * time.Minute

// The notifier drains the email-dispatch topic and sends through SMTP. The
// sweeper republishes ledger rows whose retry is due, so failed sends come
// back without relying on consumer-group redelivery.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadNotifier()

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Notifier] failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	if err := store.InitSchema(ctx, db); err != nil {
		log.Fatalf("[Notifier] failed to initialise schema: %v", err)
	}

	ledger := store.NewPostgresEmailLedger(db)
	sender := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(sender, ledger)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.EmailTopic)
	defer producer.Close()
	sweeper := notification.NewSweeper(ledger, producer, sweepInterval)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.EmailTopic, cfg.GroupID)
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	log.Printf("[Notifier] consuming %s as group %s, SMTP %s:%s", cfg.EmailTopic, cfg.GroupID, cfg.SMTPHost, cfg.SMTPPort)
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
		log.Fatalf("[Notifier] consumer error: %v", err)
	}

	wg.Wait()
	log.Println("[Notifier] stopped")
}
