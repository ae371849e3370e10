package notification

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/example/eventshop/internal/infrastructure/store"
)

const sweepBatchSize = 100

// Sweeper republishes dispatch messages for retry rows whose next_attempt_at
// has passed. MarkRedispatched flips the row back to PENDING so the same row
// is never swept twice for one retry window.
type Sweeper struct {
	ledger    store.EmailLedger
	publisher store.Publisher
	interval  time.Duration
}

func NewSweeper(ledger store.EmailLedger, publisher store.Publisher, interval time.Duration) *Sweeper {
	return &Sweeper{ledger: ledger, publisher: publisher, interval: interval}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("[EmailQueue] sweep failed: %v", err)
			}
		}
	}
}

// Sweep republishes every currently due retry row.
func (s *Sweeper) Sweep(ctx context.Context) error {
	due, err := s.ledger.DueRetries(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return err
	}

	for _, attempt := range due {
		if err := s.publisher.Publish(ctx, attempt.OrderID, json.RawMessage(attempt.Payload)); err != nil {
			log.Printf("[EmailQueue] failed to republish %s/%s: %v", attempt.OrderID, attempt.EmailType, err)
			continue
		}
		if err := s.ledger.MarkRedispatched(ctx, attempt.OrderID, attempt.EmailType); err != nil {
			log.Printf("[EmailQueue] failed to reset %s/%s after redispatch: %v", attempt.OrderID, attempt.EmailType, err)
			continue
		}
		log.Printf("[EmailQueue] redispatched %s for order %s (attempt %d)", attempt.EmailType, attempt.OrderID, attempt.AttemptCount)
	}
	return nil
}
