// Package notification owns the order-mail dispatch queue: an idempotent
// enqueue backed by the email ledger, a consumer that sends and self-manages
// retries, and a sweeper that republishes due retry rows.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/example/eventshop/internal/email"
	"github.com/example/eventshop/internal/infrastructure/store"
)

const (
	EmailTypeOrderConfirmation  = "ORDER_CONFIRMATION"
	EmailTypeRefundNotification = "REFUND_NOTIFICATION"

	MaxAttempts = 3
	RetryDelay  = 30 * time.Minute
)

// DispatchMessage is what travels on the email-dispatch topic. The same
// encoding is stored as the ledger payload so the sweeper can republish it
// verbatim.
type DispatchMessage struct {
	OrderID      string                          `json:"orderId"`
	EmailType    string                          `json:"emailType"`
	Confirmation *email.OrderConfirmationParams  `json:"confirmation,omitempty"`
	Refund       *email.RefundNotificationParams `json:"refund,omitempty"`
}

// Queue is the producer side. Enqueue is idempotent by (orderID, emailType):
// the ledger insert decides whether a dispatch message is published at all.
type Queue struct {
	ledger    store.EmailLedger
	publisher store.Publisher
}

func NewQueue(ledger store.EmailLedger, publisher store.Publisher) *Queue {
	return &Queue{ledger: ledger, publisher: publisher}
}

func (q *Queue) EnqueueOrderConfirmation(ctx context.Context, params email.OrderConfirmationParams) error {
	return q.enqueue(ctx, DispatchMessage{
		OrderID:      params.OrderID,
		EmailType:    EmailTypeOrderConfirmation,
		Confirmation: &params,
	})
}

func (q *Queue) EnqueueRefundNotification(ctx context.Context, params email.RefundNotificationParams) error {
	return q.enqueue(ctx, DispatchMessage{
		OrderID:   params.OrderID,
		EmailType: EmailTypeRefundNotification,
		Refund:    &params,
	})
}

func (q *Queue) enqueue(ctx context.Context, msg DispatchMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode dispatch message: %w", err)
	}

	inserted, err := q.ledger.InsertPending(ctx, msg.OrderID, msg.EmailType, payload)
	if err != nil {
		return fmt.Errorf("record email attempt %s/%s: %w", msg.OrderID, msg.EmailType, err)
	}
	if !inserted {
		log.Printf("[EmailQueue] %s already enqueued for order %s, skipping", msg.EmailType, msg.OrderID)
		return nil
	}

	if err := q.publisher.Publish(ctx, msg.OrderID, msg); err != nil {
		return fmt.Errorf("publish dispatch message %s/%s: %w", msg.OrderID, msg.EmailType, err)
	}

	log.Printf("[EmailQueue] enqueued %s for order %s", msg.EmailType, msg.OrderID)
	return nil
}
