package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/eventshop/internal/domain/order"
	"github.com/example/eventshop/internal/email"
	"github.com/example/eventshop/internal/infrastructure/store"
)

// Trigger derives order mail from the domain event stream. The Kafka
// deployment enqueues on the command path; the serverless consumers only see
// the event log's change stream, so the trigger rebuilds the same dispatch
// messages from the events themselves.
type Trigger struct {
	readStore store.ReadStore
	queue     *Queue
}

func NewTrigger(readStore store.ReadStore, queue *Queue) *Trigger {
	return &Trigger{readStore: readStore, queue: queue}
}

// HandleEvent inspects one domain event and enqueues mail where one is owed.
// Errors mean the read models have not caught up yet; the caller should
// redeliver the record.
func (t *Trigger) HandleEvent(ctx context.Context, event store.Event) error {
	switch event.EventType {
	case order.EventOrderCreated:
		return t.onOrderCreated(ctx, event)
	case order.EventConvenienceStorePaymentIssued:
		return t.onPaymentCodeIssued(ctx, event)
	case order.EventRefundCompleted:
		return t.onRefundCompleted(ctx, event)
	}
	return nil
}

func (t *Trigger) onOrderCreated(ctx context.Context, event store.Event) error {
	var payload order.OrderCreated
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		log.Printf("[EmailQueue] dropping undecodable OrderCreated %s: %v", event.ID, err)
		return nil
	}

	// Convenience-store confirmations wait for the payment code event.
	if payload.PaymentMethod == order.PaymentConvenienceStore {
		return nil
	}

	customer, found, err := t.readStore.GetUserByID(ctx, payload.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %s for order %s: %w", payload.CustomerID, payload.OrderID, err)
	}
	if !found {
		log.Printf("[EmailQueue] no customer %s for order %s, skipping confirmation", payload.CustomerID, payload.OrderID)
		return nil
	}

	return t.queue.EnqueueOrderConfirmation(ctx, email.OrderConfirmationParams{
		To:          customer.Email,
		OrderID:     payload.OrderID,
		Items:       triggerEmailItems(payload.Items),
		Subtotal:    payload.Subtotal,
		ShippingFee: payload.ShippingFee,
		Total:       payload.Total,
	})
}

func (t *Trigger) onPaymentCodeIssued(ctx context.Context, event store.Event) error {
	var payload order.ConvenienceStorePaymentIssued
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		log.Printf("[EmailQueue] dropping undecodable ConvenienceStorePaymentIssued %s: %v", event.ID, err)
		return nil
	}

	view, found, err := t.readStore.GetOrder(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}
	if !found {
		return fmt.Errorf("order %s not projected yet", payload.OrderID)
	}

	customer, found, err := t.readStore.GetUserByID(ctx, view.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %s for order %s: %w", view.CustomerID, payload.OrderID, err)
	}
	if !found {
		log.Printf("[EmailQueue] no customer %s for order %s, skipping confirmation", view.CustomerID, payload.OrderID)
		return nil
	}

	items := make([]email.OrderItem, len(view.Items))
	for i, item := range view.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	return t.queue.EnqueueOrderConfirmation(ctx, email.OrderConfirmationParams{
		To:          customer.Email,
		OrderID:     view.ID,
		Items:       items,
		Subtotal:    view.Subtotal,
		ShippingFee: view.ShippingFee,
		Total:       view.Total,
		PaymentCode: payload.PaymentCode,
	})
}

func (t *Trigger) onRefundCompleted(ctx context.Context, event store.Event) error {
	var payload order.RefundCompleted
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		log.Printf("[EmailQueue] dropping undecodable RefundCompleted %s: %v", event.ID, err)
		return nil
	}

	view, found, err := t.readStore.GetOrder(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}
	if !found {
		return fmt.Errorf("order %s not projected yet", payload.OrderID)
	}

	customer, found, err := t.readStore.GetUserByID(ctx, view.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %s for order %s: %w", view.CustomerID, payload.OrderID, err)
	}
	if !found {
		log.Printf("[EmailQueue] no customer %s for order %s, skipping refund notification", view.CustomerID, payload.OrderID)
		return nil
	}

	return t.queue.EnqueueRefundNotification(ctx, email.RefundNotificationParams{
		To:      customer.Email,
		OrderID: payload.OrderID,
		Amount:  payload.Amount,
	})
}

func triggerEmailItems(items []order.Item) []email.OrderItem {
	out := make([]email.OrderItem, len(items))
	for i, item := range items {
		out[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return out
}

// LoopbackPublisher hands dispatch messages straight to the consumer. The
// serverless notifier has no broker between enqueue and send.
type LoopbackPublisher struct {
	handler *Handler
}

func NewLoopbackPublisher(handler *Handler) *LoopbackPublisher {
	return &LoopbackPublisher{handler: handler}
}

func (p *LoopbackPublisher) Publish(ctx context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode dispatch message: %w", err)
	}
	return p.handler.HandleEvent(ctx, []byte(key), payload)
}
