package notification

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/example/eventshop/internal/email"
	"github.com/example/eventshop/internal/infrastructure/store"
)

// Handler is the dispatch consumer. It always acknowledges: retries are
// driven by the ledger and the sweeper, never by consumer-group redelivery.
type Handler struct {
	sender email.Sender
	ledger store.EmailLedger
}

func NewHandler(sender email.Sender, ledger store.EmailLedger) *Handler {
	return &Handler{sender: sender, ledger: ledger}
}

// HandleEvent processes one dispatch message from the email-dispatch topic.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var msg DispatchMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		log.Printf("[EmailQueue] dropping undecodable dispatch message: %v", err)
		return nil
	}

	sendErr := h.send(ctx, msg)
	if sendErr == nil {
		if err := h.ledger.MarkSent(ctx, msg.OrderID, msg.EmailType); err != nil {
			log.Printf("[EmailQueue] failed to mark %s/%s sent: %v", msg.OrderID, msg.EmailType, err)
		}
		log.Printf("[EmailQueue] sent %s for order %s", msg.EmailType, msg.OrderID)
		return nil
	}

	attempts, err := h.ledger.IncrementAttempt(ctx, msg.OrderID, msg.EmailType, sendErr.Error())
	if err != nil {
		log.Printf("[EmailQueue] failed to record attempt for %s/%s: %v", msg.OrderID, msg.EmailType, err)
		return nil
	}

	if attempts < MaxAttempts {
		retryAt := time.Now().Add(RetryDelay)
		if err := h.ledger.ScheduleRetry(ctx, msg.OrderID, msg.EmailType, retryAt); err != nil {
			log.Printf("[EmailQueue] failed to schedule retry for %s/%s: %v", msg.OrderID, msg.EmailType, err)
			return nil
		}
		log.Printf("[EmailQueue] send failed for %s/%s (attempt %d): %v, retrying at %s",
			msg.OrderID, msg.EmailType, attempts, sendErr, retryAt.Format(time.RFC3339))
		return nil
	}

	if err := h.ledger.MarkFailed(ctx, msg.OrderID, msg.EmailType); err != nil {
		log.Printf("[EmailQueue] failed to mark %s/%s failed: %v", msg.OrderID, msg.EmailType, err)
		return nil
	}
	log.Printf("[EmailQueue] giving up on %s/%s after %d attempts: %v", msg.OrderID, msg.EmailType, attempts, sendErr)
	return nil
}

func (h *Handler) send(ctx context.Context, msg DispatchMessage) error {
	switch msg.EmailType {
	case EmailTypeOrderConfirmation:
		if msg.Confirmation == nil {
			log.Printf("[EmailQueue] dispatch message %s missing confirmation params", msg.OrderID)
			return nil
		}
		return h.sender.SendOrderConfirmation(ctx, *msg.Confirmation)
	case EmailTypeRefundNotification:
		if msg.Refund == nil {
			log.Printf("[EmailQueue] dispatch message %s missing refund params", msg.OrderID)
			return nil
		}
		return h.sender.SendRefundNotification(ctx, *msg.Refund)
	default:
		log.Printf("[EmailQueue] unknown email type %q for order %s", msg.EmailType, msg.OrderID)
		return nil
	}
}
