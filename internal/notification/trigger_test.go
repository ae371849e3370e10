package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eventshop/internal/domain/order"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/infrastructure/store/mocks"
	"github.com/example/eventshop/internal/readmodel"
)

type triggerFixture struct {
	trigger   *Trigger
	readStore *mocks.MemoryReadStore
	ledger    *mocks.MemoryEmailLedger
	sender    *fakeSender
}

func newTriggerFixture(t *testing.T) *triggerFixture {
	t.Helper()
	readStore := mocks.NewMemoryReadStore()
	ledger := mocks.NewMemoryEmailLedger()
	sender := &fakeSender{}
	handler := NewHandler(sender, ledger)
	queue := NewQueue(ledger, NewLoopbackPublisher(handler))
	return &triggerFixture{
		trigger:   NewTrigger(readStore, queue),
		readStore: readStore,
		ledger:    ledger,
		sender:    sender,
	}
}

func (f *triggerFixture) seedCustomer(t *testing.T) {
	t.Helper()
	require.NoError(t, f.readStore.InsertUser(context.Background(), &readmodel.User{
		ID:    "cust-1",
		Email: "taro@example.com",
		Name:  "山田太郎",
		Role:  "CUSTOMER",
	}))
}

func domainEvent(t *testing.T, eventType string, payload any) store.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return store.Event{
		ID:            "evt-1",
		AggregateID:   "order-1",
		AggregateType: store.AggregateTypeOrder,
		EventType:     eventType,
		Payload:       raw,
		Version:       1,
		CreatedAt:     time.Now().UTC(),
	}
}

func orderCreatedPayload(method string) order.OrderCreated {
	return order.OrderCreated{
		OrderID:       "order-1",
		CustomerID:    "cust-1",
		Items:         []order.Item{{ProductID: "prod-1", Name: "Mug", UnitPrice: 1000, Quantity: 2}},
		PaymentMethod: method,
		Subtotal:      2000,
		Total:         2000,
		CreatedAt:     time.Now().UTC(),
	}
}

// ============================================
// Order Created
// ============================================

func TestTrigger_OrderCreatedSendsConfirmation(t *testing.T) {
	f := newTriggerFixture(t)
	f.seedCustomer(t)

	event := domainEvent(t, order.EventOrderCreated, orderCreatedPayload(order.PaymentCreditCard))
	require.NoError(t, f.trigger.HandleEvent(context.Background(), event))

	require.Len(t, f.sender.confirmations, 1)
	sent := f.sender.confirmations[0]
	assert.Equal(t, "taro@example.com", sent.To)
	assert.Equal(t, "order-1", sent.OrderID)
	assert.Equal(t, int64(2000), sent.Total)
	assert.Empty(t, sent.PaymentCode)

	attempt, found := f.ledger.Attempt("order-1", EmailTypeOrderConfirmation)
	require.True(t, found)
	assert.Equal(t, store.EmailStatusSent, attempt.Status)
}

func TestTrigger_OrderCreatedIsIdempotentAcrossRedelivery(t *testing.T) {
	f := newTriggerFixture(t)
	f.seedCustomer(t)

	event := domainEvent(t, order.EventOrderCreated, orderCreatedPayload(order.PaymentCreditCard))
	require.NoError(t, f.trigger.HandleEvent(context.Background(), event))
	require.NoError(t, f.trigger.HandleEvent(context.Background(), event))

	assert.Len(t, f.sender.confirmations, 1)
}

func TestTrigger_ConvenienceStoreOrderWaitsForPaymentCode(t *testing.T) {
	f := newTriggerFixture(t)
	f.seedCustomer(t)

	event := domainEvent(t, order.EventOrderCreated, orderCreatedPayload(order.PaymentConvenienceStore))
	require.NoError(t, f.trigger.HandleEvent(context.Background(), event))

	assert.Empty(t, f.sender.confirmations)
}

func TestTrigger_UnknownCustomerSkipsWithoutError(t *testing.T) {
	f := newTriggerFixture(t)

	event := domainEvent(t, order.EventOrderCreated, orderCreatedPayload(order.PaymentCreditCard))
	require.NoError(t, f.trigger.HandleEvent(context.Background(), event))

	assert.Empty(t, f.sender.confirmations)
}

// ============================================
// Convenience Store Payment Code
// ============================================

func TestTrigger_PaymentCodeIssuedSendsConfirmationWithCode(t *testing.T) {
	f := newTriggerFixture(t)
	f.seedCustomer(t)
	require.NoError(t, f.readStore.UpsertOrder(context.Background(), &readmodel.Order{
		ID:            "order-1",
		CustomerID:    "cust-1",
		Items:         []readmodel.OrderItem{{ProductID: "prod-1", Name: "Mug", UnitPrice: 1000, Quantity: 2}},
		PaymentMethod: order.PaymentConvenienceStore,
		Subtotal:      2000,
		Total:         2000,
	}))

	event := domainEvent(t, order.EventConvenienceStorePaymentIssued, order.ConvenienceStorePaymentIssued{
		OrderID:     "order-1",
		PaymentCode: "123456789012",
		ExpiresAt:   time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, f.trigger.HandleEvent(context.Background(), event))

	require.Len(t, f.sender.confirmations, 1)
	assert.Equal(t, "123456789012", f.sender.confirmations[0].PaymentCode)
}

func TestTrigger_PaymentCodeBeforeProjectionFailsForRedelivery(t *testing.T) {
	f := newTriggerFixture(t)
	f.seedCustomer(t)

	event := domainEvent(t, order.EventConvenienceStorePaymentIssued, order.ConvenienceStorePaymentIssued{
		OrderID:     "order-1",
		PaymentCode: "123456789012",
	})

	assert.Error(t, f.trigger.HandleEvent(context.Background(), event))
	assert.Empty(t, f.sender.confirmations)
}

// ============================================
// Refund
// ============================================

func TestTrigger_RefundCompletedSendsNotification(t *testing.T) {
	f := newTriggerFixture(t)
	f.seedCustomer(t)
	require.NoError(t, f.readStore.UpsertOrder(context.Background(), &readmodel.Order{
		ID:         "order-1",
		CustomerID: "cust-1",
		Total:      2000,
	}))

	event := domainEvent(t, order.EventRefundCompleted, order.RefundCompleted{
		OrderID: "order-1",
		Amount:  2000,
	})
	require.NoError(t, f.trigger.HandleEvent(context.Background(), event))

	require.Len(t, f.sender.refunds, 1)
	assert.Equal(t, "taro@example.com", f.sender.refunds[0].To)
	assert.Equal(t, int64(2000), f.sender.refunds[0].Amount)
}

// ============================================
// Unrelated Events
// ============================================

func TestTrigger_IgnoresUnrelatedEvents(t *testing.T) {
	f := newTriggerFixture(t)

	event := domainEvent(t, order.EventOrderShipped, order.OrderShipped{OrderID: "order-1"})
	require.NoError(t, f.trigger.HandleEvent(context.Background(), event))

	assert.Empty(t, f.sender.confirmations)
	assert.Empty(t, f.sender.refunds)
}
