package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/infrastructure/store/mocks"
)

func newTestOrderService() (*Service, *mocks.MockEventLog) {
	log := mocks.NewMockEventLog()
	return NewService(log), log
}

func seedOrder(log *mocks.MockEventLog, orderID, paymentMethod string) {
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderCreated, OrderCreated{
		OrderID:       orderID,
		CustomerID:    "cust-1",
		Items:         []Item{{ProductID: "prod-1", Name: "Mug", UnitPrice: 1000, Quantity: 2}},
		PaymentMethod: paymentMethod,
		Subtotal:      2000,
		ShippingFee:   0,
		Total:         2000,
	})
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_Totals(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	o, events, err := service.Create(ctx, CreateParams{
		CustomerID: "cust-1",
		Items: []Item{
			{ProductID: "prod-1", Name: "Mug", UnitPrice: 1000, Quantity: 2},
		},
		PaymentMethod: PaymentCashOnDelivery,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2000), o.Subtotal)
	assert.Equal(t, int64(300), o.ShippingFee)
	assert.Equal(t, int64(2300), o.Total)
	assert.Equal(t, StatusAccepted, o.Status)
	assert.Equal(t, 1, o.Version)
	require.Len(t, events, 1)
	assert.Equal(t, 0, log.AppendCalls[0].ExpectedVersion)
}

func TestService_Create_NoFeeForCard(t *testing.T) {
	service, _ := newTestOrderService()

	o, _, err := service.Create(context.Background(), CreateParams{
		CustomerID:    "cust-1",
		Items:         []Item{{ProductID: "prod-1", UnitPrice: 1000, Quantity: 1}},
		PaymentMethod: PaymentCreditCard,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(0), o.ShippingFee)
	assert.Equal(t, int64(1000), o.Total)
}

func TestService_Create_EmptyCart(t *testing.T) {
	service, log := newTestOrderService()

	_, _, err := service.Create(context.Background(), CreateParams{
		CustomerID:    "cust-1",
		PaymentMethod: PaymentCreditCard,
	})

	assert.True(t, apperr.IsCode(err, apperr.CodeCartEmpty))
	assert.Empty(t, log.AppendCalls)
}

// ============================================
// Payment Events
// ============================================

func TestService_RecordPayment(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)

	o, _, err := service.RecordPayment(ctx, orderID, "txn_123")

	require.NoError(t, err)
	assert.Equal(t, "txn_123", o.TransactionID)
	assert.Equal(t, 1, log.AppendCalls[0].ExpectedVersion)
}

func TestService_IssueConvenienceStoreCode(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentConvenienceStore)
	expiresAt := time.Now().Add(72 * time.Hour)

	o, _, err := service.IssueConvenienceStoreCode(ctx, orderID, "pi_konbini_1", expiresAt)

	require.NoError(t, err)
	assert.Equal(t, "pi_konbini_1", o.PaymentCode)
}

// ============================================
// State Transitions
// ============================================

func TestService_Ship_FromAccepted(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)

	o, _, err := service.Ship(ctx, orderID)

	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)
}

func TestService_Ship_NotFound(t *testing.T) {
	service, _ := newTestOrderService()

	_, _, err := service.Ship(context.Background(), "missing")

	assert.True(t, apperr.IsCode(err, apperr.CodeOrderNotFound))
}

func TestService_Complete_FromShipped(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderShipped, OrderShipped{OrderID: orderID})

	o, _, err := service.Complete(ctx, orderID)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
}

func TestService_Complete_FromAccepted_Invalid(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)

	_, _, err := service.Complete(ctx, orderID)

	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidOrderStatusTransition))
}

func TestService_Cancel_FromAccepted(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)

	o, _, err := service.Cancel(ctx, orderID, "customer request")

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)

	payload := log.AppendCalls[0].Events[0].Payload.(OrderCancelled)
	assert.Equal(t, "customer request", payload.Reason)
}

func TestService_Cancel_FromShipped(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderShipped, OrderShipped{OrderID: orderID})

	_, _, err := service.Cancel(ctx, orderID, "lost parcel")

	require.NoError(t, err)
}

func TestService_Cancel_AlreadyCompleted(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderShipped, OrderShipped{OrderID: orderID})
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderCompleted, OrderCompleted{OrderID: orderID})

	_, _, err := service.Cancel(ctx, orderID, "too late")

	assert.True(t, apperr.IsCode(err, apperr.CodeOrderAlreadyCompleted))
}

func TestService_Cancel_AlreadyCancelled(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderCancelled, OrderCancelled{OrderID: orderID})

	_, _, err := service.Cancel(ctx, orderID, "duplicate")

	assert.True(t, apperr.IsCode(err, apperr.CodeOrderAlreadyCancelled))
}

// ============================================
// Refund Tests
// ============================================

func TestService_Refund_RequiresCancelled(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)

	_, _, err := service.Refund(ctx, orderID)

	assert.True(t, apperr.IsCode(err, apperr.CodeOrderNotCancelled))
}

func TestService_Refund_CreditCardNeedsTransaction(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderCancelled, OrderCancelled{OrderID: orderID})

	_, _, err := service.Refund(ctx, orderID)

	assert.True(t, apperr.IsCode(err, apperr.CodeRefundTransactionNotFound))
}

func TestService_Refund_Success(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCreditCard)
	log.Seed(orderID, store.AggregateTypeOrder, EventPaymentCompleted, PaymentCompleted{OrderID: orderID, TransactionID: "txn_1"})
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderCancelled, OrderCancelled{OrderID: orderID})

	o, _, err := service.Refund(ctx, orderID)

	require.NoError(t, err)
	assert.True(t, o.RefundCompleted)

	payload := log.AppendCalls[0].Events[0].Payload.(RefundCompleted)
	assert.Equal(t, int64(2000), payload.Amount)
}

func TestService_Refund_Idempotent(t *testing.T) {
	service, log := newTestOrderService()
	ctx := context.Background()

	orderID := "order-1"
	seedOrder(log, orderID, PaymentCashOnDelivery)
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderCancelled, OrderCancelled{OrderID: orderID})
	log.Seed(orderID, store.AggregateTypeOrder, EventRefundCompleted, RefundCompleted{OrderID: orderID, Amount: 2000})

	_, _, err := service.Refund(ctx, orderID)

	assert.True(t, apperr.IsCode(err, apperr.CodeOrderAlreadyRefunded))
}

// ============================================
// Replay Matrix
// ============================================

func TestReplay_StatusMatrix(t *testing.T) {
	tests := []struct {
		name     string
		events   []string
		expected Status
	}{
		{"created only", []string{EventOrderCreated}, StatusAccepted},
		{"created then shipped", []string{EventOrderCreated, EventOrderShipped}, StatusShipped},
		{"full lifecycle", []string{EventOrderCreated, EventOrderShipped, EventOrderCompleted}, StatusCompleted},
		{"created then cancelled", []string{EventOrderCreated, EventOrderCancelled}, StatusCancelled},
		{"shipped then cancelled", []string{EventOrderCreated, EventOrderShipped, EventOrderCancelled}, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, log := newTestOrderService()
			orderID := "order-matrix"
			for _, eventType := range tt.events {
				if eventType == EventOrderCreated {
					seedOrder(log, orderID, PaymentCreditCard)
					continue
				}
				log.Seed(orderID, store.AggregateTypeOrder, eventType, map[string]string{"order_id": orderID})
			}

			o, err := service.Load(context.Background(), orderID)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, o.Status)
		})
	}
}

// Replay tolerates sequences a new command would refuse.
func TestReplay_InvalidTransitionNeverErrors(t *testing.T) {
	service, log := newTestOrderService()
	orderID := "order-odd"
	seedOrder(log, orderID, PaymentCreditCard)
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderCompleted, OrderCompleted{OrderID: orderID})
	log.Seed(orderID, store.AggregateTypeOrder, EventOrderShipped, OrderShipped{OrderID: orderID})

	o, err := service.Load(context.Background(), orderID)

	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, 3, o.Version)
}
