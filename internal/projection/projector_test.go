package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eventshop/internal/domain/order"
	"github.com/example/eventshop/internal/domain/product"
	"github.com/example/eventshop/internal/domain/user"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/infrastructure/store/mocks"
	"github.com/example/eventshop/internal/readmodel"
)

func newTestProjector() (*Projector, *mocks.MemoryReadStore) {
	rs := mocks.NewMemoryReadStore()
	return NewProjector(rs), rs
}

func makeEvent(t *testing.T, aggregateID, aggregateType, eventType string, version int, payload any) store.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return store.Event{
		ID:            "ev-" + eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       data,
		Version:       version,
		CreatedAt:     time.Now().UTC(),
	}
}

// ============================================
// Product Projections
// ============================================

func TestApply_ProductCreated_Inserts(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	err := projector.Apply(ctx, makeEvent(t, "prod-1", store.AggregateTypeProduct, product.EventProductCreated, 1, product.ProductCreated{
		ProductID: "prod-1",
		Name:      "Ceramic Mug",
		Price:     1500,
		Stock:     10,
		Status:    readmodel.ProductStatusPublished,
	}))

	require.NoError(t, err)
	row, found, err := rs.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, readmodel.StockStatusInStock, row.StockStatus)
	assert.Equal(t, 1, row.Version)
}

func TestApply_StockDecreased_ClampsAndRecomputesStatus(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	require.NoError(t, rs.UpsertProduct(ctx, &readmodel.Product{
		ID: "prod-1", Name: "Mug", Stock: 2,
		StockStatus: readmodel.StockStatusInStock,
		Status:      readmodel.ProductStatusPublished,
	}))

	err := projector.Apply(ctx, makeEvent(t, "prod-1", store.AggregateTypeProduct, product.EventStockDecreased, 2, product.StockDecreased{
		ProductID: "prod-1", Quantity: 5, OrderID: "order-1",
	}))

	require.NoError(t, err)
	row, _, _ := rs.GetProduct(ctx, "prod-1")
	assert.Equal(t, 0, row.Stock)
	assert.Equal(t, readmodel.StockStatusOutOfStock, row.StockStatus)
}

func TestApply_ProductUpdated_SparseMerge(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	require.NoError(t, rs.UpsertProduct(ctx, &readmodel.Product{
		ID: "prod-1", Name: "Mug", Description: "350ml", Price: 1500,
		Status: readmodel.ProductStatusPublished,
	}))

	newPrice := int64(1800)
	err := projector.Apply(ctx, makeEvent(t, "prod-1", store.AggregateTypeProduct, product.EventProductUpdated, 2, product.ProductUpdated{
		ProductID: "prod-1", Price: &newPrice,
	}))

	require.NoError(t, err)
	row, _, _ := rs.GetProduct(ctx, "prod-1")
	assert.Equal(t, int64(1800), row.Price)
	assert.Equal(t, "Mug", row.Name)
	assert.Equal(t, "350ml", row.Description)
}

func TestApply_UpdateForMissingRowIsNoOp(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	err := projector.Apply(ctx, makeEvent(t, "ghost", store.AggregateTypeProduct, product.EventStockDecreased, 2, product.StockDecreased{
		ProductID: "ghost", Quantity: 1, OrderID: "order-1",
	}))

	require.NoError(t, err)
	_, found, _ := rs.GetProduct(ctx, "ghost")
	assert.False(t, found)
}

func TestApply_ProductDeleted_RemovesRow(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	require.NoError(t, rs.UpsertProduct(ctx, &readmodel.Product{ID: "prod-1", Name: "Mug"}))

	err := projector.Apply(ctx, makeEvent(t, "prod-1", store.AggregateTypeProduct, product.EventProductDeleted, 2, product.ProductDeleted{ProductID: "prod-1"}))

	require.NoError(t, err)
	_, found, _ := rs.GetProduct(ctx, "prod-1")
	assert.False(t, found)
}

func TestApply_ImageAssociated_AppendsURL(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	require.NoError(t, rs.UpsertProduct(ctx, &readmodel.Product{
		ID: "prod-1", Name: "Mug", Status: readmodel.ProductStatusPublished,
	}))

	err := projector.Apply(ctx, makeEvent(t, "prod-1", store.AggregateTypeProduct, product.EventProductImageAssociated, 2, product.ProductImageAssociated{
		ProductID: "prod-1", ImageURL: "https://img.example.com/1.jpg",
	}))

	require.NoError(t, err)
	row, _, _ := rs.GetProduct(ctx, "prod-1")
	assert.Equal(t, []string{"https://img.example.com/1.jpg"}, row.ImageURLs)
}

func TestApply_ImageAssociated_CapsAtLimit(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	full := make([]string, product.MaxImages)
	for i := range full {
		full[i] = fmt.Sprintf("https://img.example.com/%d.jpg", i)
	}
	require.NoError(t, rs.UpsertProduct(ctx, &readmodel.Product{
		ID: "prod-1", Name: "Mug", Status: readmodel.ProductStatusPublished, ImageURLs: full,
	}))

	err := projector.Apply(ctx, makeEvent(t, "prod-1", store.AggregateTypeProduct, product.EventProductImageAssociated, 12, product.ProductImageAssociated{
		ProductID: "prod-1", ImageURL: "https://img.example.com/extra.jpg",
	}))

	require.NoError(t, err)
	row, _, _ := rs.GetProduct(ctx, "prod-1")
	assert.Len(t, row.ImageURLs, product.MaxImages)
	assert.NotContains(t, row.ImageURLs, "https://img.example.com/extra.jpg")
}

// ============================================
// Order Projections
// ============================================

func TestApply_OrderLifecycle(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	created := makeEvent(t, "order-1", store.AggregateTypeOrder, order.EventOrderCreated, 1, order.OrderCreated{
		OrderID:       "order-1",
		CustomerID:    "cust-1",
		Items:         []order.Item{{ProductID: "prod-1", Name: "Mug", UnitPrice: 1000, Quantity: 2}},
		PaymentMethod: order.PaymentCreditCard,
		Subtotal:      2000,
		Total:         2000,
	})
	require.NoError(t, projector.Apply(ctx, created))

	row, found, _ := rs.GetOrder(ctx, "order-1")
	require.True(t, found)
	assert.Equal(t, string(order.StatusAccepted), row.Status)

	payment := makeEvent(t, "order-1", store.AggregateTypeOrder, order.EventPaymentCompleted, 2, order.PaymentCompleted{
		OrderID: "order-1", TransactionID: "txn_1",
	})
	require.NoError(t, projector.Apply(ctx, payment))

	shipped := makeEvent(t, "order-1", store.AggregateTypeOrder, order.EventOrderShipped, 3, order.OrderShipped{OrderID: "order-1"})
	require.NoError(t, projector.Apply(ctx, shipped))

	row, _, _ = rs.GetOrder(ctx, "order-1")
	assert.Equal(t, "txn_1", row.TransactionID)
	assert.Equal(t, string(order.StatusShipped), row.Status)
}

func TestApply_ConvenienceStorePaymentIssued(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	require.NoError(t, rs.UpsertOrder(ctx, &readmodel.Order{ID: "order-1", Status: string(order.StatusAccepted)}))

	expires := time.Now().Add(72 * time.Hour).UTC()
	err := projector.Apply(ctx, makeEvent(t, "order-1", store.AggregateTypeOrder, order.EventConvenienceStorePaymentIssued, 2, order.ConvenienceStorePaymentIssued{
		OrderID: "order-1", PaymentCode: "pi_konbini", ExpiresAt: expires,
	}))

	require.NoError(t, err)
	row, _, _ := rs.GetOrder(ctx, "order-1")
	assert.Equal(t, "pi_konbini", row.PaymentCode)
	require.NotNil(t, row.PaymentCodeExpiresAt)
	assert.WithinDuration(t, expires, *row.PaymentCodeExpiresAt, time.Second)
}

func TestApply_RefundCompleted_LeavesOrderRow(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	require.NoError(t, rs.UpsertOrder(ctx, &readmodel.Order{ID: "order-1", Status: string(order.StatusCancelled)}))

	err := projector.Apply(ctx, makeEvent(t, "order-1", store.AggregateTypeOrder, order.EventRefundCompleted, 3, order.RefundCompleted{
		OrderID: "order-1", Amount: 2000,
	}))

	require.NoError(t, err)
	row, _, _ := rs.GetOrder(ctx, "order-1")
	assert.Equal(t, string(order.StatusCancelled), row.Status)
}

// ============================================
// User Projections
// ============================================

func TestApply_EmailVerified_FlipsFlag(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	require.NoError(t, rs.InsertUser(ctx, &readmodel.User{ID: "user-1", Email: "taro@example.com"}))

	err := projector.Apply(ctx, makeEvent(t, "user-1", store.AggregateTypeUser, user.EventEmailVerified, 2, user.EmailVerified{UserID: "user-1"}))

	require.NoError(t, err)
	u, _, _ := rs.GetUserByID(ctx, "user-1")
	assert.True(t, u.EmailVerified)
}

func TestApply_OtherUserEventsIgnored(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	require.NoError(t, rs.InsertUser(ctx, &readmodel.User{ID: "user-1", Email: "taro@example.com"}))

	err := projector.Apply(ctx, makeEvent(t, "user-1", store.AggregateTypeUser, user.EventLoginFailed, 2, user.LoginFailed{UserID: "user-1"}))

	require.NoError(t, err)
	u, _, _ := rs.GetUserByID(ctx, "user-1")
	assert.False(t, u.EmailVerified)
}

// ============================================
// Bus entry point
// ============================================

func TestHandleEvent_DecodesEnvelope(t *testing.T) {
	projector, rs := newTestProjector()
	ctx := context.Background()

	event := makeEvent(t, "prod-1", store.AggregateTypeProduct, product.EventProductCreated, 1, product.ProductCreated{
		ProductID: "prod-1", Name: "Mug", Price: 1500, Stock: 3,
		Status: readmodel.ProductStatusPublished,
	})
	encoded, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, projector.HandleEvent(ctx, []byte("prod-1"), encoded))

	_, found, _ := rs.GetProduct(ctx, "prod-1")
	assert.True(t, found)
}
