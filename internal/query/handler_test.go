package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/infrastructure/store/mocks"
	"github.com/example/eventshop/internal/readmodel"
)

func newTestQueryHandler(t *testing.T) (*Handler, *mocks.MemoryReadStore) {
	t.Helper()
	rs := mocks.NewMemoryReadStore()
	return NewHandler(rs), rs
}

func seedCatalog(t *testing.T, rs *mocks.MemoryReadStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, rs.UpsertProduct(ctx, &readmodel.Product{
		ID: "prod-1", Name: "Ceramic Mug", CategoryID: "cat-kitchen",
		Price: 1500, Stock: 10, StockStatus: readmodel.StockStatusInStock,
		Status: readmodel.ProductStatusPublished,
	}))
	require.NoError(t, rs.UpsertProduct(ctx, &readmodel.Product{
		ID: "prod-2", Name: "Teapot", CategoryID: "cat-kitchen",
		Price: 3000, Stock: 0, StockStatus: readmodel.StockStatusOutOfStock,
		Status: readmodel.ProductStatusPublished,
	}))
	require.NoError(t, rs.UpsertProduct(ctx, &readmodel.Product{
		ID: "prod-3", Name: "Prototype Bowl", CategoryID: "cat-kitchen",
		Price: 9999, Stock: 1, StockStatus: readmodel.StockStatusInStock,
		Status: readmodel.ProductStatusUnpublished,
	}))
}

// ============================================
// Catalog
// ============================================

func TestListPublishedProducts_HidesUnpublished(t *testing.T) {
	h, rs := newTestQueryHandler(t)
	seedCatalog(t, rs)

	products, err := h.ListPublishedProducts(context.Background(), store.ProductFilter{})

	require.NoError(t, err)
	assert.Len(t, products, 2)
	for _, p := range products {
		assert.Equal(t, readmodel.ProductStatusPublished, p.Status)
	}
}

func TestListPublishedProducts_SearchFilter(t *testing.T) {
	h, rs := newTestQueryHandler(t)
	seedCatalog(t, rs)

	products, err := h.ListPublishedProducts(context.Background(), store.ProductFilter{Search: "mug"})

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "prod-1", products[0].ID)
}

func TestGetPublishedProduct_UnpublishedReadsAsMissing(t *testing.T) {
	h, rs := newTestQueryHandler(t)
	seedCatalog(t, rs)

	_, err := h.GetPublishedProduct(context.Background(), "prod-3")

	assert.True(t, apperr.IsCode(err, apperr.CodeProductNotFound))
}

func TestGetProduct_AdminSeesUnpublished(t *testing.T) {
	h, rs := newTestQueryHandler(t)
	seedCatalog(t, rs)

	p, err := h.GetProduct(context.Background(), "prod-3")

	require.NoError(t, err)
	assert.Equal(t, readmodel.ProductStatusUnpublished, p.Status)
}

func TestGetCategory_Missing(t *testing.T) {
	h, _ := newTestQueryHandler(t)

	_, err := h.GetCategory(context.Background(), "cat-ghost")

	assert.True(t, apperr.IsCode(err, apperr.CodeCategoryNotFound))
}

// ============================================
// Orders
// ============================================

func TestGetCustomerOrder_OwnershipEnforced(t *testing.T) {
	h, rs := newTestQueryHandler(t)
	ctx := context.Background()
	require.NoError(t, rs.UpsertOrder(ctx, &readmodel.Order{
		ID: "order-1", CustomerID: "cust-1", Status: "ACCEPTED", Total: 2000,
	}))

	o, err := h.GetCustomerOrder(ctx, "cust-1", "order-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), o.Total)

	_, err = h.GetCustomerOrder(ctx, "cust-2", "order-1")
	assert.True(t, apperr.IsCode(err, apperr.CodeOrderNotFound))
}

func TestListCustomerOrders_ReturnsOwnOnly(t *testing.T) {
	h, rs := newTestQueryHandler(t)
	ctx := context.Background()
	require.NoError(t, rs.UpsertOrder(ctx, &readmodel.Order{ID: "order-1", CustomerID: "cust-1", Status: "ACCEPTED"}))
	require.NoError(t, rs.UpsertOrder(ctx, &readmodel.Order{ID: "order-2", CustomerID: "cust-2", Status: "ACCEPTED"}))

	orders, err := h.ListCustomerOrders(ctx, "cust-1")

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-1", orders[0].ID)
}

// ============================================
// Admin lists
// ============================================

func TestListCustomers_ExcludesAdmins(t *testing.T) {
	h, rs := newTestQueryHandler(t)
	ctx := context.Background()
	require.NoError(t, rs.InsertUser(ctx, &readmodel.User{ID: "user-1", Email: "taro@example.com", Role: "CUSTOMER"}))
	require.NoError(t, rs.InsertUser(ctx, &readmodel.User{ID: "user-2", Email: "admin@example.com", Role: "ADMIN"}))

	customers, err := h.ListCustomers(ctx)

	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "user-1", customers[0].ID)
}
