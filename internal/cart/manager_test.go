package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/infrastructure/store/mocks"
	"github.com/example/eventshop/internal/readmodel"
)

func newTestManager(t *testing.T) (*Manager, *mocks.MemoryReadStore) {
	t.Helper()
	rs := mocks.NewMemoryReadStore()
	m := NewManager(rs)
	t.Cleanup(m.Close)
	return m, rs
}

func seedProduct(t *testing.T, rs *mocks.MemoryReadStore, id string, price int64, stock int, status string) {
	t.Helper()
	require.NoError(t, rs.UpsertProduct(context.Background(), &readmodel.Product{
		ID: id, Name: "Item " + id, Price: price, Stock: stock,
		StockStatus: readmodel.StockStatusFor(stock),
		Status:      status,
	}))
}

// ============================================
// Commands
// ============================================

func TestAddItem_AccumulatesQuantity(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 10, readmodel.ProductStatusPublished)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "cust-1", "prod-1", 2)
	require.NoError(t, err)
	view, err := m.AddItem(ctx, "cust-1", "prod-1", 3)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, int64(5000), view.Total)
}

func TestAddItem_RejectsOverStock(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 3, readmodel.ProductStatusPublished)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "cust-1", "prod-1", 2)
	require.NoError(t, err)
	_, err = m.AddItem(ctx, "cust-1", "prod-1", 2)

	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock))
}

func TestAddItem_OutOfStock(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 0, readmodel.ProductStatusPublished)

	_, err := m.AddItem(context.Background(), "cust-1", "prod-1", 1)

	assert.True(t, apperr.IsCode(err, apperr.CodeOutOfStock))
}

func TestAddItem_UnpublishedProduct(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 5, readmodel.ProductStatusUnpublished)

	_, err := m.AddItem(context.Background(), "cust-1", "prod-1", 1)

	assert.True(t, apperr.IsCode(err, apperr.CodeProductNotFound))
}

func TestUpdateItem_ZeroDeletes(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 10, readmodel.ProductStatusPublished)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "cust-1", "prod-1", 2)
	require.NoError(t, err)
	view, err := m.UpdateItem(ctx, "cust-1", "prod-1", 0)
	require.NoError(t, err)

	assert.Empty(t, view.Items)
	assert.Equal(t, int64(0), view.Total)
}

func TestClear_EmptiesCart(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 10, readmodel.ProductStatusPublished)
	seedProduct(t, rs, "prod-2", 500, 10, readmodel.ProductStatusPublished)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "cust-1", "prod-1", 1)
	require.NoError(t, err)
	_, err = m.AddItem(ctx, "cust-1", "prod-2", 1)
	require.NoError(t, err)

	view, err := m.Clear(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

// ============================================
// Repricing on read
// ============================================

func TestGet_RepricesAtCurrentCatalogPrice(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 10, readmodel.ProductStatusPublished)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "cust-1", "prod-1", 2)
	require.NoError(t, err)

	seedProduct(t, rs, "prod-1", 1200, 10, readmodel.ProductStatusPublished)

	view, err := m.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(1200), view.Items[0].UnitPrice)
	assert.Equal(t, int64(2400), view.Total)
}

func TestGet_DropsVanishedProducts(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 10, readmodel.ProductStatusPublished)
	seedProduct(t, rs, "prod-2", 500, 10, readmodel.ProductStatusPublished)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "cust-1", "prod-1", 1)
	require.NoError(t, err)
	_, err = m.AddItem(ctx, "cust-1", "prod-2", 1)
	require.NoError(t, err)

	require.NoError(t, rs.DeleteProduct(ctx, "prod-1"))

	view, err := m.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "prod-2", view.Items[0].ProductID)

	// The drop is permanent, not just filtered from one view.
	view, err = m.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

// ============================================
// Isolation and concurrency
// ============================================

func TestCarts_AreIsolatedPerCustomer(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 100, readmodel.ProductStatusPublished)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "cust-1", "prod-1", 1)
	require.NoError(t, err)

	view, err := m.Get(ctx, "cust-2")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestConcurrentAdds_AreSerialised(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 1000, readmodel.ProductStatusPublished)
	ctx := context.Background()

	const goroutines = 20
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.AddItem(ctx, "cust-1", "prod-1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := m.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, goroutines, view.Items[0].Quantity)
}

func TestConcurrentCustomers_DoNotInterfere(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 1000, readmodel.ProductStatusPublished)
	ctx := context.Background()

	const customers = 10
	var wg sync.WaitGroup
	for i := 0; i < customers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			customerID := fmt.Sprintf("cust-%d", n)
			for j := 0; j < 5; j++ {
				_, err := m.AddItem(ctx, customerID, "prod-1", 1)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < customers; i++ {
		view, err := m.Get(ctx, fmt.Sprintf("cust-%d", i))
		require.NoError(t, err)
		require.Len(t, view.Items, 1)
		assert.Equal(t, 5, view.Items[0].Quantity)
	}
}

// ============================================
// Reaping
// ============================================

func TestReapIdle_DiscardsCartAndSurvivesRetry(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 10, readmodel.ProductStatusPublished)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "cust-1", "prod-1", 2)
	require.NoError(t, err)

	m.reapIdle(time.Now().Add(m.idleTTL + time.Minute))

	view, err := m.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestReapIdle_KeepsActiveCarts(t *testing.T) {
	m, rs := newTestManager(t)
	seedProduct(t, rs, "prod-1", 1000, 10, readmodel.ProductStatusPublished)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "cust-1", "prod-1", 2)
	require.NoError(t, err)

	m.reapIdle(time.Now())

	view, err := m.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}
