package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/readmodel"
)

// MemoryReadStore is an in-memory ReadStore for tests. It mirrors the
// Postgres store's behaviour for duplicates, scoping and filters.
type MemoryReadStore struct {
	mu         sync.RWMutex
	products   map[string]*readmodel.Product
	orders     map[string]*readmodel.Order
	categories map[string]*readmodel.Category
	users      map[string]*readmodel.User
	addresses  map[string]*readmodel.Address
	wishlists  map[string]map[string]time.Time // userID -> productID -> added at
}

func NewMemoryReadStore() *MemoryReadStore {
	return &MemoryReadStore{
		products:   make(map[string]*readmodel.Product),
		orders:     make(map[string]*readmodel.Order),
		categories: make(map[string]*readmodel.Category),
		users:      make(map[string]*readmodel.User),
		addresses:  make(map[string]*readmodel.Address),
		wishlists:  make(map[string]map[string]time.Time),
	}
}

// ---- products ----

func (m *MemoryReadStore) UpsertProduct(ctx context.Context, p *readmodel.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemoryReadStore) GetProduct(ctx context.Context, id string) (*readmodel.Product, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, false, nil
	}
	cp := *p
	return &cp, true, nil
}

func (m *MemoryReadStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

func (m *MemoryReadStore) ListPublishedProducts(ctx context.Context, f store.ProductFilter) ([]*readmodel.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*readmodel.Product
	for _, p := range m.products {
		if p.Status != readmodel.ProductStatusPublished {
			continue
		}
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryReadStore) ListProducts(ctx context.Context) ([]*readmodel.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*readmodel.Product, 0, len(m.products))
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryReadStore) CountProductsInCategory(ctx context.Context, categoryID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.products {
		if p.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// ---- orders ----

func (m *MemoryReadStore) UpsertOrder(ctx context.Context, o *readmodel.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemoryReadStore) GetOrder(ctx context.Context, id string) (*readmodel.Order, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false, nil
	}
	cp := *o
	return &cp, true, nil
}

func (m *MemoryReadStore) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*readmodel.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*readmodel.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryReadStore) ListOrders(ctx context.Context) ([]*readmodel.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*readmodel.Order, 0, len(m.orders))
	for _, o := range m.orders {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- categories ----

func (m *MemoryReadStore) UpsertCategory(ctx context.Context, c *readmodel.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *MemoryReadStore) GetCategory(ctx context.Context, id string) (*readmodel.Category, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, false, nil
	}
	cp := *c
	return &cp, true, nil
}

func (m *MemoryReadStore) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.categories, id)
	return nil
}

func (m *MemoryReadStore) ListCategories(ctx context.Context) ([]*readmodel.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*readmodel.Category, 0, len(m.categories))
	for _, c := range m.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- users ----

func (m *MemoryReadStore) InsertUser(ctx context.Context, u *readmodel.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.New(apperr.CodeDuplicateEmail, "email is already registered")
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryReadStore) GetUserByEmail(ctx context.Context, email string) (*readmodel.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (m *MemoryReadStore) GetUserByID(ctx context.Context, id string) (*readmodel.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, false, nil
	}
	cp := *u
	return &cp, true, nil
}

func (m *MemoryReadStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryReadStore) SetUserEmailVerified(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.EmailVerified = true
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryReadStore) UpdateUserLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.FailedLoginAttempts = failedAttempts
		u.LockedUntil = lockedUntil
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryReadStore) ListCustomers(ctx context.Context) ([]*readmodel.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*readmodel.User
	for _, u := range m.users {
		if u.Role == "CUSTOMER" {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// ---- addresses ----

func (m *MemoryReadStore) InsertAddress(ctx context.Context, a *readmodel.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.addresses[a.ID] = &cp
	return nil
}

func (m *MemoryReadStore) UpdateAddress(ctx context.Context, a *readmodel.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.addresses[a.ID]
	if !ok || existing.UserID != a.UserID {
		return apperr.New(apperr.CodeAddressNotFound, "address not found")
	}
	cp := *a
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	m.addresses[a.ID] = &cp
	return nil
}

func (m *MemoryReadStore) GetAddress(ctx context.Context, userID, id string) (*readmodel.Address, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.addresses[id]
	if !ok || a.UserID != userID {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

func (m *MemoryReadStore) DeleteAddress(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.addresses[id]; ok && a.UserID == userID {
		delete(m.addresses, id)
	}
	return nil
}

func (m *MemoryReadStore) ListAddresses(ctx context.Context, userID string) ([]*readmodel.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*readmodel.Address
	for _, a := range m.addresses {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryReadStore) CountAddresses(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.addresses {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ---- wishlists ----

func (m *MemoryReadStore) AddWishlistItem(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wishlists[userID] == nil {
		m.wishlists[userID] = make(map[string]time.Time)
	}
	if _, dup := m.wishlists[userID][productID]; dup {
		return apperr.New(apperr.CodeWishlistDuplicate, "product is already on the wishlist")
	}
	m.wishlists[userID][productID] = time.Now().UTC()
	return nil
}

func (m *MemoryReadStore) RemoveWishlistItem(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wishlists[userID] != nil {
		delete(m.wishlists[userID], productID)
	}
	return nil
}

func (m *MemoryReadStore) ListWishlist(ctx context.Context, userID string) ([]*readmodel.WishlistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*readmodel.WishlistItem
	for productID, addedAt := range m.wishlists[userID] {
		p, ok := m.products[productID]
		if !ok {
			continue
		}
		item := &readmodel.WishlistItem{
			ProductID:   productID,
			Name:        p.Name,
			Price:       p.Price,
			StockStatus: p.StockStatus,
			AddedAt:     addedAt,
		}
		if len(p.ImageURLs) > 0 {
			item.ImageURL = p.ImageURLs[0]
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}
