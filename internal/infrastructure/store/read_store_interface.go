package store

import (
	"context"
	"time"

	"github.com/example/eventshop/internal/readmodel"
)

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	CategoryID string
	Search     string
	Limit      int
	Offset     int
}

// ReadStore persists the denormalised views the query side serves. The
// projection component owns the event-derived tables; users, addresses and
// wishlists are written through directly.
type ReadStore interface {
	// products_rm
	UpsertProduct(ctx context.Context, p *readmodel.Product) error
	GetProduct(ctx context.Context, id string) (*readmodel.Product, bool, error)
	DeleteProduct(ctx context.Context, id string) error
	ListPublishedProducts(ctx context.Context, f ProductFilter) ([]*readmodel.Product, error)
	ListProducts(ctx context.Context) ([]*readmodel.Product, error)
	CountProductsInCategory(ctx context.Context, categoryID string) (int, error)

	// orders_rm
	UpsertOrder(ctx context.Context, o *readmodel.Order) error
	GetOrder(ctx context.Context, id string) (*readmodel.Order, bool, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*readmodel.Order, error)
	ListOrders(ctx context.Context) ([]*readmodel.Order, error)

	// categories_rm
	UpsertCategory(ctx context.Context, c *readmodel.Category) error
	GetCategory(ctx context.Context, id string) (*readmodel.Category, bool, error)
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]*readmodel.Category, error)

	// users (write-through)
	InsertUser(ctx context.Context, u *readmodel.User) error
	GetUserByEmail(ctx context.Context, email string) (*readmodel.User, bool, error)
	GetUserByID(ctx context.Context, id string) (*readmodel.User, bool, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	SetUserEmailVerified(ctx context.Context, id string) error
	UpdateUserLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error
	ListCustomers(ctx context.Context) ([]*readmodel.User, error)

	// addresses
	InsertAddress(ctx context.Context, a *readmodel.Address) error
	UpdateAddress(ctx context.Context, a *readmodel.Address) error
	GetAddress(ctx context.Context, userID, id string) (*readmodel.Address, bool, error)
	DeleteAddress(ctx context.Context, userID, id string) error
	ListAddresses(ctx context.Context, userID string) ([]*readmodel.Address, error)
	CountAddresses(ctx context.Context, userID string) (int, error)

	// wishlists
	AddWishlistItem(ctx context.Context, userID, productID string) error
	RemoveWishlistItem(ctx context.Context, userID, productID string) error
	ListWishlist(ctx context.Context, userID string) ([]*readmodel.WishlistItem, error)
}
