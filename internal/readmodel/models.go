// Package readmodel defines the denormalised view types served by the query
// side. They are derived from domain events (or written through directly for
// non-event-sourced entities) and carry no behaviour beyond small derivation
// helpers.
package readmodel

import "time"

// Product statuses and stock statuses as stored in products_rm.
const (
	ProductStatusPublished   = "PUBLISHED"
	ProductStatusUnpublished = "UNPUBLISHED"

	StockStatusInStock    = "IN_STOCK"
	StockStatusOutOfStock = "OUT_OF_STOCK"
)

// StockStatusFor derives the stock status column from a quantity.
func StockStatusFor(stock int) string {
	if stock > 0 {
		return StockStatusInStock
	}
	return StockStatusOutOfStock
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	CategoryID  string    `json:"category_id,omitempty"`
	Stock       int       `json:"stock"`
	StockStatus string    `json:"stock_status"`
	Status      string    `json:"status"`
	ImageURLs   []string  `json:"image_urls"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// ShippingAddress is the address snapshot embedded in an order view.
type ShippingAddress struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Phone      string `json:"phone"`
}

type Order struct {
	ID                   string          `json:"id"`
	CustomerID           string          `json:"customer_id"`
	Items                []OrderItem     `json:"items"`
	ShippingAddress      ShippingAddress `json:"shipping_address"`
	PaymentMethod        string          `json:"payment_method"`
	Subtotal             int64           `json:"subtotal"`
	ShippingFee          int64           `json:"shipping_fee"`
	Total                int64           `json:"total"`
	Status               string          `json:"status"`
	TransactionID        string          `json:"transaction_id,omitempty"`
	PaymentCode          string          `json:"payment_code,omitempty"`
	PaymentCodeExpiresAt *time.Time      `json:"payment_code_expires_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// User is the write-through credentials row. The hash and lockout counters
// never serialise into responses.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Name                string     `json:"name"`
	Role                string     `json:"role"`
	EmailVerified       bool       `json:"email_verified"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Address is one entry in a customer's address book.
type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	Name       string    `json:"name"`
	PostalCode string    `json:"postal_code"`
	Prefecture string    `json:"prefecture"`
	City       string    `json:"city"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WishlistItem is a wishlist row joined with its product view.
type WishlistItem struct {
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	StockStatus string    `json:"stock_status"`
	ImageURL    string    `json:"image_url,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}
