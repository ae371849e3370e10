package product

import "time"

const (
	EventProductCreated         = "ProductCreated"
	EventProductUpdated         = "ProductUpdated"
	EventProductDeleted         = "ProductDeleted"
	EventStockUpdated           = "StockUpdated"
	EventStockDecreased         = "StockDecreased"
	EventStockIncreased         = "StockIncreased"
	EventProductImageAssociated = "ProductImageAssociated"
)

type ProductCreated struct {
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	CategoryID  string    `json:"category_id,omitempty"`
	Stock       int       `json:"stock"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductUpdated carries only the keys that were supplied; absent keys are
// nil and leave the replayed state untouched.
type ProductUpdated struct {
	ProductID   string    `json:"product_id"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Price       *int64    `json:"price,omitempty"`
	CategoryID  *string   `json:"category_id,omitempty"`
	Status      *string   `json:"status,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductDeleted struct {
	ProductID string    `json:"product_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// StockUpdated replaces the absolute quantity.
type StockUpdated struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockDecreased records a checkout reservation against an order.
type StockDecreased struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StockIncreased restores quantity after an order cancellation.
type StockIncreased struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductImageAssociated struct {
	ProductID string    `json:"product_id"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}
