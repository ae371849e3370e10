// Package command orchestrates the write path: each handler identifies the
// actor, loads aggregates, decides, appends events, applies projections and
// fires notifications, in that order.
package command

import (
	"github.com/example/eventshop/internal/domain/order"
	"github.com/example/eventshop/internal/domain/product"
	"github.com/example/eventshop/internal/payment"
)

// CartItem is one checkout line as captured from the customer's cart.
type CartItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// Checkout places an order from the customer's cart. CreditCard is required
// for CREDIT_CARD payments and never leaves the payment gateway call.
type Checkout struct {
	CustomerID      string
	CustomerEmail   string
	CustomerName    string
	Items           []CartItem
	ShippingAddress order.ShippingAddress
	PaymentMethod   string
	CreditCard      *payment.CreditCard
}

type CancelOrder struct {
	OrderID string
	Reason  string
}

type RefundOrder struct {
	OrderID string
}

type ShipOrder struct {
	OrderID string
}

type CompleteOrder struct {
	OrderID string
}

type CreateProduct struct {
	Name        string
	Description string
	Price       int64
	CategoryID  string
	Stock       int
	Status      string
}

type UpdateProduct struct {
	ProductID string
	Changes   product.Changes
}

type DeleteProduct struct {
	ProductID string
}

type UpdateStock struct {
	ProductID string
	Quantity  int
}

type AssociateProductImage struct {
	ProductID string
	ImageURL  string
}
