// Package cart keeps shopping carts in memory, one actor goroutine per
// customer. All commands for a customer are serialised through the actor's
// bounded inbox; different customers run in parallel. Carts are not event
// sourced: checkout snapshots the cart into OrderCreated and the cart is
// discarded.
package cart

import (
	"context"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/readmodel"
)

// Catalog is the authoritative product view the cart validates against.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*readmodel.Product, bool, error)
}

// ViewItem is one cart line priced at the catalog's current price.
type ViewItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// View is the cart as returned to the customer.
type View struct {
	CustomerID string     `json:"customerId"`
	Items      []ViewItem `json:"items"`
	Total      int64      `json:"total"`
}

type reqKind int

const (
	reqGet reqKind = iota
	reqAdd
	reqUpdate
	reqRemove
	reqClear
)

type request struct {
	ctx       context.Context
	kind      reqKind
	productID string
	quantity  int
	reply     chan reply
}

type reply struct {
	view *View
	err  error
}

// checkAvailability is the add/update gate: the product must exist and be
// published, and the requested quantity must fit the current stock.
func checkAvailability(ctx context.Context, catalog Catalog, productID string, quantity int) (*readmodel.Product, error) {
	p, found, err := catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !found || p.Status != readmodel.ProductStatusPublished {
		return nil, apperr.New(apperr.CodeProductNotFound, "product not found")
	}
	if p.Stock == 0 {
		return nil, apperr.New(apperr.CodeOutOfStock, "product is out of stock")
	}
	if quantity > p.Stock {
		return nil, apperr.Newf(apperr.CodeInsufficientStock, "only %d in stock", p.Stock)
	}
	return p, nil
}
