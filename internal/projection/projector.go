// Package projection folds domain events into the denormalised read models.
// The same Projector serves the synchronous command path and the bus
// consumers; both funnel into Apply.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/eventshop/internal/domain/order"
	"github.com/example/eventshop/internal/domain/product"
	"github.com/example/eventshop/internal/domain/user"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/readmodel"
)

type Projector struct {
	readStore store.ReadStore
}

func NewProjector(readStore store.ReadStore) *Projector {
	return &Projector{readStore: readStore}
}

// HandleEvent is the bus entry point: it decodes the envelope and applies.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("decode event envelope: %w", err)
	}

	log.Printf("[Projector] %s v%d (aggregate %s/%s)", event.EventType, event.Version, event.AggregateType, event.AggregateID)
	return p.Apply(ctx, event)
}

// Apply folds one event into its read model. Update-style events whose row
// is missing are no-ops; the log stays the source of truth and catch-up
// replay reconciles.
func (p *Projector) Apply(ctx context.Context, event store.Event) error {
	switch event.AggregateType {
	case store.AggregateTypeProduct:
		return p.applyProductEvent(ctx, event)
	case store.AggregateTypeOrder:
		return p.applyOrderEvent(ctx, event)
	case store.AggregateTypeUser:
		return p.applyUserEvent(ctx, event)
	}
	return nil
}

func (p *Projector) applyProductEvent(ctx context.Context, event store.Event) error {
	switch event.EventType {
	case product.EventProductCreated:
		var e product.ProductCreated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		return p.readStore.UpsertProduct(ctx, &readmodel.Product{
			ID:          e.ProductID,
			Name:        e.Name,
			Description: e.Description,
			Price:       e.Price,
			CategoryID:  e.CategoryID,
			Stock:       e.Stock,
			StockStatus: readmodel.StockStatusFor(e.Stock),
			Status:      e.Status,
			ImageURLs:   []string{},
			Version:     event.Version,
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   e.CreatedAt,
		})

	case product.EventProductUpdated:
		var e product.ProductUpdated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		return p.updateProduct(ctx, e.ProductID, event.Version, func(row *readmodel.Product) {
			if e.Name != nil {
				row.Name = *e.Name
			}
			if e.Description != nil {
				row.Description = *e.Description
			}
			if e.Price != nil {
				row.Price = *e.Price
			}
			if e.CategoryID != nil {
				row.CategoryID = *e.CategoryID
			}
			if e.Status != nil {
				row.Status = *e.Status
			}
			row.UpdatedAt = e.UpdatedAt
		})

	case product.EventProductDeleted:
		var e product.ProductDeleted
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		return p.readStore.DeleteProduct(ctx, e.ProductID)

	case product.EventStockUpdated:
		var e product.StockUpdated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		return p.updateProduct(ctx, e.ProductID, event.Version, func(row *readmodel.Product) {
			row.Stock = e.Quantity
			row.StockStatus = readmodel.StockStatusFor(e.Quantity)
			row.UpdatedAt = e.UpdatedAt
		})

	case product.EventStockDecreased:
		var e product.StockDecreased
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		return p.updateProduct(ctx, e.ProductID, event.Version, func(row *readmodel.Product) {
			row.Stock -= e.Quantity
			if row.Stock < 0 {
				row.Stock = 0
			}
			row.StockStatus = readmodel.StockStatusFor(row.Stock)
		})

	case product.EventStockIncreased:
		var e product.StockIncreased
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		return p.updateProduct(ctx, e.ProductID, event.Version, func(row *readmodel.Product) {
			row.Stock += e.Quantity
			row.StockStatus = readmodel.StockStatusFor(row.Stock)
		})

	case product.EventProductImageAssociated:
		var e product.ProductImageAssociated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		return p.updateProduct(ctx, e.ProductID, event.Version, func(row *readmodel.Product) {
			// Same ceiling as aggregate replay: extras in a historic stream
			// are dropped, never projected.
			if len(row.ImageURLs) >= product.MaxImages {
				return
			}
			row.ImageURLs = append(row.ImageURLs, e.ImageURL)
		})
	}
	return nil
}

// updateProduct reads the current row, mutates it and writes it back.
// Concurrent projections are last-writer-wins; replay is authoritative.
func (p *Projector) updateProduct(ctx context.Context, productID string, version int, mutate func(*readmodel.Product)) error {
	row, found, err := p.readStore.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	mutate(row)
	row.Version = version
	return p.readStore.UpsertProduct(ctx, row)
}

func (p *Projector) applyOrderEvent(ctx context.Context, event store.Event) error {
	switch event.EventType {
	case order.EventOrderCreated:
		var e order.OrderCreated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		items := make([]readmodel.OrderItem, len(e.Items))
		for i, item := range e.Items {
			items[i] = readmodel.OrderItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				UnitPrice: item.UnitPrice,
				Quantity:  item.Quantity,
			}
		}
		return p.readStore.UpsertOrder(ctx, &readmodel.Order{
			ID:         e.OrderID,
			CustomerID: e.CustomerID,
			Items:      items,
			ShippingAddress: readmodel.ShippingAddress{
				Name:       e.ShippingAddress.Name,
				PostalCode: e.ShippingAddress.PostalCode,
				Prefecture: e.ShippingAddress.Prefecture,
				City:       e.ShippingAddress.City,
				Line1:      e.ShippingAddress.Line1,
				Line2:      e.ShippingAddress.Line2,
				Phone:      e.ShippingAddress.Phone,
			},
			PaymentMethod: e.PaymentMethod,
			Subtotal:      e.Subtotal,
			ShippingFee:   e.ShippingFee,
			Total:         e.Total,
			Status:        string(order.StatusAccepted),
			CreatedAt:     e.CreatedAt,
			UpdatedAt:     e.CreatedAt,
		})

	case order.EventPaymentCompleted:
		var e order.PaymentCompleted
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		return p.updateOrder(ctx, e.OrderID, func(row *readmodel.Order) {
			row.TransactionID = e.TransactionID
			row.UpdatedAt = e.CreatedAt
		})

	case order.EventConvenienceStorePaymentIssued:
		var e order.ConvenienceStorePaymentIssued
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return err
		}
		return p.updateOrder(ctx, e.OrderID, func(row *readmodel.Order) {
			row.PaymentCode = e.PaymentCode
			expires := e.ExpiresAt
			row.PaymentCodeExpiresAt = &expires
			row.UpdatedAt = e.CreatedAt
		})

	case order.EventOrderShipped:
		return p.updateOrderStatus(ctx, event, order.StatusShipped)

	case order.EventOrderCompleted:
		return p.updateOrderStatus(ctx, event, order.StatusCompleted)

	case order.EventOrderCancelled:
		return p.updateOrderStatus(ctx, event, order.StatusCancelled)

	case order.EventRefundCompleted:
		// The order row does not surface refunds; replay carries the flag.
		return nil
	}
	return nil
}

func (p *Projector) updateOrderStatus(ctx context.Context, event store.Event, status order.Status) error {
	return p.updateOrder(ctx, event.AggregateID, func(row *readmodel.Order) {
		row.Status = string(status)
		row.UpdatedAt = event.CreatedAt
	})
}

func (p *Projector) updateOrder(ctx context.Context, orderID string, mutate func(*readmodel.Order)) error {
	row, found, err := p.readStore.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	mutate(row)
	return p.readStore.UpsertOrder(ctx, row)
}

// applyUserEvent touches only the emailVerified flag. The rest of the users
// row is write-through, owned by the auth service.
func (p *Projector) applyUserEvent(ctx context.Context, event store.Event) error {
	if event.EventType != user.EventEmailVerified {
		return nil
	}
	var e user.EmailVerified
	if err := json.Unmarshal(event.Payload, &e); err != nil {
		return err
	}
	return p.readStore.SetUserEmailVerified(ctx, e.UserID)
}

// ApplyAll replays a batch in order, used by the catch-up projector.
func (p *Projector) ApplyAll(ctx context.Context, events []store.Event) error {
	for _, event := range events {
		if err := p.Apply(ctx, event); err != nil {
			return fmt.Errorf("apply %s v%d: %w", event.EventType, event.Version, err)
		}
	}
	return nil
}
