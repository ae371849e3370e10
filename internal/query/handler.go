// Package query serves the read side straight from the projected views.
// Handlers never touch the event log.
package query

import (
	"context"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/readmodel"
)

type Handler struct {
	readStore store.ReadStore
}

func NewHandler(readStore store.ReadStore) *Handler {
	return &Handler{readStore: readStore}
}

// ============================================
// Catalog (customer surface)
// ============================================

// ListPublishedProducts returns the storefront catalog, optionally filtered
// by category and a case-insensitive name search.
func (h *Handler) ListPublishedProducts(ctx context.Context, filter store.ProductFilter) ([]*readmodel.Product, error) {
	return h.readStore.ListPublishedProducts(ctx, filter)
}

// GetPublishedProduct returns one catalog product. Unpublished and deleted
// products are indistinguishable from absent ones.
func (h *Handler) GetPublishedProduct(ctx context.Context, id string) (*readmodel.Product, error) {
	p, found, err := h.readStore.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found || p.Status != readmodel.ProductStatusPublished {
		return nil, apperr.New(apperr.CodeProductNotFound, "product not found")
	}
	return p, nil
}

func (h *Handler) ListCategories(ctx context.Context) ([]*readmodel.Category, error) {
	return h.readStore.ListCategories(ctx)
}

func (h *Handler) GetCategory(ctx context.Context, id string) (*readmodel.Category, error) {
	c, found, err := h.readStore.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.New(apperr.CodeCategoryNotFound, "category not found")
	}
	return c, nil
}

// ============================================
// Orders
// ============================================

// GetCustomerOrder enforces ownership: another customer's order reads as not
// found rather than forbidden.
func (h *Handler) GetCustomerOrder(ctx context.Context, customerID, orderID string) (*readmodel.Order, error) {
	o, found, err := h.readStore.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !found || o.CustomerID != customerID {
		return nil, apperr.New(apperr.CodeOrderNotFound, "order not found")
	}
	return o, nil
}

func (h *Handler) ListCustomerOrders(ctx context.Context, customerID string) ([]*readmodel.Order, error) {
	return h.readStore.ListOrdersByCustomer(ctx, customerID)
}

// ============================================
// Admin surface
// ============================================

// GetProduct returns any product regardless of status.
func (h *Handler) GetProduct(ctx context.Context, id string) (*readmodel.Product, error) {
	p, found, err := h.readStore.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.New(apperr.CodeProductNotFound, "product not found")
	}
	return p, nil
}

func (h *Handler) ListAllProducts(ctx context.Context) ([]*readmodel.Product, error) {
	return h.readStore.ListProducts(ctx)
}

func (h *Handler) GetOrder(ctx context.Context, orderID string) (*readmodel.Order, error) {
	o, found, err := h.readStore.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.New(apperr.CodeOrderNotFound, "order not found")
	}
	return o, nil
}

func (h *Handler) ListAllOrders(ctx context.Context) ([]*readmodel.Order, error) {
	return h.readStore.ListOrders(ctx)
}

func (h *Handler) ListCustomers(ctx context.Context) ([]*readmodel.User, error) {
	return h.readStore.ListCustomers(ctx)
}

// ============================================
// Profile
// ============================================

func (h *Handler) ListAddresses(ctx context.Context, userID string) ([]*readmodel.Address, error) {
	return h.readStore.ListAddresses(ctx, userID)
}

func (h *Handler) ListWishlist(ctx context.Context, userID string) ([]*readmodel.WishlistItem, error) {
	return h.readStore.ListWishlist(ctx, userID)
}
