package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/eventshop/internal/api/middleware"
	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/cart"
	"github.com/example/eventshop/internal/command"
	"github.com/example/eventshop/internal/domain/order"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/payment"
	"github.com/example/eventshop/internal/query"
	"github.com/example/eventshop/internal/readmodel"
)

// One customer keeps at most this many saved addresses.
const maxAddressBookSize = 10

// Handlers serves the customer-facing surface: catalog, cart, checkout,
// orders, wishlist and the address book.
type Handlers struct {
	commands  *command.Handler
	queries   *query.Handler
	carts     *cart.Manager
	readStore store.ReadStore
}

func NewHandlers(commands *command.Handler, queries *query.Handler, carts *cart.Manager, readStore store.ReadStore) *Handlers {
	return &Handlers{
		commands:  commands,
		queries:   queries,
		carts:     carts,
		readStore: readStore,
	}
}

// ============================================
// Catalog
// ============================================

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProductFilter{
		CategoryID: q.Get("category"),
		Search:     q.Get("search"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	products, err := h.queries.ListPublishedProducts(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/products/")
	product, err := h.queries.GetPublishedProduct(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.queries.ListCategories(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// ============================================
// Cart
// ============================================

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	view, err := h.carts.AddItem(r.Context(), middleware.GetUserID(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimPrefix(r.URL.Path, "/cart/items/")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	view, err := h.carts.UpdateItem(r.Context(), middleware.GetUserID(r.Context()), productID, req.Quantity)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimPrefix(r.URL.Path, "/cart/items/")

	view, err := h.carts.RemoveItem(r.Context(), middleware.GetUserID(r.Context()), productID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Clear(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ============================================
// Checkout
// ============================================

type creditCardRequest struct {
	Number     string `json:"number"`
	ExpMonth   int64  `json:"expMonth"`
	ExpYear    int64  `json:"expYear"`
	CVC        string `json:"cvc"`
	HolderName string `json:"holderName"`
}

type checkoutRequest struct {
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	CreditCard      *creditCardRequest    `json:"creditCard,omitempty"`
}

// Checkout turns the current cart into an order. The card, when present,
// goes straight to the gateway call and is never echoed back.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.GetUserID(r.Context())

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	view, err := h.carts.Get(r.Context(), customerID)
	if err != nil {
		respondError(w, err)
		return
	}

	cmd := command.Checkout{
		CustomerID:      customerID,
		Items:           make([]command.CartItem, 0, len(view.Items)),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	for _, item := range view.Items {
		cmd.Items = append(cmd.Items, command.CartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	if req.CreditCard != nil {
		cmd.CreditCard = &payment.CreditCard{
			Number:     req.CreditCard.Number,
			ExpMonth:   req.CreditCard.ExpMonth,
			ExpYear:    req.CreditCard.ExpYear,
			CVC:        req.CreditCard.CVC,
			HolderName: req.CreditCard.HolderName,
		}
	}

	placed, err := h.commands.Checkout(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}

	if _, err := h.carts.Clear(r.Context(), customerID); err != nil {
		log.Printf("[API] failed to clear cart for %s after checkout: %v", customerID, err)
	}

	respondJSON(w, http.StatusCreated, placed)
}

// ============================================
// Orders
// ============================================

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queries.ListCustomerOrders(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimPrefix(r.URL.Path, "/orders/")
	o, err := h.queries.GetCustomerOrder(r.Context(), middleware.GetUserID(r.Context()), orderID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ============================================
// Wishlist
// ============================================

func (h *Handlers) ListWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.queries.ListWishlist(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handlers) AddWishlistItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if _, err := h.queries.GetPublishedProduct(r.Context(), req.ProductID); err != nil {
		respondError(w, err)
		return
	}
	if err := h.readStore.AddWishlistItem(r.Context(), middleware.GetUserID(r.Context()), req.ProductID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"productId": req.ProductID})
}

func (h *Handlers) RemoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimPrefix(r.URL.Path, "/wishlist/")
	if err := h.readStore.RemoveWishlistItem(r.Context(), middleware.GetUserID(r.Context()), productID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// ============================================
// Address book
// ============================================

type addressRequest struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	Phone      string `json:"phone"`
}

func (req addressRequest) validate() error {
	var missing []string
	for field, value := range map[string]string{
		"name":        req.Name,
		"postal_code": req.PostalCode,
		"prefecture":  req.Prefecture,
		"city":        req.City,
		"line1":       req.Line1,
		"phone":       req.Phone,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return apperr.New(apperr.CodeInvalidAddressFields, "required address fields are missing").WithFields(missing...)
	}
	return nil
}

func (h *Handlers) ListAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := h.queries.ListAddresses(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, addresses)
}

func (h *Handlers) CreateAddress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, err)
		return
	}

	count, err := h.readStore.CountAddresses(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	if count >= maxAddressBookSize {
		respondCode(w, apperr.CodeAddressBookLimitExceeded, "address book is full")
		return
	}

	now := time.Now().UTC()
	address := &readmodel.Address{
		ID:         uuid.New().String(),
		UserID:     userID,
		Name:       req.Name,
		PostalCode: req.PostalCode,
		Prefecture: req.Prefecture,
		City:       req.City,
		Line1:      req.Line1,
		Line2:      req.Line2,
		Phone:      req.Phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.readStore.InsertAddress(r.Context(), address); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, address)
}

func (h *Handlers) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	addressID := strings.TrimPrefix(r.URL.Path, "/addresses/")

	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, err)
		return
	}

	existing, found, err := h.readStore.GetAddress(r.Context(), userID, addressID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !found {
		respondCode(w, apperr.CodeAddressNotFound, "address not found")
		return
	}

	existing.Name = req.Name
	existing.PostalCode = req.PostalCode
	existing.Prefecture = req.Prefecture
	existing.City = req.City
	existing.Line1 = req.Line1
	existing.Line2 = req.Line2
	existing.Phone = req.Phone
	existing.UpdatedAt = time.Now().UTC()

	if err := h.readStore.UpdateAddress(r.Context(), existing); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, existing)
}

func (h *Handlers) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	addressID := strings.TrimPrefix(r.URL.Path, "/addresses/")

	if err := h.readStore.DeleteAddress(r.Context(), userID, addressID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
