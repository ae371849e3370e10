package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/command"
	"github.com/example/eventshop/internal/domain/order"
	"github.com/example/eventshop/internal/domain/product"
	"github.com/example/eventshop/internal/domain/user"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/query"
)

// Uploads larger than this are rejected before they reach storage.
const maxImageBytes = 5 << 20

// ImageRepository stores uploaded binaries and returns their public URL.
type ImageRepository interface {
	Upload(ctx context.Context, data []byte, contentType, key string) (string, error)
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AdminHandlers serves the back-office surface. The router gates every route
// here on role=ADMIN.
type AdminHandlers struct {
	commands  *command.Handler
	queries   *query.Handler
	readStore store.ReadStore
	images    ImageRepository
}

func NewAdminHandlers(commands *command.Handler, queries *query.Handler, readStore store.ReadStore, images ImageRepository) *AdminHandlers {
	return &AdminHandlers{commands: commands, queries: queries, readStore: readStore, images: images}
}

// ============================================
// Products
// ============================================

type createProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	CategoryID  string `json:"categoryId"`
	Stock       int    `json:"stock"`
	Status      string `json:"status"`
}

type updateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	CategoryID  *string `json:"categoryId"`
	Status      *string `json:"status"`
}

func (h *AdminHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queries.ListAllProducts(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *AdminHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.queries.GetProduct(r.Context(), adminPathID(r, "/admin/products/"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *AdminHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p, err := h.commands.CreateProduct(r.Context(), command.CreateProduct{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Stock:       req.Stock,
		Status:      req.Status,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *AdminHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p, err := h.commands.UpdateProduct(r.Context(), command.UpdateProduct{
		ProductID: adminPathID(r, "/admin/products/"),
		Changes: product.Changes{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			CategoryID:  req.CategoryID,
			Status:      req.Status,
		},
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *AdminHandlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.commands.DeleteProduct(r.Context(), command.DeleteProduct{
		ProductID: adminPathID(r, "/admin/products/"),
	}); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *AdminHandlers) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p, err := h.commands.UpdateStock(r.Context(), command.UpdateStock{
		ProductID: adminPathID(r, "/admin/products/"),
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ============================================
// Images
// ============================================

// UploadImage stores a raw image body and returns its public URL without
// touching any product.
func (h *AdminHandlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := readImage(w, r)
	if err != nil {
		respondError(w, err)
		return
	}

	key := "uploads/" + uuid.New().String() + imageExtensions[contentType]
	url, err := h.images.Upload(r.Context(), data, contentType, key)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// AssociateProductImage uploads the body and records the resulting URL on
// the product aggregate.
func (h *AdminHandlers) AssociateProductImage(w http.ResponseWriter, r *http.Request) {
	productID := adminPathID(r, "/admin/products/")

	data, contentType, err := readImage(w, r)
	if err != nil {
		respondError(w, err)
		return
	}

	key := "products/" + productID + "/" + uuid.New().String() + imageExtensions[contentType]
	url, err := h.images.Upload(r.Context(), data, contentType, key)
	if err != nil {
		respondError(w, err)
		return
	}

	p, err := h.commands.AssociateProductImage(r.Context(), command.AssociateProductImage{
		ProductID: productID,
		ImageURL:  url,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")
	if _, ok := imageExtensions[contentType]; !ok {
		return nil, "", apperr.Newf(apperr.CodeUnsupportedImageFormat, "unsupported image format %q", contentType)
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		return nil, "", apperr.New(apperr.CodeValidationError, "image exceeds the size limit")
	}
	if len(data) == 0 {
		return nil, "", apperr.New(apperr.CodeValidationError, "empty image body")
	}
	return data, contentType, nil
}

// ============================================
// Orders
// ============================================

func (h *AdminHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queries.ListAllOrders(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatus drives the fulfilment state machine: SHIPPED and
// COMPLETED are the only statuses reachable through this endpoint.
func (h *AdminHandlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := adminPathID(r, "/admin/orders/")

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	var (
		o   *order.Order
		err error
	)
	switch order.Status(req.Status) {
	case order.StatusShipped:
		o, err = h.commands.ShipOrder(r.Context(), command.ShipOrder{OrderID: orderID})
	case order.StatusCompleted:
		o, err = h.commands.CompleteOrder(r.Context(), command.CompleteOrder{OrderID: orderID})
	default:
		err = apperr.Newf(apperr.CodeValidationError, "status must be %s or %s", order.StatusShipped, order.StatusCompleted).WithFields("status")
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *AdminHandlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	o, err := h.commands.CancelOrder(r.Context(), command.CancelOrder{
		OrderID: adminPathID(r, "/admin/orders/"),
		Reason:  req.Reason,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *AdminHandlers) RefundOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.commands.RefundOrder(r.Context(), command.RefundOrder{
		OrderID: adminPathID(r, "/admin/orders/"),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ============================================
// Customers
// ============================================

func (h *AdminHandlers) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.queries.ListCustomers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, customers)
}

func (h *AdminHandlers) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := adminPathID(r, "/admin/customers/")

	u, found, err := h.readStore.GetUserByID(r.Context(), customerID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !found || u.Role != user.RoleCustomer {
		respondCode(w, apperr.CodeUserNotFound, "customer not found")
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// adminPathID strips the route prefix and any trailing action segment, so
// "/admin/orders/o-1/refund" yields "o-1".
func adminPathID(r *http.Request, prefix string) string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}
