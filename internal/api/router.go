package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/example/eventshop/internal/api/middleware"
	"github.com/example/eventshop/internal/auth"
	"github.com/example/eventshop/internal/domain/user"
)

// NewRouter assembles the HTTP surface. Catalog reads and the auth flows
// are public; everything else requires a bearer token, and /admin/*
// additionally requires the ADMIN role.
func NewRouter(
	handlers *Handlers,
	authHandlers *AuthHandlers,
	adminHandlers *AdminHandlers,
	categoryHandlers *CategoryHandlers,
	jwtService *auth.JWTService,
) http.Handler {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(jwtService)
	adminOnly := func(h http.Handler) http.Handler {
		return authed(middleware.RequireRole(user.RoleAdmin)(h))
	}
	handle := func(pattern string, h http.HandlerFunc) { mux.Handle(pattern, h) }
	handleAuthed := func(pattern string, h http.Handler) { mux.Handle(pattern, authed(h)) }
	handleAdmin := func(pattern string, h http.Handler) { mux.Handle(pattern, adminOnly(h)) }

	// Auth
	handle("/auth/register", postOnly(authHandlers.Register))
	handle("/auth/login", postOnly(authHandlers.Login))
	handle("/auth/logout", postOnly(authHandlers.Logout))
	handle("/auth/refresh", postOnly(authHandlers.Refresh))
	handle("/auth/password-reset", postOnly(authHandlers.RequestPasswordReset))
	handle("/auth/password-reset/confirm", postOnly(authHandlers.ConfirmPasswordReset))
	handle("/auth/verify-email", postOnly(authHandlers.VerifyEmail))
	handleAuthed("/auth/me", getOnly(authHandlers.Me))

	// Catalog (public)
	handle("/products", getOnly(handlers.ListProducts))
	handle("/products/", getOnly(handlers.GetProduct))
	handle("/categories", getOnly(handlers.ListCategories))

	// Cart
	handleAuthed("/cart", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetCart(w, r)
		case http.MethodDelete:
			handlers.ClearCart(w, r)
		default:
			methodNotAllowed(w)
		}
	}))
	handleAuthed("/cart/items", postOnly(handlers.AddCartItem))
	handleAuthed("/cart/items/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			handlers.UpdateCartItem(w, r)
		case http.MethodDelete:
			handlers.RemoveCartItem(w, r)
		default:
			methodNotAllowed(w)
		}
	}))

	// Checkout and orders
	handleAuthed("/checkout", postOnly(handlers.Checkout))
	handleAuthed("/orders", getOnly(handlers.ListOrders))
	handleAuthed("/orders/", getOnly(handlers.GetOrder))

	// Wishlist
	handleAuthed("/wishlist", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.ListWishlist(w, r)
		case http.MethodPost:
			handlers.AddWishlistItem(w, r)
		default:
			methodNotAllowed(w)
		}
	}))
	handleAuthed("/wishlist/", deleteOnly(handlers.RemoveWishlistItem))

	// Address book
	handleAuthed("/addresses", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.ListAddresses(w, r)
		case http.MethodPost:
			handlers.CreateAddress(w, r)
		default:
			methodNotAllowed(w)
		}
	}))
	handleAuthed("/addresses/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			handlers.UpdateAddress(w, r)
		case http.MethodDelete:
			handlers.DeleteAddress(w, r)
		default:
			methodNotAllowed(w)
		}
	}))

	// Admin: products
	handleAdmin("/admin/products", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			adminHandlers.ListProducts(w, r)
		case http.MethodPost:
			adminHandlers.CreateProduct(w, r)
		default:
			methodNotAllowed(w)
		}
	}))
	handleAdmin("/admin/products/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/stock") && r.Method == http.MethodPut:
			adminHandlers.UpdateStock(w, r)
		case strings.HasSuffix(path, "/images") && r.Method == http.MethodPost:
			adminHandlers.AssociateProductImage(w, r)
		case r.Method == http.MethodGet:
			adminHandlers.GetProduct(w, r)
		case r.Method == http.MethodPut:
			adminHandlers.UpdateProduct(w, r)
		case r.Method == http.MethodDelete:
			adminHandlers.DeleteProduct(w, r)
		default:
			methodNotAllowed(w)
		}
	}))
	handleAdmin("/admin/images", postOnly(adminHandlers.UploadImage))

	// Admin: categories
	handleAdmin("/admin/categories", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			categoryHandlers.ListCategories(w, r)
		case http.MethodPost:
			categoryHandlers.CreateCategory(w, r)
		default:
			methodNotAllowed(w)
		}
	}))
	handleAdmin("/admin/categories/", deleteOnly(categoryHandlers.DeleteCategory))

	// Admin: orders
	handleAdmin("/admin/orders", getOnly(adminHandlers.ListOrders))
	handleAdmin("/admin/orders/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/status") && r.Method == http.MethodPut:
			adminHandlers.UpdateOrderStatus(w, r)
		case strings.HasSuffix(path, "/cancel") && r.Method == http.MethodPost:
			adminHandlers.CancelOrder(w, r)
		case strings.HasSuffix(path, "/refund") && r.Method == http.MethodPost:
			adminHandlers.RefundOrder(w, r)
		default:
			methodNotAllowed(w)
		}
	}))

	// Admin: customers
	handleAdmin("/admin/customers", getOnly(adminHandlers.ListCustomers))
	handleAdmin("/admin/customers/", getOnly(adminHandlers.GetCustomer))

	return withLogging(mux)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return allowMethod(http.MethodGet, h)
}

func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return allowMethod(http.MethodPost, h)
}

func deleteOnly(h http.HandlerFunc) http.HandlerFunc {
	return allowMethod(http.MethodDelete, h)
}

func allowMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w)
			return
		}
		h(w, r)
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
