// Package handler implements the REST API surface: request decoding and
// validation, authentication, and translation of domain errors into the JSON
// response envelope.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/antonwidjaya/store-api/internal/domain/auth"
	"github.com/antonwidjaya/store-api/internal/domain/catalog"
	"github.com/antonwidjaya/store-api/internal/domain/order"
	"github.com/antonwidjaya/store-api/internal/domain/user"
	"github.com/antonwidjaya/store-api/internal/events"
	"github.com/antonwidjaya/store-api/internal/upload"
)

// Handler serves the REST API.
type Handler struct {
	users      user.Repository
	categories catalog.CategoryRepository
	products   catalog.ProductRepository
	orders     *order.Service
	tokens     *auth.Manager
	images     upload.ImageStore
	events     events.Publisher
}

// Config carries the dependencies of a Handler.
type Config struct {
	Users      user.Repository
	Categories catalog.CategoryRepository
	Products   catalog.ProductRepository
	Orders     *order.Service
	Tokens     *auth.Manager
	Images     upload.ImageStore
	Events     events.Publisher
}

// New creates a Handler from its dependencies.
func New(cfg Config) *Handler {
	return &Handler{
		users:      cfg.Users,
		categories: cfg.Categories,
		products:   cfg.Products,
		orders:     cfg.Orders,
		tokens:     cfg.Tokens,
		images:     cfg.Images,
		events:     cfg.Events,
	}
}

// Routes mounts every API route under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.signUp)
			r.Post("/signin", h.signIn)
			r.Post("/signout", h.signOut)

			r.Group(func(r chi.Router) {
				r.Use(h.authenticate)
				r.Get("/me", h.currentUser)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.authenticate)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/", h.listUsers)
				r.Get("/search", h.searchUsers)
				r.Delete("/{userID}", h.deleteUser)
			})

			r.Get("/{userID}", h.getUser)
			r.Put("/{userID}", h.updateUser)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.listCategories)
			r.Get("/{categoryID}", h.getCategory)

			r.Group(func(r chi.Router) {
				r.Use(h.authenticate, h.requireAdmin)
				r.Post("/", h.createCategory)
				r.Put("/{categoryID}", h.updateCategory)
				r.Delete("/{categoryID}", h.deleteCategory)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Get("/{productID}", h.getProduct)

			r.Group(func(r chi.Router) {
				r.Use(h.authenticate, h.requireAdmin)
				r.Post("/", h.createProduct)
				r.Put("/{productID}", h.updateProduct)
				r.Delete("/{productID}", h.deleteProduct)
				r.Post("/{productID}/image", h.uploadProductImage)
				r.Post("/{productID}/variants", h.createVariant)
				r.Put("/variants/{variantID}", h.updateVariant)
				r.Delete("/variants/{variantID}", h.deleteVariant)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(h.authenticate)

			r.Post("/", h.createOrder)
			r.Get("/my", h.listMyOrders)
			r.Get("/{orderID}", h.getOrder)
			r.Post("/{orderID}/cancel", h.cancelOrder)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/", h.listOrders)
				r.Put("/{orderID}/status", h.updateOrderStatus)
				r.Delete("/{orderID}", h.deleteOrder)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondMessage(w, http.StatusNotFound, "route not found")
	})

	return r
}
