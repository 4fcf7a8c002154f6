// Package handler wires the promotion HTTP API: routing, request/response
// codecs, and API key authentication.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeforce/promo-engine/internal/domain/promotion"
)

// Handler serves the promotion API routes.
type Handler struct {
	service *promotion.Service
	promos  promotion.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(service *promotion.Service, promos promotion.Repository) *Handler {
	return &Handler{
		service: service,
		promos:  promos,
	}
}

// Routes returns the chi router for the API surface. Every route requires an
// authenticated API key via the security middleware.
func (h *Handler) Routes(sec *Security) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(sec.RequireAPIKey)
		r.Get("/promotions", h.listActive)
		r.Post("/promotions/calculate", h.calculate)
		r.Post("/promotions/apply", h.apply)
	})
	return r
}
