// Package handler exposes the checkout service over HTTP. The surface is
// three routes; JSON bodies are read and written with go-faster/jx. Money is
// always rendered as exact decimal strings, never as floats.
package handler

import (
	"net/http"

	"github.com/xenking/token-checkout/internal/checkout"
)

// Handler serves the cart API.
type Handler struct {
	service *checkout.Service
}

// New constructs a Handler over the checkout service.
func New(service *checkout.Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the cart routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/carts", h.createCart)
	mux.HandleFunc("POST /api/carts/{cartID}/items", h.addItem)
	mux.HandleFunc("GET /api/carts/{cartID}/total", h.getTotal)
}
