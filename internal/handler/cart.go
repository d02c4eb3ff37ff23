package handler

import (
	"net/http"

	"github.com/xenking/member-cart/internal/domain/cart"
	"github.com/xenking/member-cart/internal/domain/shop"
	"github.com/xenking/member-cart/pkg/httpmiddleware"
)

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, view *shop.CartView, err error) {
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var notes []cart.Notification
	if c := collectorFrom(r.Context()); c != nil {
		notes = c.drain()
	}
	writeJSON(w, http.StatusOK, encodeCart(view, notes))
}

// GetCart handles GET /api/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.shop.View(r.Context(), viewer(w, r))
	h.respondCart(w, r, view, err)
}

// ClearCart handles DELETE /api/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.shop.Clear(r.Context(), viewer(w, r))
	h.respondCart(w, r, view, err)
}

// AddItem handles POST /api/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	v := viewer(w, r)
	req, err := decodeItemRequest(w, r)
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !req.HasQuantity {
		req.Quantity = 1
	}
	view, err := h.shop.AddToCart(r.Context(), v, req.VariantID, req.Quantity)
	h.respondCart(w, r, view, err)
}

// UpdateItem handles PATCH /api/cart/items/{variantId}. A quantity of zero
// or less removes the line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	v := viewer(w, r)
	req, err := decodeItemRequest(w, r)
	if err == nil && !req.HasQuantity {
		err = errMissingQuantity
	}
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	view, err := h.shop.UpdateQuantity(r.Context(), v, r.PathValue("variantId"), req.Quantity)
	h.respondCart(w, r, view, err)
}

// RemoveItem handles DELETE /api/cart/items/{variantId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.shop.RemoveItem(r.Context(), viewer(w, r), r.PathValue("variantId"))
	h.respondCart(w, r, view, err)
}
