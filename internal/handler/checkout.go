package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
)

var errMissingQuantity = errors.New("quantity is required")

// Checkout handles POST /api/cart/checkout.
//
// With ?redirect=true the client is sent to the checkout page with 303 See
// Other. Otherwise the answer is 200 with the checkout URL, also set as
// Location, for the client to follow.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	v := viewer(w, r)
	if redirect, _ := strconv.ParseBool(r.URL.Query().Get("redirect")); redirect {
		if c := collectorFrom(r.Context()); c != nil {
			c.redirect = true
		}
	}

	res, err := h.shop.Checkout(r.Context(), v)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", res.URL)
	status := http.StatusOK
	if res.Redirected {
		status = http.StatusSeeOther
	}
	writeJSON(w, status, encodeCheckout(res))
}

// GetCheckoutRecord handles GET /api/checkouts/{sessionId}. Only checkouts
// created from the caller's cart are visible.
func (h *Handler) GetCheckoutRecord(w http.ResponseWriter, r *http.Request) {
	o, err := h.shop.CheckoutRecord(r.Context(), viewer(w, r), r.PathValue("sessionId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOrder(o))
}

// ResetCheckout handles DELETE /api/cart/checkout.
func (h *Handler) ResetCheckout(w http.ResponseWriter, r *http.Request) {
	view, err := h.shop.ResetCheckout(r.Context(), viewer(w, r))
	h.respondCart(w, r, view, err)
}
