// Package handler serves the storefront HTTP API.
package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/member-cart/internal/domain/cart"
	"github.com/xenking/member-cart/internal/domain/shop"
	"github.com/xenking/member-cart/pkg/httpmiddleware"
)

// Request and response headers.
const (
	// SessionHeader selects the cart. A missing or malformed value starts a
	// new session whose id is returned in the same header.
	SessionHeader       = "X-Cart-Session"
	CustomerIDHeader    = "X-Customer-ID"
	CustomerEmailHeader = "X-Customer-Email"
)

const maxBodyBytes = 1 << 16

// Handler serves the storefront endpoints.
type Handler struct {
	shop *shop.Service
}

// New creates a Handler on top of the storefront service.
func New(svc *shop.Service) *Handler {
	return &Handler{shop: svc}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		fn      http.HandlerFunc
	}{
		{"GET /api/products", h.ListOffers},
		{"GET /api/cart", h.GetCart},
		{"DELETE /api/cart", h.ClearCart},
		{"POST /api/cart/items", h.AddItem},
		{"PATCH /api/cart/items/{variantId}", h.UpdateItem},
		{"DELETE /api/cart/items/{variantId}", h.RemoveItem},
		{"POST /api/cart/checkout", h.Checkout},
		{"DELETE /api/cart/checkout", h.ResetCheckout},
		{"GET /api/checkouts/{sessionId}", h.GetCheckoutRecord},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, httpmiddleware.Route(rt.pattern, withNotifications(rt.fn)))
	}
}

// viewer resolves the session and customer of a request and echoes the
// session id back to the client.
func viewer(w http.ResponseWriter, r *http.Request) shop.Viewer {
	sessionID := r.Header.Get(SessionHeader)
	if _, err := uuid.Parse(sessionID); err != nil {
		sessionID = uuid.NewString()
	}
	w.Header().Set(SessionHeader, sessionID)
	return shop.Viewer{
		SessionID: sessionID,
		Customer: cart.Customer{
			ID:    r.Header.Get(CustomerIDHeader),
			Email: r.Header.Get(CustomerEmailHeader),
		},
	}
}

// writeDomainError maps storefront errors to API errors. Unknown errors are
// logged and answered with 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		pnf  *shop.ProductNotFoundError
		cerr *cart.CheckoutError
	)
	switch {
	case errors.As(err, &pnf):
		httpmiddleware.WriteError(w, http.StatusNotFound, "product_not_found", pnf.Error())
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrMissingVariant):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, "invalid_item", err.Error())
	case errors.Is(err, cart.ErrCurrencyMismatch):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, "currency_mismatch", err.Error())
	case errors.Is(err, cart.ErrEmptyCart):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, shop.ErrCheckoutNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, "checkout_not_found", err.Error())
	case errors.Is(err, cart.ErrCheckoutInProgress):
		httpmiddleware.WriteError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.As(err, &cerr):
		httpmiddleware.WriteError(w, http.StatusBadGateway, "checkout_failed", cerr.Error())
	default:
		zctx.From(r.Context()).Error("Handle request", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
