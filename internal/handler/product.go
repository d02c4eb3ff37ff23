package handler

import "net/http"

// ListOffers handles GET /api/products.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	v := viewer(w, r)
	offers, mc, err := h.shop.Offers(r.Context(), v)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOffers(offers, mc))
}
