package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eoafashion/storefront-api/internal/cart"
	"github.com/eoafashion/storefront-api/internal/common"
	"github.com/eoafashion/storefront-api/internal/lock"
	"github.com/eoafashion/storefront-api/internal/payment"
	"github.com/eoafashion/storefront-api/internal/pricing"
)

// Handler exposes checkout over HTTP.
type Handler struct {
	Svc *Service
}

// Checkout opens a payment session for the cart in the URL and returns the
// redirect target.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	if sessionCart, ok := common.CartID(r.Context()); ok && sessionCart != cartID {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "cart token does not match cart", nil)
		return
	}
	out, err := h.Svc.Create(r.Context(), cartID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	currency := h.Svc.Currency
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"url":       out.URL,
		"sessionId": out.SessionID,
		"pricing":   out.Summary,
		"lines":     out.Lines,
		"currency":  currency,
		"display": map[string]string{
			"total": pricing.Format(out.Summary.Total, currency),
		},
	}})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if common.WriteAppError(w, err) {
		return
	}
	var unresolved *UnresolvedError
	switch {
	case errors.As(err, &unresolved):
		common.JSONError(w, http.StatusConflict, "UNKNOWN_SKU", describe(err), map[string]any{"skus": unresolved.SKUs})
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart has no items", nil)
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, lock.ErrBusy):
		common.SkipIdempotency(r.Context())
		common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "checkout already in progress", nil)
	case errors.Is(err, payment.ErrTransport):
		common.JSONError(w, http.StatusBadGateway, "CHECKOUT_UNAVAILABLE", "payment provider unavailable, try again", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
