package cart

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eoafashion/storefront-api/internal/common"
	"github.com/eoafashion/storefront-api/internal/pricing"
)

// TokenIssuer signs cart tokens handed out on cart creation.
type TokenIssuer interface {
	Issue(cartID string) (string, time.Time, error)
}

// Handler wires cart services to HTTP.
type Handler struct {
	Svc      *Service
	Tokens   TokenIssuer
	Currency string
}

// Create starts a new cart and returns its id with a cart token.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	c, err := h.Svc.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := h.view(h.Svc.QuoteFor(c))
	if h.Tokens != nil {
		token, expires, err := h.Tokens.Issue(c.ID)
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to issue cart token", nil)
			return
		}
		data["token"] = token
		data["tokenExpiresAt"] = expires.UTC()
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": data})
}

// Get returns cart contents and pricing.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	q, err := h.Svc.Quote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, q.Cart)
}

// AddItem adds or increments a cart line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload AddItemInput
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	c, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, c)
}

// UpdateItem sets the quantity of a line; zero removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		Quantity *int `json:"quantity" validate:"required,gte=0,lte=99"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	c, err := h.Svc.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"), *payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, c)
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	c, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, c)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	c, err := h.Svc.Clear(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, c)
}

// ApplyPromo applies a promo code to the cart.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		Code string `json:"code" validate:"required,max=32"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	c, err := h.Svc.ApplyPromo(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(payload.Code))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, c)
}

// RemovePromo removes the applied promotion from the cart.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	c, err := h.Svc.RemovePromo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, c)
}

func (h *Handler) respond(w http.ResponseWriter, c Cart) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(h.Svc.QuoteFor(c))})
}

func (h *Handler) view(q Quote) map[string]any {
	items := q.Cart.Items
	if items == nil {
		items = []LineItem{}
	}
	data := map[string]any{
		"id":            q.Cart.ID,
		"items":         items,
		"totalQuantity": q.Cart.TotalQuantity(),
		"pricing":       q.Summary,
		"display": map[string]string{
			"subtotal": pricing.Format(q.Summary.Subtotal, h.Currency),
			"shipping": pricing.Format(q.Summary.Shipping, h.Currency),
			"tax":      pricing.Format(q.Summary.Tax, h.Currency),
			"discount": pricing.Format(q.Summary.Discount, h.Currency),
			"total":    pricing.Format(q.Summary.Total, h.Currency),
		},
		"currency":  h.Currency,
		"updatedAt": q.Cart.UpdatedAt,
	}
	if q.Cart.Promotion != nil {
		data["promo"] = map[string]any{
			"code":     q.Cart.Promotion.Code,
			"rate":     q.Cart.Promotion.Rate.String(),
			"discount": q.Summary.Discount,
		}
	}
	return data
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if common.WriteAppError(w, err) {
		return
	}
	switch {
	case errors.Is(err, pricing.ErrInvalidCode):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_PROMO_CODE", "promo code is not valid", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process cart", nil)
	}
}
