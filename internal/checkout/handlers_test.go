package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/eoafashion/storefront-api/internal/checkout"
	"github.com/eoafashion/storefront-api/internal/common"
	"github.com/eoafashion/storefront-api/internal/payment"
	"github.com/eoafashion/storefront-api/internal/sku"
)

type checkoutEnvelope struct {
	Data struct {
		URL       string            `json:"url"`
		SessionID string            `json:"sessionId"`
		Display   map[string]string `json:"display"`
		Pricing   struct {
			Total int64 `json:"total"`
		} `json:"pricing"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Details struct {
			SKUs []string `json:"skus"`
		} `json:"details"`
	} `json:"error"`
}

func postCheckout(t *testing.T, svc *checkout.Service, cartID, sessionCart string) (int, checkoutEnvelope) {
	t.Helper()
	h := &checkout.Handler{Svc: svc}
	r := chi.NewRouter()
	r.Post("/carts/{id}/checkout", h.Checkout)

	req := httptest.NewRequest(http.MethodPost, "/carts/"+cartID+"/checkout", nil)
	if sessionCart != "" {
		req = req.WithContext(common.WithCartID(context.Background(), sessionCart))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	var env checkoutEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr.Code, env
}

func TestCheckoutHandlerCreated(t *testing.T) {
	f := newFixture(t)
	f.add(t, 2001, 1, "M", "beige")

	status, env := postCheckout(t, f.svc, "cart-1", "cart-1")
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "https://checkout.test/session/cs_test_1", env.Data.URL)
	require.Equal(t, int64(32292), env.Data.Pricing.Total)
	require.Equal(t, "€322.92", env.Data.Display["total"])
}

func TestCheckoutHandlerErrors(t *testing.T) {
	f := newFixture(t)

	status, env := postCheckout(t, f.svc, "cart-1", "cart-1")
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "EMPTY_CART", env.Error.Code)

	status, env = postCheckout(t, f.svc, "cart-1", "cart-2")
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = postCheckout(t, f.svc, "missing", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", env.Error.Code)

	f.add(t, 1008, 1, "XL", "")
	f.svc.Prices = sku.PriceTable{"LV-JK-BGE-F": "price_1234567891"}
	status, env = postCheckout(t, f.svc, "cart-1", "cart-1")
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "UNKNOWN_SKU", env.Error.Code)
	require.Equal(t, []string{"TM-HD-BLK-M"}, env.Error.Details.SKUs)

	f.svc.Prices = nil
	f.sessions.Err = &payment.TransportError{Reason: "dial tcp: connection refused"}
	status, env = postCheckout(t, f.svc, "cart-1", "cart-1")
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "CHECKOUT_UNAVAILABLE", env.Error.Code)
}
