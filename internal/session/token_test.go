package session_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/eoafashion/storefront-api/internal/common"
	"github.com/eoafashion/storefront-api/internal/session"
)

func fixedIssuer(now time.Time) session.Issuer {
	return session.Issuer{
		Secret: []byte("test-secret-test-secret-test-secret"),
		TTL:    time.Hour,
		Now:    func() time.Time { return now },
	}
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	iss := fixedIssuer(now)

	token, expires, err := iss.Issue("cart-42")
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), expires)

	cartID, err := iss.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "cart-42", cartID)
}

func TestVerifyRejectsExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	token, _, err := fixedIssuer(now).Issue("cart-42")
	require.NoError(t, err)

	_, err = fixedIssuer(now.Add(2 * time.Hour)).Verify(token)
	require.True(t, errors.Is(err, session.ErrInvalidToken))
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	token, _, err := fixedIssuer(now).Issue("cart-42")
	require.NoError(t, err)

	other := fixedIssuer(now)
	other.Secret = []byte("another-secret-another-secret-xx")
	_, err = other.Verify(token)
	require.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestVerifyRejectsOtherAlgorithm(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	iss := fixedIssuer(now)
	tok, err := jwt.NewBuilder().Subject("cart-42").Issuer("storefront-api").Expiration(now.Add(time.Hour)).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, iss.Secret))
	require.NoError(t, err)

	_, err = iss.Verify(string(signed))
	require.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestVerifyEmpty(t *testing.T) {
	_, err := fixedIssuer(time.Now()).Verify("  ")
	require.ErrorIs(t, err, session.ErrMissingToken)
}

func TestMiddleware(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	iss := fixedIssuer(now)
	mw := session.Middleware{Issuer: iss, CartID: func(r *http.Request) string { return chi.URLParam(r, "id") }}

	r := chi.NewRouter()
	r.With(mw.Require).Get("/carts/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := common.CartID(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(id))
	})

	token, _, err := iss.Issue("cart-1")
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"missing", "/carts/cart-1", "", http.StatusUnauthorized},
		{"garbage", "/carts/cart-1", "not-a-jwt", http.StatusUnauthorized},
		{"other cart", "/carts/cart-2", token, http.StatusForbidden},
		{"ok", "/carts/cart-1", token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set(session.HeaderName, tc.token)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				require.Equal(t, "cart-1", rr.Body.String())
			}
		})
	}
}
