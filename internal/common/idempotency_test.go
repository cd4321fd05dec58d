package common_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/eoafashion/storefront-api/internal/common"
)

func newIdem(t *testing.T) (common.Idem, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Hour}, mr
}

func checkoutRequest(cartID, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/carts/"+cartID+"/checkout", nil)
	req.Header.Set(common.IdempotencyHeader, key)
	return req.WithContext(common.WithCartID(req.Context(), cartID))
}

func TestIdemReplaysCompletedResponse(t *testing.T) {
	idem, _ := newIdem(t)
	var calls atomic.Int32
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"call": n}})
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, checkoutRequest("c1", "k1"))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, checkoutRequest("c1", "k1"))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, first.Body.String(), second.Body.String())
	require.Equal(t, int32(1), calls.Load())

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, checkoutRequest("c2", "k1"))
	require.Equal(t, int32(2), calls.Load())
}

func TestIdemInProgress(t *testing.T) {
	idem, _ := newIdem(t)
	release := make(chan struct{})
	started := make(chan struct{})
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		common.JSON(w, http.StatusCreated, map[string]any{"data": "ok"})
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest("c1", "k2"))
	}()
	<-started

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, checkoutRequest("c1", "k2"))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "IDEMPOTENT_IN_PROGRESS")

	close(release)
	<-done
}

func TestIdemServerErrorReleasesKey(t *testing.T) {
	idem, _ := newIdem(t)
	var calls atomic.Int32
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			common.JSONError(w, http.StatusBadGateway, "CHECKOUT_UNAVAILABLE", "try again", nil)
			return
		}
		common.JSON(w, http.StatusCreated, map[string]any{"data": "ok"})
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, checkoutRequest("c1", "k3"))
	require.Equal(t, http.StatusBadGateway, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, checkoutRequest("c1", "k3"))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, int32(2), calls.Load())
}

func TestIdemWithoutHeaderPassesThrough(t *testing.T) {
	idem, mr := newIdem(t)
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/carts/c1/checkout", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, mr.Keys())
}

func TestIdemTransientResponsesReleaseKey(t *testing.T) {
	idem, mr := newIdem(t)
	var calls atomic.Int32
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "slow down", nil)
		case 2:
			common.SkipIdempotency(r.Context())
			common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "busy", nil)
		default:
			common.JSON(w, http.StatusCreated, map[string]any{"data": "ok"})
		}
	}))

	for _, want := range []int{http.StatusTooManyRequests, http.StatusConflict} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, checkoutRequest("c1", "k5"))
		require.Equal(t, want, rr.Code)
		require.Empty(t, rr.Header().Get("Idempotent-Replayed"))
		require.Empty(t, mr.Keys())
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, checkoutRequest("c1", "k5"))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, int32(3), calls.Load())
	require.Len(t, mr.Keys(), 1)
}

func TestSkipIdempotencyOutsideMiddleware(t *testing.T) {
	require.NotPanics(t, func() {
		common.SkipIdempotency(httptest.NewRequest(http.MethodPost, "/", nil).Context())
	})
}
