package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eoafashion/storefront-api/internal/health"
	"github.com/eoafashion/storefront-api/internal/resilience"
)

func ready(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return rr.Code, status
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyReportsProbesAndBreaker(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	h := health.Handler{
		Probes: []health.Probe{{Name: "redis", Check: func(context.Context) error { return nil }}},
		Info:   map[string]health.Informer{"checkout": breaker},
	}
	code, status := ready(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", status["redis"])
	require.Equal(t, "closed", status["checkout"])
}

func TestReadyFailure(t *testing.T) {
	h := health.Handler{Probes: []health.Probe{
		{Name: "redis", Check: func(context.Context) error { return errors.New("redis down") }},
	}}
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "redis down", status["redis"])
}

func TestReadyProbeTimeout(t *testing.T) {
	h := health.Handler{Probes: []health.Probe{{
		Name:    "redis",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}}
	code, _ := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadinessAfterShutdown(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	h := health.Handler{}

	health.SetReady(true)
	code, _ := ready(t, h)
	require.Equal(t, http.StatusOK, code)

	health.SetReady(false)
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "shutting down", status["server"])
}
