package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady toggles readiness. Shutdown flips it to false so load balancers
// drain the instance before the listener closes.
func SetReady(v bool) { ready.Store(v) }

// Probe checks one dependency required to serve traffic.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// Informer reports the state of a dependency that degrades a feature without
// making the instance unready, such as the checkout circuit breaker.
type Informer interface {
	fmt.Stringer
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes []Probe
	Info   map[string]Informer
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe and reports 503 when any fails or the instance is
// shutting down.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(h.Probes)+len(h.Info)+1)
	ok := ready.Load()
	if !ok {
		status["server"] = "shutting down"
	}
	for _, p := range h.Probes {
		if err := runProbe(r.Context(), p); err != nil {
			status[p.Name] = err.Error()
			ok = false
			continue
		}
		status[p.Name] = "ok"
	}
	for name, info := range h.Info {
		status[name] = info.String()
	}
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func runProbe(ctx context.Context, p Probe) error {
	if p.Check == nil {
		return nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}
