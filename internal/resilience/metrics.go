package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outbound_breaker_state",
		Help: "Circuit breaker state per outbound target: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_breaker_transitions_total",
		Help: "Circuit breaker state transitions per outbound target.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_breaker_opened_total",
		Help: "Times a circuit breaker opened.",
	}, []string{"target"})
	// OutboundAttempts counts outbound HTTP attempts by target and result.
	OutboundAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_http_attempts_total",
		Help: "Outbound HTTP attempts by target and result (ok, failed, rejected).",
	}, []string{"target", "result"})
)

// RegisterMetrics adds the outbound collectors to reg. Registering twice is
// not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{BreakerState, BreakerTransitions, BreakerOpenedTotal, OutboundAttempts} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
