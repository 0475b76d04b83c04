// Package monitoring exposes Prometheus metrics for provider spend and
// request outcomes, plus a store-backed alert checker.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Metrics holds the Prometheus collectors. It implements the provider
// runner's Observer, so every chargeable call increments the counters
// exactly once.
type Metrics struct {
	calls    *prometheus.CounterVec
	cost     *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	requests *prometheus.CounterVec
	degraded prometheus.Counter
	partial  prometheus.Counter
}

// NewMetrics registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buyergroup_provider_calls_total",
			Help: "Provider calls by provider, operation and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buyergroup_provider_cost_usd_total",
			Help: "Actual provider charges in USD.",
		}, []string{"provider"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "buyergroup_provider_call_seconds",
			Help:    "Provider call latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"provider", "operation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buyergroup_requests_total",
			Help: "Finished discovery requests by tier and state.",
		}, []string{"tier", "state"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buyergroup_degraded_requests_total",
			Help: "Requests that ran at a lower tier than requested.",
		}),
		partial: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buyergroup_partial_requests_total",
			Help: "Requests snapshotted at their deadline.",
		}),
	}
	reg.MustRegister(m.calls, m.cost, m.latency, m.requests, m.degraded, m.partial)
	return m
}

// CallCompleted implements provider.Observer.
func (m *Metrics) CallCompleted(provider, operation string, costUSD float64, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(provider, operation, outcome).Inc()
	if costUSD > 0 {
		m.cost.WithLabelValues(provider).Add(costUSD)
	}
	m.latency.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// ObserveRequest records a finished discovery result.
func (m *Metrics) ObserveRequest(result *model.BuyerGroupResult) {
	if result == nil {
		return
	}
	m.requests.WithLabelValues(string(result.Tier), string(result.State)).Inc()
	if result.Degraded {
		m.degraded.Inc()
	}
	if result.Partial {
		m.partial.Inc()
	}
}
