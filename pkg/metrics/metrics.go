// Package metrics exposes control plane counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "apphost"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics groups every collector the control plane updates. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// SyncRuns counts reconciliation runs. Labels: result.
	SyncRuns *prometheus.CounterVec
	// SyncDuration measures reconciliation run time.
	SyncDuration prometheus.Histogram
	// SyncCoalesced counts requests folded into an already pending run.
	SyncCoalesced prometheus.Counter
	// ProxyRequests counts subdomain requests. Labels: outcome
	// (forwarded, not_permitted, not_found, upstream_error).
	ProxyRequests *prometheus.CounterVec
	// LifecycleOps counts application operations. Labels: op, result.
	LifecycleOps *prometheus.CounterVec
	// HealthChecks counts health verifications. Labels: result
	// (healthy, unhealthy, error).
	HealthChecks *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Git hosting reconciliation runs by result",
		}, []string{"result"}),
		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Git hosting reconciliation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SyncCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "coalesced_total",
			Help:      "Reconciliation requests folded into a pending run",
		}),
		ProxyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Subdomain proxy requests by outcome",
		}, []string{"outcome"}),
		LifecycleOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apps",
			Name:      "operations_total",
			Help:      "Application lifecycle operations by type and result",
		}, []string{"op", "result"}),
		HealthChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apps",
			Name:      "health_checks_total",
			Help:      "Application health verifications by result",
		}, []string{"result"}),
	}
}

// ObserveSync records one reconciliation run.
func (m *Metrics) ObserveSync(started time.Time, err error) {
	if m == nil {
		return
	}
	m.SyncDuration.Observe(time.Since(started).Seconds())
	m.SyncRuns.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) Coalesced() {
	if m == nil {
		return
	}
	m.SyncCoalesced.Inc()
}

func (m *Metrics) Proxy(outcome string) {
	if m == nil {
		return
	}
	m.ProxyRequests.WithLabelValues(outcome).Inc()
}

// Lifecycle records an application operation such as create or redeploy.
func (m *Metrics) Lifecycle(op string, err error) {
	if m == nil {
		return
	}
	m.LifecycleOps.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) HealthCheck(result string) {
	if m == nil {
		return
	}
	m.HealthChecks.WithLabelValues(result).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
