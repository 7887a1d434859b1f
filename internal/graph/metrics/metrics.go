package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the graph domain.
type Metrics struct {
	Fetches       *prometheus.CounterVec
	Connections   *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	CooldownHits  prometheus.Counter
	LockContended prometheus.Counter
}

// New creates and registers all graph metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Fetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relationd_fetches_total",
			Help: "Fetch invocations by subject platform and outcome",
		}, []string{"platform", "outcome"}),
		Connections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relationd_connections_total",
			Help: "Connections materialized, by asserting data source",
		}, []string{"source"}),
		FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "relationd_fetch_duration_seconds",
			Help:    "Wall time of fetch-and-materialize runs",
			Buckets: prometheus.DefBuckets,
		}),
		CooldownHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relationd_fetch_cooldown_hits_total",
			Help: "Fetches answered from the graph because the subject was inside its cooldown window",
		}),
		LockContended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relationd_fetch_lock_contended_total",
			Help: "Fetches skipped because another process held the subject lock",
		}),
	}
}

// ObserveFetch records one fetch invocation. Nil-safe so tests can run
// without a registry.
func (m *Metrics) ObserveFetch(platform, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(platform, outcome).Inc()
	m.FetchDuration.Observe(elapsed.Seconds())
}

// IncConnections records materialized connections for one data source.
func (m *Metrics) IncConnections(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Connections.WithLabelValues(source).Add(float64(n))
}

// IncCooldownHit records a fetch short-circuited by the cooldown window.
func (m *Metrics) IncCooldownHit() {
	if m == nil {
		return
	}
	m.CooldownHits.Inc()
}

// IncLockContended records a fetch that lost the subject lock.
func (m *Metrics) IncLockContended() {
	if m == nil {
		return
	}
	m.LockContended.Inc()
}
