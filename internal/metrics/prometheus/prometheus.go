// Package prometheus is the Prometheus-backed implementation of
// metrics.ServerMetrics.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ngpal/glide/internal/metrics"
)

type serverMetrics struct {
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	offersQueued   prometheus.Counter
	bytesRelayed   prometheus.Counter
}

// New registers and returns a Prometheus-backed metrics.ServerMetrics
// against registry.
func New(registry *prometheus.Registry) metrics.ServerMetrics {
	return &serverMetrics{
		sessionsActive: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "glide_sessions_active",
			Help: "Number of currently connected sessions.",
		}),
		sessionsTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "glide_sessions_total",
			Help: "Total number of sessions accepted since startup.",
		}),
		offersQueued: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "glide_offers_queued_total",
			Help: "Total number of file offers queued since startup.",
		}),
		bytesRelayed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "glide_bytes_relayed_total",
			Help: "Total number of file bytes relayed through the server.",
		}),
	}
}

func (m *serverMetrics) SessionStarted() {
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *serverMetrics) SessionEnded() {
	m.sessionsActive.Dec()
}

func (m *serverMetrics) OfferQueued() {
	m.offersQueued.Inc()
}

func (m *serverMetrics) BytesRelayed(n uint64) {
	m.bytesRelayed.Add(float64(n))
}

// Handler returns the HTTP handler that exposes registry in the
// Prometheus exposition format, for mounting on the metrics listener.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
