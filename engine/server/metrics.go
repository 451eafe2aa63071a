package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"penchy/engine/infra/monitoring/metrics"
)

// Metrics tracks the counters/gauges spec.md §5's concurrency model calls
// for observing: results received, composition timeouts, and active
// nodes. Grounded on engine/infra/monitoring (teacher direct dependency
// on github.com/prometheus/client_golang), trimmed to a plain Prometheus
// registry instead of the teacher's OTel-exporter-backed one, since
// PenchY's server has no tracing surface to share a meter provider with.
// Metric names go through the teacher's own naming helper
// (engine/infra/monitoring/metrics.MetricNameWithSubsystem), adapted in
// place to PenchY's "penchy_" namespace rather than reimplemented here.
type Metrics struct {
	registry        *prometheus.Registry
	resultsReceived prometheus.Counter
	timeouts        prometheus.Counter
	activeNodes     prometheus.Gauge
	compositionTime prometheus.Histogram
}

// NewMetrics builds a fresh, independently-registered Metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	sub := "server"
	m := &Metrics{
		registry: reg,
		resultsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.MetricNameWithSubsystem(sub, "results_received_total"),
			Help: "Number of composition results received via rcv_data.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.MetricNameWithSubsystem(sub, "composition_timeouts_total"),
			Help: "Number of compositions killed after exceeding their deadline.",
		}),
		activeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metrics.MetricNameWithSubsystem(sub, "active_nodes"),
			Help: "Number of distinct nodes this server run is deploying to.",
		}),
		compositionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metrics.MetricNameWithSubsystem(sub, "composition_duration_seconds"),
			Help:    "Time from start_timeout to a composition's result (or error) arriving.",
			Buckets: metrics.CompositionDurationBuckets,
		}),
	}
	reg.MustRegister(m.resultsReceived, m.timeouts, m.activeNodes, m.compositionTime)
	return m
}

func (m *Metrics) IncResultsReceived()  { m.resultsReceived.Inc() }
func (m *Metrics) IncTimeouts()         { m.timeouts.Inc() }
func (m *Metrics) SetActiveNodes(n int) { m.activeNodes.Set(float64(n)) }
func (m *Metrics) ObserveCompositionDuration(d time.Duration) {
	m.compositionTime.Observe(d.Seconds())
}

// Handler exposes the metrics registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
