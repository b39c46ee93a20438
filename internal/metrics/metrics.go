package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for executed calls.
type Metrics struct {
	registry *prometheus.Registry

	CallsTotal       *prometheus.CounterVec
	CallDurationMs   *prometheus.HistogramVec
	PublishFailures  *prometheus.CounterVec
	LoginsTotal      *prometheus.CounterVec
	LastRunTimestamp prometheus.Gauge
}

// New creates the collectors on a dedicated registry, including the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "samvad_calls_total",
			Help: "Total number of integration calls by outcome.",
		}, []string{"call_id", "method", "outcome"}),

		CallDurationMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "samvad_call_duration_ms",
			Help:    "Integration call duration in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"call_id", "method"}),

		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "samvad_publish_failures_total",
			Help: "Outcome events that at least one publisher failed to deliver.",
		}, []string{"call_id"}),

		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "samvad_logins_total",
			Help: "Login handshakes by result.",
		}, []string{"result"}),

		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "samvad_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
}

// RecordCall records one finished call.
func (m *Metrics) RecordCall(callID, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(callID, method, outcome).Inc()
	m.CallDurationMs.WithLabelValues(callID, method).Observe(float64(elapsed) / float64(time.Millisecond))
}

// RecordPublishFailure counts an event that was not delivered everywhere.
func (m *Metrics) RecordPublishFailure(callID string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(callID).Inc()
}

// RecordLogin counts a login handshake; result is "ok", "rejected" or "error".
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// RecordRun marks the end of a run.
func (m *Metrics) RecordRun(at time.Time) {
	if m == nil {
		return
	}
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
