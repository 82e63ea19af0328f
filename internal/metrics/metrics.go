// Package metrics provides Prometheus metrics for the notes pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	UpstreamTotal    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	NotesTotal       *prometheus.CounterVec
	IssuesSkipped    prometheus.Counter
	PagesPublished   prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		UpstreamTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notesmith_upstream_requests_total",
				Help: "Upstream API calls by service, operation and status.",
			},
			[]string{"service", "op", "status"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notesmith_upstream_duration_seconds",
				Help:    "Upstream API call duration by service and operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "op"},
		),
		NotesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notesmith_notes_generated_total",
				Help: "Generated notes documents by outcome.",
			},
			[]string{"status"},
		),
		IssuesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notesmith_issues_skipped_total",
				Help: "Issues dropped from notes because a per-issue step failed.",
			},
		),
		PagesPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notesmith_pages_published_total",
				Help: "Confluence pages created from generated notes.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.UpstreamTotal)
	reg.MustRegister(m.UpstreamDuration)
	reg.MustRegister(m.NotesTotal)
	reg.MustRegister(m.IssuesSkipped)
	reg.MustRegister(m.PagesPublished)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordUpstream increments the upstream call counter.
func (m *Metrics) RecordUpstream(service, op, status string) {
	m.UpstreamTotal.WithLabelValues(service, op, status).Inc()
}

// ObserveUpstream records an upstream call duration.
func (m *Metrics) ObserveUpstream(service, op string, seconds float64) {
	m.UpstreamDuration.WithLabelValues(service, op).Observe(seconds)
}

// RecordNotes increments the generated-notes counter.
func (m *Metrics) RecordNotes(status string) {
	m.NotesTotal.WithLabelValues(status).Inc()
}
