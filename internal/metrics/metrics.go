// Package metrics exposes the prometheus collectors used by the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the application collectors. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry setup.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	uploads        *prometheus.CounterVec
	billWrites     *prometheus.CounterVec
	listFailures   prometheus.Counter
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billed",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billed",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billed",
			Name:      "attachment_uploads_total",
			Help:      "Receipt selections by outcome (stored, rejected, failed, superseded).",
		}, []string{"outcome"}),
		billWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billed",
			Name:      "bill_writes_total",
			Help:      "Bill creation requests by outcome.",
		}, []string{"outcome"}),
		listFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billed",
			Name:      "bill_list_failures_total",
			Help:      "Bill listing fetches that failed.",
		}),
	}
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.requests, m.requestLatency, m.uploads, m.billWrites, m.listFailures,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestLatency.WithLabelValues(route).Observe(d.Seconds())
}

// Upload counts a receipt selection outcome.
func (m *Metrics) Upload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// BillWrite counts a bill creation outcome ("ok" or "error").
func (m *Metrics) BillWrite(outcome string) {
	if m == nil {
		return
	}
	m.billWrites.WithLabelValues(outcome).Inc()
}

// ListFailure counts a failed listing fetch.
func (m *Metrics) ListFailure() {
	if m == nil {
		return
	}
	m.listFailures.Inc()
}
