// Package metrics holds the Prometheus collectors exposed by the server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	MetricHTTPRequestsTotal   = "customerdir_http_requests_total"
	MetricHTTPRequestDuration = "customerdir_http_request_duration_seconds"
	MetricHTTPInFlight        = "customerdir_http_requests_in_flight"
	MetricRateLimitedTotal    = "customerdir_http_rate_limited_total"
	MetricCustomerEventsTotal = "customerdir_customer_events_total"
)

// Metrics holds the server's Prometheus collectors and their registry
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge
	RateLimitedTotal    prometheus.Counter
	CustomerEventsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance on a fresh registry. Go runtime and
// process collectors are registered alongside the application metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricHTTPInFlight,
				Help: "Number of HTTP requests currently being served",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRateLimitedTotal,
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
		CustomerEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCustomerEventsTotal,
				Help: "Total number of customer domain events published",
			},
			[]string{"event_type"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPInFlight,
		m.RateLimitedTotal,
		m.CustomerEventsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors are registered on.
// Other components (e.g. the list controller) may register their own collectors here.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one completed HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
