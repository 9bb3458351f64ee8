// Package metrics exposes the service's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	Registry        *prometheus.Registry
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	AuthEvents      *prometheus.CounterVec
	RateLimitedHits *prometheus.CounterVec
	OTPDeliveries   *prometheus.CounterVec
}

// New initializes and registers every collector under namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by kind and outcome.",
		}, []string{"event", "outcome"}),
		RateLimitedHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the abuse guard, by scope.",
		}, []string{"scope"}),
		OTPDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_deliveries_total",
			Help:      "One-time code deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}

	registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.AuthEvents,
		m.RateLimitedHits,
		m.OTPDeliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) AuthEvent(event, outcome string) {
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) OTPDelivery(channel, outcome string) {
	m.OTPDeliveries.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) RateLimited(scope string) {
	m.RateLimitedHits.WithLabelValues(scope).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
