package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counts HTTP requests by method, matched route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served (by method, route and status).",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms → ~8s
		},
		[]string{"method", "route"},
	)

	// Faults translated into problem responses, by kind.
	FaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_faults_total",
			Help: "Count of failed catalog requests by fault kind.",
		},
		[]string{"kind"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_events_published_total",
			Help: "Catalog change events handed to the broker.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	DiscountApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_discount_applied_total",
			Help: "Number of listed products whose price was discounted.",
		},
	)
)

// ObserveDuration records the time elapsed since start on h.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}

// IncHTTPRequest counts one served request.
func IncHTTPRequest(method, route, status string) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
}

// IncFault counts one problem response of the given fault kind.
func IncFault(kind string) {
	FaultsTotal.WithLabelValues(kind).Inc()
}

// IncEventPublished counts one publish attempt on subject; result is "ok" or "error".
func IncEventPublished(subject, result string) {
	EventsPublished.WithLabelValues(subject, result).Inc()
}

// AddDiscountApplied adds n discounted products from one listing.
func AddDiscountApplied(n int) {
	if n > 0 {
		DiscountApplied.Add(float64(n))
	}
}
