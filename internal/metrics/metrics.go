// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, route pattern and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outpost_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outpost_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// GroupOperationsTotal counts group service calls by operation and outcome.
	GroupOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outpost_group_operations_total",
			Help: "Total number of group operations",
		},
		[]string{"operation", "result"},
	)

	InviteCodeAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outpost_invite_code_attempts",
			Help:    "Attempts needed to issue a unique invite code",
			Buckets: []float64{1, 2, 3, 5, 10},
		},
	)

	// EventsDispatchedTotal counts best-effort side effects by sink and outcome.
	EventsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outpost_events_dispatched_total",
			Help: "Total number of events handed to a sink",
		},
		[]string{"sink", "type", "result"},
	)

	GeocoderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outpost_geocoder_requests_total",
			Help: "Total number of reverse geocoding lookups",
		},
		[]string{"result"},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outpost_websocket_connections",
			Help: "Number of open websocket connections",
		},
	)
)

func RecordRequest(method, route, statusCode string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordGroupOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	GroupOperationsTotal.WithLabelValues(operation, result).Inc()
}
