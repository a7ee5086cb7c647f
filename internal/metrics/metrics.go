// internal/metrics/metrics.go
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Annany2002/nebula-cms/internal/draft"
)

var (
	// API server

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cms_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Form validation and uploads

	ValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_validation_failures_total",
			Help: "Records rejected by a compiled form plan",
		},
		[]string{"table"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_uploads_total",
			Help: "Image uploads by outcome",
		},
		[]string{"table", "field", "outcome"}, // outcome: accepted, rejected
	)

	// Draft store transport

	StoreTransportTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_store_transport_total",
			Help: "Draft store calls to the backend API by outcome",
		},
		[]string{"collection", "op", "outcome"},
	)

	StoreTransportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cms_store_transport_duration_seconds",
			Help:    "Draft store backend call duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"collection", "op"},
	)
)

// Outcome labels
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeStale    = "stale"
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// StoreObserver feeds draft store transport calls into the store metrics.
type StoreObserver struct{}

var _ draft.Observer = StoreObserver{}

// ObserveTransport implements draft.Observer.
func (StoreObserver) ObserveTransport(collection, op string, elapsed time.Duration, err error) {
	outcome := OutcomeOK
	switch {
	case errors.Is(err, draft.ErrStaleResponse):
		outcome = OutcomeStale
	case err != nil:
		outcome = OutcomeError
	}
	StoreTransportTotal.WithLabelValues(collection, op, outcome).Inc()
	StoreTransportDuration.WithLabelValues(collection, op).Observe(elapsed.Seconds())
}
