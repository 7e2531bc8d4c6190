// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tfinance_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tfinance_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tfinance_auth_events_total",
			Help: "Authentication events by outcome",
		},
		[]string{"event", "outcome"},
	)

	Emails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tfinance_emails_total",
			Help: "Verification emails by delivery outcome",
		},
		[]string{"outcome"},
	)

	Payments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tfinance_payments_total",
			Help: "Payment lifecycle events",
		},
		[]string{"event"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tfinance_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"tier"},
	)
)
