package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_http_requests_total",
			Help: "Total number of HTTP requests by route template, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobboard_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"tier"},
	)

	RateLimitStoreFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobboard_rate_limit_store_fallbacks_total",
			Help: "Total number of times the shared rate-limit store failed and memory was used",
		},
	)

	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_panics_recovered_total",
			Help: "Total number of panics caught at a recovery boundary",
		},
		[]string{"source"},
	)

	DBConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_db_connect_attempts_total",
			Help: "Total number of database connection attempts by outcome",
		},
		[]string{"outcome"},
	)
)
