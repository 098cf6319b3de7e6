package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Email metrics
var (
	EmailSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_send_total",
			Help: "Total number of send attempts",
		},
		[]string{"result"}, // accepted, rejected, invalid
	)

	EmailStatusQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_status_queries_total",
			Help: "Total number of status queries by resolved status",
		},
		[]string{"status"}, // Queued, Succeeded, Failed, Canceled, invalid_handle, error
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of requests to the email provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // send, status
	)
)

// Store metrics
var (
	HistoryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_errors_total",
			Help: "Total number of failed history store operations",
		},
		[]string{"operation"},
	)

	ArchiveErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_errors_total",
			Help: "Total number of messages that could not be archived",
		},
	)
)
