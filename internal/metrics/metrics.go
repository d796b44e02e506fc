package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customalerts_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Evaluation metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customalerts_evaluations_total",
			Help: "Alert evaluations by outcome",
		},
		[]string{"outcome"}, // not_triggered, triggered, skipped, error
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "customalerts_run_duration_seconds",
			Help:    "Time taken to process and dispatch one (period, site) run",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Dispatch metrics
	EmailsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "customalerts_emails_sent_total",
			Help: "Consolidated alert emails dispatched",
		},
	)

	SmsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "customalerts_sms_sent_total",
			Help: "Consolidated alert SMS messages dispatched",
		},
	)

	DispatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customalerts_dispatch_failures_total",
			Help: "Per-recipient dispatch failures",
		},
		[]string{"channel"},
	)

	// Run queue metrics
	RunQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "customalerts_run_queue_size",
			Help: "Current number of queued (period, site) run jobs",
		},
	)
)
