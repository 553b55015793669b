// Lumapost - Google Business Profile Automation
// Copyright 2026 Lumapost Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumapost/lumapost

// Package metrics provides Prometheus instrumentation for the automation
// scheduler, pipelines, outbound API clients, and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Run Metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"kind", "trigger", "status"}, // kind: post|reply, trigger: scheduled|manual|catchup
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	RunFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_run_failures_total",
			Help: "Total number of failed pipeline runs by reason",
		},
		[]string{"kind", "reason"},
	)

	ActiveJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "automation_active_jobs",
			Help: "Number of registered scheduler jobs",
		},
		[]string{"kind"},
	)

	// Duplicate-Post Guard Metrics
	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_guard_rejections_total",
			Help: "Total number of run attempts rejected because the location was already running",
		},
		[]string{"kind"},
	)

	// Missed-Run Reconciler Metrics
	ReconcilerSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_sweeps_total",
			Help: "Total number of reconciler sweeps",
		},
	)

	ReconcilerSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconciler_sweep_duration_seconds",
			Help:    "Duration of reconciler sweeps in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconcilerCatchups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_catchups_total",
			Help: "Total number of missed posts fired as catch-up runs",
		},
	)

	// Business Profile API Client Metrics
	GBPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gbp_requests_total",
			Help: "Total number of Business Profile API requests",
		},
		[]string{"operation", "status"}, // operation: publish_post|list_reviews|reply_review|refresh_token
	)

	GBPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gbp_request_duration_seconds",
			Help:    "Business Profile API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event Bus Metrics
	OutcomesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outcomes_published_total",
			Help: "Total number of run outcomes published to the event bus",
		},
	)

	OutcomesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outcomes_consumed_total",
			Help: "Total number of run outcomes consumed from the event bus",
		},
	)

	OutcomeWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outcome_write_errors_total",
			Help: "Total number of run history write failures",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)
)

// RecordRun records a completed pipeline run.
func RecordRun(kind, trigger, status string, duration time.Duration) {
	RunsTotal.WithLabelValues(kind, trigger, status).Inc()
	RunDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRunFailure records a failed run with its reason.
func RecordRunFailure(kind, reason string) {
	RunFailures.WithLabelValues(kind, reason).Inc()
}

// RecordGBPRequest records an outbound Business Profile API call.
func RecordGBPRequest(operation, status string, duration time.Duration) {
	GBPRequestsTotal.WithLabelValues(operation, status).Inc()
	GBPRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAPIRequest records an inbound API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}
