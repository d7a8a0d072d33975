// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the check-in risk pipeline:
// - check-in evaluation throughput and latency
// - violations by type and review transitions
// - risk model lifecycle and prediction outcomes
// - circuit breaker state
// - database, API and event bus health

var (
	// Check-in Evaluation Metrics
	CheckInsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_checkins_evaluated_total",
			Help: "Total number of check-ins evaluated",
		},
		[]string{"decision"}, // "accepted", "flagged"
	)

	CheckInEvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendguard_checkin_evaluation_duration_seconds",
			Help:    "Duration of a single check-in evaluation in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	CheckInsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_checkins_rejected_total",
			Help: "Total number of check-ins rejected as structurally invalid",
		},
		[]string{"reason"}, // "invalid_coordinate", "invalid_policy"
	)

	RiskScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendguard_risk_score",
			Help:    "Distribution of composite risk scores (0-100)",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// Violation Metrics
	ViolationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_violations_created_total",
			Help: "Total number of violations created by primary type",
		},
		[]string{"violation_type"},
	)

	RuleSignalsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_rule_signals_total",
			Help: "Total number of rule signals fired, including non-primary causes",
		},
		[]string{"signal"},
	)

	ViolationPersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendguard_violation_persist_errors_total",
			Help: "Total number of violations that could not be persisted",
		},
	)

	ReviewTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_review_transitions_total",
			Help: "Total number of violation review transitions",
		},
		[]string{"from_status", "to_status", "result"}, // result: "success", "rejected"
	)

	// Device Window Metrics
	ActiveSessionWindows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendguard_session_windows_active",
			Help: "Current number of in-memory session device windows",
		},
	)

	SessionWindowsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_session_windows_evicted_total",
			Help: "Total number of session device windows discarded",
		},
		[]string{"reason"}, // "closed", "expired"
	)

	// Risk Model Metrics
	RiskModelState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendguard_risk_model_state",
			Help: "Risk model state (0=not_loaded, 1=loading, 2=ready, 3=failed)",
		},
	)

	RiskModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_risk_model_loads_total",
			Help: "Total number of risk model load attempts",
		},
		[]string{"result"}, // "success", "failure"
	)

	RiskScoringOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_risk_scoring_total",
			Help: "Total number of risk scorings by source and fallback reason",
		},
		[]string{"source", "reason"}, // source: "model", "heuristic"
	)

	RiskModelPredictDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendguard_risk_model_predict_duration_seconds",
			Help:    "Duration of risk model predictions in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
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
		[]string{"operation", "table", "error_type"},
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

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_events_published_total",
			Help: "Total number of events published to the in-process bus",
		},
		[]string{"topic", "result"}, // result: "success", "failure"
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendguard_events_consumed_total",
			Help: "Total number of events consumed from the in-process bus",
		},
		[]string{"topic", "result"}, // result: "processed", "invalid", "failed"
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordCheckInEvaluation records the outcome and latency of one evaluation.
func RecordCheckInEvaluation(flagged bool, score float64, duration time.Duration) {
	decision := "accepted"
	if flagged {
		decision = "flagged"
	}
	CheckInsEvaluated.WithLabelValues(decision).Inc()
	CheckInEvaluationDuration.Observe(duration.Seconds())
	RiskScore.Observe(score)
}

// RecordCheckInRejected records a structurally invalid check-in.
func RecordCheckInRejected(reason string) {
	CheckInsRejected.WithLabelValues(reason).Inc()
}

// RecordViolation records a created violation and every rule signal that fired for it.
func RecordViolation(violationType string, signals []string) {
	ViolationsCreated.WithLabelValues(violationType).Inc()
	for _, s := range signals {
		RuleSignalsFired.WithLabelValues(s).Inc()
	}
}

// RecordReviewTransition records an attempted review status change.
func RecordReviewTransition(from, to string, err error) {
	result := "success"
	if err != nil {
		result = "rejected"
	}
	ReviewTransitions.WithLabelValues(from, to, result).Inc()
}

// RecordRiskModelLoad records the result of a model load attempt.
func RecordRiskModelLoad(err error) {
	if err != nil {
		RiskModelLoads.WithLabelValues("failure").Inc()
		return
	}
	RiskModelLoads.WithLabelValues("success").Inc()
}

// RecordRiskScoring records which path produced a score and, for the
// heuristic, why the model was not used.
func RecordRiskScoring(source, reason string) {
	RiskScoringOutcomes.WithLabelValues(source, reason).Inc()
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEventPublished records a publish attempt on the event bus.
func RecordEventPublished(topic string, err error) {
	if err != nil {
		EventsPublished.WithLabelValues(topic, "failure").Inc()
		return
	}
	EventsPublished.WithLabelValues(topic, "success").Inc()
}

// RecordEventConsumed records the handling result of a consumed event.
func RecordEventConsumed(topic, result string) {
	EventsConsumed.WithLabelValues(topic, result).Inc()
}
