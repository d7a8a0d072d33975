// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and
exposed by the API router at /metrics in Prometheus text format:

	curl http://localhost:8470/metrics

# Available Metrics

Check-in Metrics:
  - attendguard_checkins_evaluated_total: Evaluated check-ins (counter)
    Labels: decision (accepted, flagged)
  - attendguard_checkin_evaluation_duration_seconds: Evaluation latency (histogram)
  - attendguard_checkins_rejected_total: Structurally invalid check-ins (counter)
    Labels: reason
  - attendguard_risk_score: Composite risk score distribution (histogram)

Violation Metrics:
  - attendguard_violations_created_total: Violations by primary type (counter)
  - attendguard_rule_signals_total: Every rule signal that fired (counter)
  - attendguard_violation_persist_errors_total: Failed violation writes (counter)
  - attendguard_review_transitions_total: Review status changes (counter)
    Labels: from_status, to_status, result

Risk Model Metrics:
  - attendguard_risk_model_state: 0=not_loaded, 1=loading, 2=ready, 3=failed (gauge)
  - attendguard_risk_model_loads_total: Load attempts (counter)
  - attendguard_risk_scoring_total: Scores by source and fallback reason (counter)
  - attendguard_risk_model_predict_duration_seconds: Prediction latency (histogram)

Circuit Breaker Metrics:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - circuit_breaker_requests_total: Requests by result (counter)
  - circuit_breaker_consecutive_failures: Current failure streak (gauge)
  - circuit_breaker_state_transitions_total: State changes (counter)

Session Window, Database, API and Event Metrics:
  - attendguard_session_windows_active, attendguard_session_windows_evicted_total
  - duckdb_query_duration_seconds, duckdb_query_errors_total
  - api_requests_total, api_request_duration_seconds, api_active_requests
  - attendguard_events_published_total, attendguard_events_consumed_total

# Usage

Helper functions wrap the common label combinations:

	metrics.RecordCheckInEvaluation(decision.Violation != nil, score, time.Since(start))
	metrics.RecordDBQuery("INSERT", "violations", elapsed, err)

# Thread Safety

All collectors are safe for concurrent use.
*/
package metrics
