// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

/*
Package api exposes the AttendGuard detection engine over HTTP using chi.

Endpoints (all responses use the models.APIResponse envelope except /metrics):

	POST /api/v1/checkins/evaluate            evaluate {event, policy}, returns a Decision
	POST /api/v1/checkins                     enqueue {event, policy} on the check-in topic, returns 202
	POST /api/v1/sessions/{id}/open           open or re-bound a session window
	POST /api/v1/sessions/{id}/close          discard a session window
	GET  /api/v1/detection/travel             impossible-travel thresholds in effect
	PUT  /api/v1/detection/travel             merge a partial threshold update
	GET  /api/v1/violations                   list with filters and offset pagination
	GET  /api/v1/violations/stats             counts per type and status
	GET  /api/v1/violations/{id}              single violation
	GET  /api/v1/violations/{id}/reviews      review audit trail
	POST /api/v1/violations/{id}/transition   {status, reviewed_by, review_notes?}
	GET  /api/v1/health[/live|/ready]         health and probes
	GET  /metrics                             Prometheus exposition

Error mapping:

  - invalid coordinates, events, policies, windows or request bodies: 400 VALIDATION_ERROR
  - unknown violation or session: 404 NOT_FOUND
  - review transition not allowed from the current status: 409 INVALID_TRANSITION
  - anything else: 500 INTERNAL_ERROR

Middleware order: request ID, real IP, panic recovery, CORS, Prometheus,
gzip, then per-group rate limiting (go-chi/httprate) and security headers.
*/
package api
