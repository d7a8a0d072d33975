// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

/*
Package models defines the HTTP response shapes shared by the AttendGuard API.

Domain types (check-in events, violations, review records) live in the
detection package; this package only carries the envelope every endpoint
answers with:

  - APIResponse: status, data, metadata and an optional error
  - APIError: machine-readable code plus message and details
  - PaginationInfo: offset pagination for violation listings
  - HealthStatus: database and risk model health
*/
package models
