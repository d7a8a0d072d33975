// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

/*
Package middleware provides HTTP middleware shared by the AttendGuard API.

Key Components:

  - RequestID: UUID request tracking, propagated into the logging context
  - PrometheusMetrics: request count, latency and in-flight instrumentation
    labelled by chi route pattern
  - Compression: gzip for clients that accept it

All middleware uses the func(http.Handler) http.Handler shape so it can be
mounted with chi's r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Compression)

Request IDs supplied by an upstream proxy in X-Request-ID are preserved.
*/
package middleware
