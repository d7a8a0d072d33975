// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

// Package main is the entry point for the AttendGuard server.
//
// AttendGuard evaluates QR check-ins for proxy attendance: it validates the
// reported GPS position against the session geofence, tracks device and
// identifier reuse within a session, flags impossible travel between a
// student's consecutive check-ins and blends rule signals with a risk
// model score. Flagged check-ins are persisted as violations for review.
//
// # Startup order
//
//  1. Configuration: defaults, optional config.yaml, environment (koanf v2)
//  2. Logging: zerolog global logger
//  3. DuckDB violation store and schema
//  4. Last-seen history: in-memory or Badger
//  5. Risk scorer (external model when RISK_MODEL_ENABLED=true)
//  6. Detection engine
//  7. Event bus, violation publisher and check-in consumer (EVENTS_ENABLED)
//  8. HTTP API
//  9. Supervisor tree: janitor, event router, HTTP server
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the supervisor context. The HTTP server drains
// within HTTP_SHUTDOWN_TIMEOUT, the router within EVENTS_ROUTER_CLOSE_TIMEOUT,
// then the bus, Badger and DuckDB are closed in that order.
//
// # Example
//
//	export DUCKDB_PATH=/data/attendguard.duckdb
//	export HISTORY_BACKEND=badger
//	export HISTORY_BADGER_DIR=/data/lastseen
//	export RISK_MODEL_ENABLED=true
//	export RISK_MODEL_COMMAND=/opt/models/proxy-risk
//	./attendguard
package main
