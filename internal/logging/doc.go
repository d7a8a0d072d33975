// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

// Package logging provides centralized zerolog-based structured logging for AttendGuard.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("session_id", id).Msg("Session window opened")
//	logging.Warn().Err(err).Msg("Risk model unavailable, using heuristic")
//
//	// Context-aware logging adds correlation_id / request_id
//	logging.Ctx(ctx).Info().Str("violation_type", string(v.ViolationType)).Msg("Check-in flagged")
//
// # Configuration
//
// The logging section of the application config maps onto Config:
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// # slog Integration
//
// Suture (through sutureslog) and Watermill log through slog. NewSlogLogger
// and NewComponentSlogLogger return *slog.Logger values that write into the
// same zerolog stream.
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
package logging
