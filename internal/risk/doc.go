// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

// Package risk converts a check-in into a 0-100 risk score.
//
// Two paths produce a score:
//
//	Input -> ExtractFeatures -> RiskModel.Predict  (model-backed, probability in [0,1])
//	                         \-> HeuristicScore   (deterministic floor, never fails)
//
// The Scorer owns the model lifecycle. The model is loaded lazily on first
// use; concurrent callers during the load share one attempt through a
// singleflight group, and the outcome (ready or failed) is cached. Every
// prediction runs under a timeout and a circuit breaker. Any load failure,
// timeout, breaker rejection or malformed output is logged, counted and
// replaced by the heuristic score, so Score always returns a value.
//
// The only concrete RiskModel shipped is ProcessModel, which runs an external
// executable with the 11-field feature vector as its final argument and
// parses a single floating-point probability from its standard output.
package risk
