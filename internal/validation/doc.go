// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with custom validators and user-friendly error
// messages. It integrates with the API error format for consistent responses.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Field names reported by their json tag
//   - Custom violation_type and violation_status validators
//   - APIError conversion with the VALIDATION_ERROR code
//
// # Quick Start
//
//	type ReviewRequest struct {
//	    Status     string `json:"status" validate:"required,violation_status"`
//	    ReviewedBy string `json:"reviewed_by" validate:"required,max=200"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req ReviewRequest
//	    // decode body
//
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        apiErr := verr.ToAPIError()
//	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, verr)
//	        return
//	    }
//	}
//
// # Custom Validators
//
//   - violation_type: one of the detection violation types, e.g. outside_geofence
//   - violation_status: flagged, reviewed, cleared or confirmed
//
// Built-in validators used by the API include latitude, longitude, ip, uuid,
// min/max, gte/lte and oneof.
//
// # Error Messages
//
//	required          -> "session_id is required"
//	latitude          -> "gps_lat must be a valid latitude (-90 to 90)"
//	gt=0              -> "radius_meters must be greater than 0"
//	violation_status  -> "status must be one of flagged, reviewed, cleared, confirmed"
//
// # Thread Safety
//
// GetValidator and ValidateStruct are safe for concurrent use.
package validation
