// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/geo"
)

// Error codes returned in the response envelope.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInternal          = "INTERNAL_ERROR"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
)

// ErrSessionNotFound indicates no window is tracked for the requested session.
var ErrSessionNotFound = errors.New("session window not found")

// classifyError maps a domain error to an HTTP status and error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, geo.ErrInvalidCoordinate),
		errors.Is(err, geo.ErrInvalidInterval),
		errors.Is(err, detection.ErrInvalidEvent),
		errors.Is(err, detection.ErrInvalidPolicy),
		errors.Is(err, detection.ErrInvalidWindow),
		errors.Is(err, detection.ErrReviewerRequired),
		errors.Is(err, detection.ErrUnknownStatus):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, detection.ErrViolationNotFound),
		errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, detection.ErrInvalidTransition):
		return http.StatusConflict, CodeInvalidTransition
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// respondDomainError writes err using classifyError. Internal failures are
// logged and answered with a generic message.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	if status == http.StatusInternalServerError {
		respondError(w, status, code, "Internal server error", err)
		return
	}
	respondError(w, status, code, err.Error(), nil)
}
