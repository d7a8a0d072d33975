// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import "errors"

var (
	// ErrInvalidEvent means a check-in is missing required identity or time fields.
	ErrInvalidEvent = errors.New("invalid check-in event")

	// ErrInvalidPolicy means a geofence policy is structurally unusable.
	ErrInvalidPolicy = errors.New("invalid geofence policy")

	// ErrInvalidWindow means a session window does not end after it starts.
	ErrInvalidWindow = errors.New("session window must end after it starts")

	// ErrViolationNotFound means no violation exists with the requested id.
	ErrViolationNotFound = errors.New("violation not found")

	// ErrInvalidTransition means the requested review status change is not allowed.
	ErrInvalidTransition = errors.New("invalid review transition")

	// ErrReviewerRequired means a review transition was attempted without a reviewer.
	ErrReviewerRequired = errors.New("reviewed_by is required")

	// ErrUnknownStatus means a status outside the review vocabulary was requested.
	ErrUnknownStatus = errors.New("unknown violation status")
)
