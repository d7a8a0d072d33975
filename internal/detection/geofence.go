// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"fmt"
	"math"

	"github.com/tomtom215/attendguard/internal/geo"
)

// GeofenceResult is the outcome of a zone check.
type GeofenceResult struct {
	Inside         bool    `json:"inside_geofence"`
	DistanceMeters float64 `json:"distance_meters"`

	// LowAccuracy is set when the accuracy circle is wider than the zone,
	// independently of Inside.
	LowAccuracy bool `json:"low_accuracy"`
}

// ValidateGeofence decides whether the event lies inside the policy zone.
// The boundary is inclusive: a point exactly radius meters away is inside.
func ValidateGeofence(event *CheckInEvent, policy *GeofencePolicy) (GeofenceResult, error) {
	point := event.Point()
	if err := geo.ValidateCoordinate(point); err != nil {
		return GeofenceResult{}, fmt.Errorf("check-in position: %w", err)
	}
	if err := geo.ValidateCoordinate(policy.Center); err != nil {
		return GeofenceResult{}, fmt.Errorf("geofence center: %w", err)
	}

	distance := geo.HaversineDistanceMeters(policy.Center, point)
	return GeofenceResult{
		Inside:         distance <= policy.RadiusMeters,
		DistanceMeters: distance,
		LowAccuracy:    event.GPSAccuracyMeters > policy.RadiusMeters,
	}, nil
}

// ValidateEvent checks the structural fields of a check-in. Coordinate
// problems are reported as geo.ErrInvalidCoordinate.
func ValidateEvent(event *CheckInEvent) error {
	if event == nil {
		return fmt.Errorf("%w: event is required", ErrInvalidEvent)
	}
	switch {
	case event.SessionID == "":
		return fmt.Errorf("%w: session_id is required", ErrInvalidEvent)
	case event.StudentID == "":
		return fmt.Errorf("%w: student_id is required", ErrInvalidEvent)
	case event.StudentIdentifier == "":
		return fmt.Errorf("%w: student_identifier is required", ErrInvalidEvent)
	case event.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}
	if err := geo.ValidateCoordinate(event.Point()); err != nil {
		return err
	}
	if math.IsNaN(event.GPSAccuracyMeters) || math.IsInf(event.GPSAccuracyMeters, 0) || event.GPSAccuracyMeters < 0 {
		return fmt.Errorf("%w: gps accuracy %v", geo.ErrInvalidCoordinate, event.GPSAccuracyMeters)
	}
	return nil
}

// ValidatePolicy checks a geofence policy, optionally against the session
// the event claims to belong to.
func ValidatePolicy(policy *GeofencePolicy, sessionID string) error {
	if policy == nil {
		return fmt.Errorf("%w: policy is required", ErrInvalidPolicy)
	}
	if policy.SessionID != "" && sessionID != "" && policy.SessionID != sessionID {
		return fmt.Errorf("%w: policy is for session %q, event is for %q", ErrInvalidPolicy, policy.SessionID, sessionID)
	}
	if math.IsNaN(policy.RadiusMeters) || math.IsInf(policy.RadiusMeters, 0) || policy.RadiusMeters <= 0 {
		return fmt.Errorf("%w: radius_meters must be positive, got %v", ErrInvalidPolicy, policy.RadiusMeters)
	}
	if err := geo.ValidateCoordinate(policy.Center); err != nil {
		return fmt.Errorf("geofence center: %w", err)
	}
	if policy.StartsAt != nil && policy.ExpiresAt != nil && !policy.ExpiresAt.After(*policy.StartsAt) {
		return fmt.Errorf("%w: %w", ErrInvalidPolicy, ErrInvalidWindow)
	}
	return nil
}
