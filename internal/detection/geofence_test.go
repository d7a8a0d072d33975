// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/attendguard/internal/geo"
)

func TestValidateGeofence_Boundary(t *testing.T) {
	t.Parallel()

	const radius = 100.0
	tests := []struct {
		name       string
		offset     float64
		wantInside bool
	}{
		{"center", 0, true},
		{"one meter inside", radius - 1, true},
		{"one meter outside", radius + 1, false},
		{"far outside", 5000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			event := testEvent("s1", "st1", "fp1")
			p := offsetNorth(campus, tt.offset)
			event.GPSLat, event.GPSLng = p.Lat, p.Lng

			res, err := ValidateGeofence(event, testPolicy("s1", radius))
			if err != nil {
				t.Fatalf("ValidateGeofence() error = %v", err)
			}
			if res.Inside != tt.wantInside {
				t.Errorf("Inside = %v, want %v (distance %.3f)", res.Inside, tt.wantInside, res.DistanceMeters)
			}
			if math.Abs(res.DistanceMeters-tt.offset) > 0.01 {
				t.Errorf("DistanceMeters = %.3f, want %.3f", res.DistanceMeters, tt.offset)
			}
		})
	}
}

func TestValidateGeofence_CenterInsideForAnyRadius(t *testing.T) {
	t.Parallel()

	for _, radius := range []float64{0.001, 1, 50, 10000} {
		res, err := ValidateGeofence(testEvent("s1", "st1", "fp1"), testPolicy("s1", radius))
		if err != nil {
			t.Fatalf("radius %v: error = %v", radius, err)
		}
		if !res.Inside {
			t.Errorf("radius %v: center reported outside", radius)
		}
	}
}

func TestValidateGeofence_LowAccuracyIsIndependent(t *testing.T) {
	t.Parallel()

	event := testEvent("s1", "st1", "fp1")
	event.GPSAccuracyMeters = 80

	res, err := ValidateGeofence(event, testPolicy("s1", 50))
	if err != nil {
		t.Fatalf("ValidateGeofence() error = %v", err)
	}
	if !res.Inside {
		t.Error("point at the center should be inside")
	}
	if !res.LowAccuracy {
		t.Error("accuracy wider than the radius should be flagged")
	}

	event.GPSAccuracyMeters = 50
	res, _ = ValidateGeofence(event, testPolicy("s1", 50))
	if res.LowAccuracy {
		t.Error("accuracy equal to the radius should not be flagged")
	}
}

func TestValidateGeofence_InvalidCoordinates(t *testing.T) {
	t.Parallel()

	event := testEvent("s1", "st1", "fp1")
	event.GPSLat = 91
	if _, err := ValidateGeofence(event, testPolicy("s1", 50)); !errors.Is(err, geo.ErrInvalidCoordinate) {
		t.Errorf("bad event latitude: error = %v, want ErrInvalidCoordinate", err)
	}

	policy := testPolicy("s1", 50)
	policy.Center.Lng = -181
	if _, err := ValidateGeofence(testEvent("s1", "st1", "fp1"), policy); !errors.Is(err, geo.ErrInvalidCoordinate) {
		t.Errorf("bad center: error = %v, want ErrInvalidCoordinate", err)
	}
}

func TestValidateEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(e *CheckInEvent)
		wantErr error
	}{
		{"valid", func(*CheckInEvent) {}, nil},
		{"missing session", func(e *CheckInEvent) { e.SessionID = "" }, ErrInvalidEvent},
		{"missing student", func(e *CheckInEvent) { e.StudentID = "" }, ErrInvalidEvent},
		{"missing identifier", func(e *CheckInEvent) { e.StudentIdentifier = "" }, ErrInvalidEvent},
		{"missing timestamp", func(e *CheckInEvent) { e.Timestamp = time.Time{} }, ErrInvalidEvent},
		{"latitude out of range", func(e *CheckInEvent) { e.GPSLat = -90.5 }, geo.ErrInvalidCoordinate},
		{"longitude NaN", func(e *CheckInEvent) { e.GPSLng = math.NaN() }, geo.ErrInvalidCoordinate},
		{"negative accuracy", func(e *CheckInEvent) { e.GPSAccuracyMeters = -1 }, geo.ErrInvalidCoordinate},
		{"empty fingerprint is fine", func(e *CheckInEvent) { e.DeviceFingerprint = "" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			event := testEvent("s1", "st1", "fp1")
			tt.mutate(event)
			err := ValidateEvent(event)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEvent() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEvent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateEvent(nil); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("ValidateEvent(nil) error = %v, want ErrInvalidEvent", err)
	}
}

func TestValidatePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  *GeofencePolicy
		session string
		wantErr error
	}{
		{"valid", testPolicy("s1", 50), "s1", nil},
		{"policy without session id", testPolicy("", 50), "s1", nil},
		{"nil policy", nil, "s1", ErrInvalidPolicy},
		{"session mismatch", testPolicy("s2", 50), "s1", ErrInvalidPolicy},
		{"zero radius", testPolicy("s1", 0), "s1", ErrInvalidPolicy},
		{"negative radius", testPolicy("s1", -10), "s1", ErrInvalidPolicy},
		{
			name: "window ends before start",
			policy: &GeofencePolicy{SessionID: "s1", Center: campus, RadiusMeters: 50,
				StartsAt: ptrTime(testStart), ExpiresAt: ptrTime(testStart.Add(-time.Minute))},
			session: "s1",
			wantErr: ErrInvalidWindow,
		},
		{
			name:    "bad center",
			policy:  &GeofencePolicy{SessionID: "s1", Center: geo.Point{Lat: 100}, RadiusMeters: 50},
			session: "s1",
			wantErr: geo.ErrInvalidCoordinate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePolicy(tt.policy, tt.session)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePolicy() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePolicy() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
