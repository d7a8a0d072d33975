// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"context"
	"time"

	"github.com/tomtom215/attendguard/internal/geo"
)

// ViolationType identifies the primary cause of a flagged check-in.
type ViolationType string

const (
	// ViolationOutsideGeofence flags a check-in outside the session zone.
	ViolationOutsideGeofence ViolationType = "outside_geofence"

	// ViolationDuplicateDevice flags a device already used by another identifier in the session.
	ViolationDuplicateDevice ViolationType = "duplicate_device"

	// ViolationDuplicatePRN flags an identifier already seen on another device in the session.
	ViolationDuplicatePRN ViolationType = "duplicate_prn"

	// ViolationGPSSpoofing flags a high risk score even though location checks passed.
	ViolationGPSSpoofing ViolationType = "gps_spoofing_suspected"

	// ViolationImpossibleTravel flags implausible movement since the previous check-in.
	ViolationImpossibleTravel ViolationType = "impossible_travel"

	// ViolationLowGPSAccuracy flags an accuracy circle wider than the zone.
	ViolationLowGPSAccuracy ViolationType = "low_gps_accuracy"

	// ViolationMultiplePRNs flags one device carrying more identifiers than allowed.
	ViolationMultiplePRNs ViolationType = "multiple_prns_same_device"

	// ViolationMLHighRisk is the catch-all for a high composite score.
	ViolationMLHighRisk ViolationType = "ml_high_risk"
)

// DefaultPrecedence orders violation types from highest to lowest severity.
var DefaultPrecedence = []ViolationType{
	ViolationMultiplePRNs,
	ViolationImpossibleTravel,
	ViolationDuplicateDevice,
	ViolationDuplicatePRN,
	ViolationGPSSpoofing,
	ViolationOutsideGeofence,
	ViolationLowGPSAccuracy,
	ViolationMLHighRisk,
}

// Valid reports whether t is a known violation type.
func (t ViolationType) Valid() bool {
	for _, known := range DefaultPrecedence {
		if t == known {
			return true
		}
	}
	return false
}

// ViolationStatus is the review state of a violation.
type ViolationStatus string

const (
	StatusFlagged   ViolationStatus = "flagged"
	StatusReviewed  ViolationStatus = "reviewed"
	StatusCleared   ViolationStatus = "cleared"
	StatusConfirmed ViolationStatus = "confirmed"
)

// Valid reports whether s is a known status.
func (s ViolationStatus) Valid() bool {
	switch s {
	case StatusFlagged, StatusReviewed, StatusCleared, StatusConfirmed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no review transition may leave s.
func (s ViolationStatus) Terminal() bool {
	return s == StatusCleared || s == StatusConfirmed
}

// CheckInEvent is one check-in attempt handed over by the session collaborator.
type CheckInEvent struct {
	SessionID          string    `json:"session_id"`
	AttendanceRecordID string    `json:"attendance_record_id,omitempty"`
	StudentID          string    `json:"student_id"`
	StudentIdentifier  string    `json:"student_identifier"` // roll number / PRN
	Timestamp          time.Time `json:"timestamp"`
	GPSLat             float64   `json:"gps_lat"`
	GPSLng             float64   `json:"gps_lng"`
	GPSAccuracyMeters  float64   `json:"gps_accuracy_meters"`
	IPAddress          string    `json:"ip_address,omitempty"`
	UserAgent          string    `json:"user_agent,omitempty"`
	DeviceFingerprint  string    `json:"device_fingerprint,omitempty"`
}

// Point returns the reported GPS position.
func (e *CheckInEvent) Point() geo.Point {
	return geo.Point{Lat: e.GPSLat, Lng: e.GPSLng}
}

// GeofencePolicy is the circular zone and optional open interval of a session.
type GeofencePolicy struct {
	SessionID    string     `json:"session_id"`
	Center       geo.Point  `json:"center"`
	RadiusMeters float64    `json:"radius_meters"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Violation is the persisted audit record of a flagged check-in.
type Violation struct {
	ID                 string  `json:"id"`
	SessionID          string  `json:"session_id"`
	AttendanceRecordID *string `json:"attendance_record_id,omitempty"`
	StudentID          string  `json:"student_id"`
	StudentIdentifier  string  `json:"student_identifier"`
	IPAddress          string  `json:"ip_address,omitempty"`
	UserAgent          string  `json:"user_agent,omitempty"`
	DeviceFingerprint  string  `json:"device_fingerprint,omitempty"`

	GPSLat            float64   `json:"gps_lat"`
	GPSLng            float64   `json:"gps_lng"`
	GPSAccuracyMeters float64   `json:"gps_accuracy_meters"`
	Timestamp         time.Time `json:"timestamp"`

	ViolationType        ViolationType   `json:"violation_type"`
	Signals              []ViolationType `json:"signals"`
	RiskScore            float64         `json:"risk_score"`
	ScoreSource          string          `json:"score_source"`
	Details              string          `json:"details"`
	DistanceFromGeofence *float64        `json:"distance_from_geofence,omitempty"`
	MLProbability        *float64        `json:"ml_probability,omitempty"`

	Status      ViolationStatus `json:"status"`
	ReviewedBy  string          `json:"reviewed_by,omitempty"`
	ReviewNotes string          `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Decision is the verdict returned for a check-in.
type Decision struct {
	Accept    bool       `json:"accept"`
	Violation *Violation `json:"violation,omitempty"`

	// RiskScore is the composite score, reported for accepted check-ins too.
	RiskScore   float64         `json:"risk_score"`
	ScoreSource string          `json:"score_source"`
	Signals     []ViolationType `json:"signals,omitempty"`
}

// ReviewRecord is one entry of a violation's review audit trail.
type ReviewRecord struct {
	ID          string          `json:"id"`
	ViolationID string          `json:"violation_id"`
	FromStatus  ViolationStatus `json:"from_status"`
	ToStatus    ViolationStatus `json:"to_status"`
	ReviewedBy  string          `json:"reviewed_by"`
	ReviewNotes string          `json:"review_notes,omitempty"`
	ReviewedAt  time.Time       `json:"reviewed_at"`
}

// ViolationFilter defines filtering options for violation queries.
type ViolationFilter struct {
	SessionID      string            `json:"session_id,omitempty"`
	StudentID      string            `json:"student_id,omitempty"`
	Types          []ViolationType   `json:"types,omitempty"`
	Statuses       []ViolationStatus `json:"statuses,omitempty"`
	MinRiskScore   *float64          `json:"min_risk_score,omitempty"`
	StartDate      *time.Time        `json:"start_date,omitempty"`
	EndDate        *time.Time        `json:"end_date,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	Offset         int               `json:"offset,omitempty"`
	OrderBy        string            `json:"order_by,omitempty"`        // created_at, risk_score
	OrderDirection string            `json:"order_direction,omitempty"` // asc, desc
}

// ViolationStats summarizes violations matching a filter.
type ViolationStats struct {
	Total        int                     `json:"total"`
	AvgRiskScore float64                 `json:"avg_risk_score"`
	ByType       map[ViolationType]int   `json:"by_type"`
	ByStatus     map[ViolationStatus]int `json:"by_status"`
}

// ViolationWriter persists newly created violations.
type ViolationWriter interface {
	SaveViolation(ctx context.Context, v *Violation) error
}

// ViolationStore is the full persistence contract for violations.
type ViolationStore interface {
	ViolationWriter

	// GetViolation returns ErrViolationNotFound when id does not exist.
	GetViolation(ctx context.Context, id string) (*Violation, error)

	ListViolations(ctx context.Context, filter ViolationFilter) ([]Violation, error)
	CountViolations(ctx context.Context, filter ViolationFilter) (int, error)
	ViolationStats(ctx context.Context, filter ViolationFilter) (*ViolationStats, error)

	// TransitionViolation atomically moves id from one status to another and
	// appends an audit record. A nil notes pointer keeps the previous notes.
	TransitionViolation(ctx context.Context, id string, from, to ViolationStatus, reviewedBy string, notes *string, at time.Time) (*Violation, error)

	ReviewHistory(ctx context.Context, id string) ([]ReviewRecord, error)
}

// ViolationPublisher fans a created violation out to interested consumers.
type ViolationPublisher interface {
	PublishViolation(ctx context.Context, v *Violation) error
}
