// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package eventprocessor

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/attendguard/internal/detection"
)

// Metadata keys set on bus messages.
const (
	MetadataCorrelationID = "correlation_id"
	MetadataSessionID     = "session_id"
	MetadataViolationType = "violation_type"
	MetadataEventType     = "event_type"
)

// Event type values carried in MetadataEventType.
const (
	EventTypeCheckInSubmitted = "checkin.submitted"
	EventTypeViolationCreated = "violation.created"
)

var (
	// ErrMissingEvent means a check-in message carries no event.
	ErrMissingEvent = errors.New("check-in message has no event")

	// ErrMissingPolicy means a check-in message carries no geofence policy.
	ErrMissingPolicy = errors.New("check-in message has no policy")

	// ErrMissingViolation means a violation message carries no violation.
	ErrMissingViolation = errors.New("violation message has no violation")
)

// CheckInMessage is the payload of the check-in topic.
type CheckInMessage struct {
	Event       *detection.CheckInEvent   `json:"event"`
	Policy      *detection.GeofencePolicy `json:"policy"`
	SubmittedAt time.Time                 `json:"submitted_at"`
}

// Validate checks the message carries both halves of an evaluation.
func (m *CheckInMessage) Validate() error {
	if m.Event == nil {
		return ErrMissingEvent
	}
	if m.Policy == nil {
		return ErrMissingPolicy
	}
	return nil
}

// ViolationEvent is the payload of the violation topic.
type ViolationEvent struct {
	EventID    string               `json:"event_id"`
	OccurredAt time.Time            `json:"occurred_at"`
	Violation  *detection.Violation `json:"violation"`
}

// Validate checks the event carries a violation.
func (e *ViolationEvent) Validate() error {
	if e.Violation == nil {
		return ErrMissingViolation
	}
	return nil
}

// validatable is implemented by every bus payload.
type validatable interface {
	Validate() error
}

// marshalPayload validates and encodes a bus payload.
func marshalPayload(v validatable) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("validate payload: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// DecodeCheckIn decodes and validates a check-in payload.
func DecodeCheckIn(data []byte) (*CheckInMessage, error) {
	var m CheckInMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal check-in: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeViolation decodes and validates a violation payload.
func DecodeViolation(data []byte) (*ViolationEvent, error) {
	var e ViolationEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal violation event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
