// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/attendguard/internal/logging"
	"github.com/tomtom215/attendguard/internal/metrics"
)

// allowedTransitions lists the statuses reachable from each status.
var allowedTransitions = map[ViolationStatus][]ViolationStatus{
	StatusFlagged:  {StatusReviewed, StatusCleared, StatusConfirmed},
	StatusReviewed: {StatusCleared, StatusConfirmed},
}

// CanTransition reports whether a violation may move from one status to another.
func CanTransition(from, to ViolationStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not allowed.
func ValidateTransition(from, to ViolationStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ReviewStore is the persistence the review workflow needs.
type ReviewStore interface {
	GetViolation(ctx context.Context, id string) (*Violation, error)
	TransitionViolation(ctx context.Context, id string, from, to ViolationStatus, reviewedBy string, notes *string, at time.Time) (*Violation, error)
}

// ReviewWorkflow governs human review of violations after creation.
type ReviewWorkflow struct {
	store ReviewStore
	now   func() time.Time
}

// NewReviewWorkflow creates a workflow over store.
func NewReviewWorkflow(store ReviewStore) *ReviewWorkflow {
	return &ReviewWorkflow{store: store, now: time.Now}
}

// Transition moves a violation to a new status on behalf of reviewedBy.
// A nil notes pointer keeps any existing review notes.
func (w *ReviewWorkflow) Transition(ctx context.Context, violationID string, to ViolationStatus, reviewedBy string, notes *string) (*Violation, error) {
	reviewedBy = strings.TrimSpace(reviewedBy)
	if reviewedBy == "" {
		return nil, ErrReviewerRequired
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}

	current, err := w.store.GetViolation(ctx, violationID)
	if err != nil {
		return nil, err
	}

	from := current.Status
	if err := ValidateTransition(from, to); err != nil {
		metrics.RecordReviewTransition(string(from), string(to), err)
		return nil, err
	}

	updated, err := w.store.TransitionViolation(ctx, violationID, from, to, reviewedBy, notes, w.now().UTC())
	metrics.RecordReviewTransition(string(from), string(to), err)
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("violation_id", violationID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("reviewed_by", reviewedBy).
		Msg("Violation review transition")

	return updated, nil
}
