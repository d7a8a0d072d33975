// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/attendguard/internal/geo"
	"github.com/tomtom215/attendguard/internal/logging"
	"github.com/tomtom215/attendguard/internal/metrics"
	"github.com/tomtom215/attendguard/internal/risk"
)

// RiskScorer scores a check-in and never fails.
type RiskScorer interface {
	Score(ctx context.Context, in risk.Input) risk.Result
}

// Engine evaluates check-ins: zone, device, travel and risk signals are
// gathered and merged into a single decision.
type Engine struct {
	tracker    *DeviceIdentityTracker
	travel     *ImpossibleTravelDetector
	scorer     RiskScorer
	aggregator *Aggregator
	store      ViolationWriter

	mu        sync.RWMutex
	publisher ViolationPublisher
}

// NewEngine creates a new detection engine. store may be nil, in which case
// violations are returned but not persisted.
func NewEngine(
	tracker *DeviceIdentityTracker,
	travel *ImpossibleTravelDetector,
	scorer RiskScorer,
	aggregator *Aggregator,
	store ViolationWriter,
) *Engine {
	return &Engine{
		tracker:    tracker,
		travel:     travel,
		scorer:     scorer,
		aggregator: aggregator,
		store:      store,
	}
}

// SetPublisher registers where created violations are announced.
func (e *Engine) SetPublisher(publisher ViolationPublisher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publisher = publisher
}

// Tracker exposes the session window tracker for lifecycle calls.
func (e *Engine) Tracker() *DeviceIdentityTracker {
	return e.tracker
}

// Travel exposes the impossible-travel detector for runtime tuning.
func (e *Engine) Travel() *ImpossibleTravelDetector {
	return e.travel
}

// EvaluateCheckIn runs the full pipeline for one check-in. Only structurally
// invalid input is returned as an error; scoring, persistence and publishing
// failures are logged and absorbed.
func (e *Engine) EvaluateCheckIn(ctx context.Context, event *CheckInEvent, policy *GeofencePolicy) (*Decision, error) {
	start := time.Now()

	if err := ValidateEvent(event); err != nil {
		metrics.RecordCheckInRejected(rejectReason(err))
		return nil, err
	}
	if err := ValidatePolicy(policy, event.SessionID); err != nil {
		metrics.RecordCheckInRejected(rejectReason(err))
		return nil, err
	}

	log := logging.Ctx(ctx).With().
		Str("session_id", event.SessionID).
		Str("student_id", event.StudentID).
		Logger()

	// Scoring may block on the external model, so it overlaps the rule checks.
	scored := make(chan risk.Result, 1)
	go func() {
		scored <- e.scorer.Score(ctx, risk.Input{
			Timestamp:         event.Timestamp,
			Lat:               event.GPSLat,
			Lng:               event.GPSLng,
			AccuracyMeters:    event.GPSAccuracyMeters,
			IPAddress:         event.IPAddress,
			UserAgent:         event.UserAgent,
			DeviceFingerprint: event.DeviceFingerprint,
		})
	}()

	ev := &Evaluation{Event: event}

	fence, err := ValidateGeofence(event, policy)
	if err != nil {
		<-scored
		metrics.RecordCheckInRejected(rejectReason(err))
		return nil, err
	}
	ev.Geofence = fence

	ev.Device = e.tracker.Record(event, policy)

	if e.travel != nil {
		travel, err := e.travel.Check(ctx, event)
		if err != nil {
			log.Warn().Err(err).Msg("Impossible travel check failed, skipping")
		}
		ev.Travel = travel
	}

	ev.Risk = <-scored

	violation, score, signals := e.aggregator.Aggregate(ev)
	decision := &Decision{
		Accept:      violation == nil,
		Violation:   violation,
		RiskScore:   score.Composite,
		ScoreSource: string(ev.Risk.Source),
		Signals:     signals,
	}

	if violation != nil {
		e.recordViolation(ctx, violation)
	}

	metrics.RecordCheckInEvaluation(violation != nil, score.Composite, time.Since(start))
	log.Debug().
		Bool("accept", decision.Accept).
		Float64("risk_score", score.Composite).
		Str("score_source", decision.ScoreSource).
		Dur("elapsed", time.Since(start)).
		Msg("Check-in evaluated")

	return decision, nil
}

// recordViolation persists and announces a violation. Failures are absorbed.
func (e *Engine) recordViolation(ctx context.Context, v *Violation) {
	signals := make([]string, len(v.Signals))
	for i, s := range v.Signals {
		signals[i] = string(s)
	}
	metrics.RecordViolation(string(v.ViolationType), signals)

	logging.Ctx(ctx).Info().
		Str("violation_id", v.ID).
		Str("session_id", v.SessionID).
		Str("student_id", v.StudentID).
		Str("violation_type", string(v.ViolationType)).
		Strs("signals", signals).
		Float64("risk_score", v.RiskScore).
		Msg("Check-in flagged")

	if e.store != nil {
		if err := e.store.SaveViolation(ctx, v); err != nil {
			metrics.ViolationPersistErrors.Inc()
			logging.Ctx(ctx).Error().Err(err).Str("violation_id", v.ID).Msg("Failed to persist violation")
		}
	}

	e.mu.RLock()
	publisher := e.publisher
	e.mu.RUnlock()
	if publisher != nil {
		if err := publisher.PublishViolation(ctx, v); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("violation_id", v.ID).Msg("Failed to publish violation event")
		}
	}
}

// Maintain drops expired session windows and stale last-seen entries.
func (e *Engine) Maintain(ctx context.Context, now time.Time) error {
	windows := e.tracker.Sweep(now)

	pruned := 0
	if e.travel != nil {
		n, err := e.travel.Prune(ctx, now)
		if err != nil {
			return err
		}
		pruned = n
	}

	if windows > 0 || pruned > 0 {
		logging.Debug().Int("windows_removed", windows).Int("sightings_pruned", pruned).
			Msg("Detection state maintenance")
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, geo.ErrInvalidCoordinate):
		return "invalid_coordinate"
	case errors.Is(err, ErrInvalidPolicy):
		return "invalid_policy"
	default:
		return "invalid_event"
	}
}
