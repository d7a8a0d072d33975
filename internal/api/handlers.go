// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/attendguard/internal/cache"
	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/risk"
)

// Version is reported by the health endpoint.
var Version = "dev"

// CheckInEvaluator decides whether a check-in is accepted.
type CheckInEvaluator interface {
	EvaluateCheckIn(ctx context.Context, event *detection.CheckInEvent, policy *detection.GeofencePolicy) (*detection.Decision, error)
}

// SessionWindows manages per-session device windows.
type SessionWindows interface {
	OpenSession(sessionID string, startsAt, expiresAt time.Time) error
	CloseSession(sessionID string) bool
	ActiveSessions() int
}

// ViolationReader answers the administrative queries over stored violations.
type ViolationReader interface {
	GetViolation(ctx context.Context, id string) (*detection.Violation, error)
	ListViolations(ctx context.Context, filter detection.ViolationFilter) ([]detection.Violation, error)
	CountViolations(ctx context.Context, filter detection.ViolationFilter) (int, error)
	ViolationStats(ctx context.Context, filter detection.ViolationFilter) (*detection.ViolationStats, error)
	ReviewHistory(ctx context.Context, id string) ([]detection.ReviewRecord, error)
}

// ReviewTransitioner applies review status changes.
type ReviewTransitioner interface {
	Transition(ctx context.Context, violationID string, to detection.ViolationStatus, reviewedBy string, notes *string) (*detection.Violation, error)
}

// ModelStatus reports the risk model lifecycle.
type ModelStatus interface {
	State() risk.ModelState
	ModelEnabled() bool
}

// CheckInSubmitter enqueues check-ins for asynchronous evaluation.
type CheckInSubmitter interface {
	SubmitCheckIn(ctx context.Context, event *detection.CheckInEvent, policy *detection.GeofencePolicy) (string, error)
}

// TravelConfigurer reads and updates impossible-travel thresholds at runtime.
type TravelConfigurer interface {
	Config() detection.ImpossibleTravelConfig
	Configure(config json.RawMessage) error
}

// DatabasePinger checks storage connectivity.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the handlers call into. Model and
// Database are optional; the health endpoint reports them as unavailable
// when nil. Without a Submitter the asynchronous intake endpoint answers 503,
// as do the travel settings endpoints without Travel.
type Dependencies struct {
	Evaluator  CheckInEvaluator
	Sessions   SessionWindows
	Violations ViolationReader
	Reviews    ReviewTransitioner
	Submitter  CheckInSubmitter
	Travel     TravelConfigurer
	Model      ModelStatus
	Database   DatabasePinger

	// StatsCache holds violation stats responses. nil disables caching.
	StatsCache *cache.Cache
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers_checkin.go: check-in evaluation and asynchronous intake
//   - handlers_sessions.go: session window open/close
//   - handlers_violations.go: violation queries and review transitions
//   - handlers_detection.go: runtime detection thresholds
//   - handlers_health.go: health and readiness probes
type Handler struct {
	evaluator  CheckInEvaluator
	sessions   SessionWindows
	violations ViolationReader
	reviews    ReviewTransitioner
	submitter  CheckInSubmitter
	travel     TravelConfigurer
	model      ModelStatus
	db         DatabasePinger
	statsCache *cache.Cache
	startTime  time.Time
}

// NewHandler creates a new API handler.
//
// Example:
//
//	handler := api.NewHandler(api.Dependencies{
//	    Evaluator:  engine,
//	    Sessions:   engine.Tracker(),
//	    Violations: store,
//	    Reviews:    detection.NewReviewWorkflow(store),
//	    Model:      scorer,
//	    Database:   db,
//	})
//	router := api.NewRouter(handler, api.NewChiMiddleware(nil))
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		evaluator:  deps.Evaluator,
		sessions:   deps.Sessions,
		violations: deps.Violations,
		reviews:    deps.Reviews,
		submitter:  deps.Submitter,
		travel:     deps.Travel,
		model:      deps.Model,
		db:         deps.Database,
		statsCache: deps.StatsCache,
		startTime:  time.Now(),
	}
}

// invalidateStats drops cached stats after a write that changes them.
func (h *Handler) invalidateStats() {
	if h.statsCache != nil {
		h.statsCache.Clear()
	}
}
