// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tomtom215/attendguard/internal/geo"
	"github.com/tomtom215/attendguard/internal/risk"
)

var (
	campus    = geo.Point{Lat: 28.6139, Lng: 77.2090}
	testStart = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
)

// offsetNorth returns the point meters due north of p.
func offsetNorth(p geo.Point, meters float64) geo.Point {
	return geo.Point{
		Lat: p.Lat + (meters/geo.EarthRadiusMeters)*180/math.Pi,
		Lng: p.Lng,
	}
}

func testPolicy(sessionID string, radius float64) *GeofencePolicy {
	return &GeofencePolicy{SessionID: sessionID, Center: campus, RadiusMeters: radius}
}

// testEvent builds a clean check-in at the campus center.
func testEvent(sessionID, studentID, fingerprint string) *CheckInEvent {
	return &CheckInEvent{
		SessionID:         sessionID,
		StudentID:         studentID,
		StudentIdentifier: "PRN-" + studentID,
		Timestamp:         testStart,
		GPSLat:            campus.Lat,
		GPSLng:            campus.Lng,
		GPSAccuracyMeters: 10,
		IPAddress:         "10.1.2.3",
		UserAgent:         "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/124.0 Mobile Safari/537.36",
		DeviceFingerprint: fingerprint,
	}
}

// fakeScorer returns a fixed result and counts calls.
type fakeScorer struct {
	mu     sync.Mutex
	result risk.Result
	calls  int
}

func newHeuristicScorer(score float64) *fakeScorer {
	return &fakeScorer{result: risk.Result{
		Score:          score,
		Source:         risk.SourceHeuristic,
		HeuristicScore: score,
		FallbackReason: risk.ReasonModelDisabled,
	}}
}

func newModelScorer(p float64) *fakeScorer {
	return &fakeScorer{result: risk.Result{
		Score:       math.Round(p*10000) / 100,
		Probability: &p,
		Source:      risk.SourceModel,
	}}
}

func (s *fakeScorer) Score(_ context.Context, _ risk.Input) risk.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result
}

// memoryViolationStore is an in-memory ViolationStore for workflow and engine tests.
type memoryViolationStore struct {
	mu         sync.Mutex
	violations map[string]*Violation
	reviews    map[string][]ReviewRecord
	saveErr    error
}

func newMemoryViolationStore() *memoryViolationStore {
	return &memoryViolationStore{
		violations: make(map[string]*Violation),
		reviews:    make(map[string][]ReviewRecord),
	}
}

func (s *memoryViolationStore) SaveViolation(_ context.Context, v *Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *v
	s.violations[v.ID] = &cp
	return nil
}

func (s *memoryViolationStore) GetViolation(_ context.Context, id string) (*Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.violations[id]
	if !ok {
		return nil, ErrViolationNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *memoryViolationStore) TransitionViolation(_ context.Context, id string, from, to ViolationStatus, reviewedBy string, notes *string, at time.Time) (*Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.violations[id]
	if !ok {
		return nil, ErrViolationNotFound
	}
	if v.Status != from {
		return nil, ErrInvalidTransition
	}
	v.Status = to
	v.ReviewedBy = reviewedBy
	if notes != nil {
		v.ReviewNotes = *notes
	}
	v.ReviewedAt = &at
	v.UpdatedAt = at

	record := ReviewRecord{ViolationID: id, FromStatus: from, ToStatus: to, ReviewedBy: reviewedBy, ReviewedAt: at}
	if notes != nil {
		record.ReviewNotes = *notes
	}
	s.reviews[id] = append(s.reviews[id], record)

	cp := *v
	return &cp, nil
}

func (s *memoryViolationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.violations)
}

// recordingPublisher captures published violations.
type recordingPublisher struct {
	mu        sync.Mutex
	published []*Violation
	err       error
}

func (p *recordingPublisher) PublishViolation(_ context.Context, v *Violation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, v)
	return p.err
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrString(s string) *string { return &s }
