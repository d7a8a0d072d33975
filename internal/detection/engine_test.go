// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/attendguard/internal/geo"
	"github.com/tomtom215/attendguard/internal/metrics"
)

type engineFixture struct {
	engine    *Engine
	scorer    *fakeScorer
	store     *memoryViolationStore
	publisher *recordingPublisher
}

func newEngineFixture(scorer *fakeScorer) *engineFixture {
	store := newMemoryViolationStore()
	publisher := &recordingPublisher{}
	engine := NewEngine(
		NewDeviceIdentityTracker(DefaultDeviceTrackerConfig()),
		NewImpossibleTravelDetector(NewMemoryLastSeenStore()),
		scorer,
		NewAggregator(DefaultAggregatorConfig()),
		store,
	)
	engine.SetPublisher(publisher)
	return &engineFixture{engine: engine, scorer: scorer, store: store, publisher: publisher}
}

func TestEngine_AcceptsCleanCheckIn(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(newHeuristicScorer(10))
	decision, err := f.engine.EvaluateCheckIn(context.Background(), testEvent("s1", "alice", "fp1"), testPolicy("s1", 50))
	if err != nil {
		t.Fatalf("EvaluateCheckIn() error = %v", err)
	}
	if !decision.Accept || decision.Violation != nil {
		t.Fatalf("decision = %+v, want accept", decision)
	}
	if decision.RiskScore != 10 {
		t.Errorf("RiskScore = %v, want 10", decision.RiskScore)
	}
	if decision.ScoreSource != "heuristic" {
		t.Errorf("ScoreSource = %q, want heuristic", decision.ScoreSource)
	}
	if f.store.count() != 0 || len(f.publisher.published) != 0 {
		t.Error("accepted check-ins must not be persisted or published")
	}
}

func TestEngine_FlagsOutsideGeofence(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(newHeuristicScorer(20))
	event := testEvent("s1", "alice", "fp1")
	p := offsetNorth(campus, 500)
	event.GPSLat, event.GPSLng = p.Lat, p.Lng

	decision, err := f.engine.EvaluateCheckIn(context.Background(), event, testPolicy("s1", 50))
	if err != nil {
		t.Fatalf("EvaluateCheckIn() error = %v", err)
	}
	if decision.Accept {
		t.Fatal("check-in 500 m away should be flagged")
	}
	v := decision.Violation
	if v.ViolationType != ViolationOutsideGeofence {
		t.Errorf("ViolationType = %s, want outside_geofence", v.ViolationType)
	}
	if v.DistanceFromGeofence == nil || math.Abs(*v.DistanceFromGeofence-500) > 0.5 {
		t.Errorf("DistanceFromGeofence = %v, want about 500", v.DistanceFromGeofence)
	}
	if v.RiskScore != 40 {
		t.Errorf("RiskScore = %v, want 40", v.RiskScore)
	}

	if _, err := f.store.GetViolation(context.Background(), v.ID); err != nil {
		t.Errorf("violation not persisted: %v", err)
	}
	if len(f.publisher.published) != 1 || f.publisher.published[0].ID != v.ID {
		t.Errorf("published = %v, want the violation", f.publisher.published)
	}
}

func TestEngine_ProxyAttendance(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(newHeuristicScorer(10))
	ctx := context.Background()
	policy := testPolicy("s1", 50)

	first, err := f.engine.EvaluateCheckIn(ctx, testEvent("s1", "alice", "fp-shared"), policy)
	if err != nil || !first.Accept {
		t.Fatalf("first check-in: decision = %+v, err = %v", first, err)
	}

	second, err := f.engine.EvaluateCheckIn(ctx, testEvent("s1", "bob", "fp-shared"), policy)
	if err != nil {
		t.Fatalf("EvaluateCheckIn() error = %v", err)
	}
	if second.Accept || second.Violation.ViolationType != ViolationDuplicateDevice {
		t.Fatalf("second check-in: decision = %+v, want duplicate_device", second)
	}

	third, _ := f.engine.EvaluateCheckIn(ctx, testEvent("s1", "carol", "fp-shared"), policy)
	if third.Accept || third.Violation.ViolationType != ViolationMultiplePRNs {
		t.Fatalf("third check-in: decision = %+v, want multiple_prns_same_device", third)
	}
	if len(third.Signals) < 2 || third.Signals[1] != ViolationDuplicateDevice {
		t.Errorf("Signals = %v, want duplicate_device among the secondary signals", third.Signals)
	}
}

func TestEngine_ImpossibleTravelAcrossSessions(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(newHeuristicScorer(10))
	ctx := context.Background()

	delhi := testEvent("delhi", "alice", "fp1")
	delhi.GPSLat, delhi.GPSLng = 28.61, 77.21
	delhiPolicy := &GeofencePolicy{SessionID: "delhi", Center: geo.Point{Lat: 28.61, Lng: 77.21}, RadiusMeters: 100}
	if _, err := f.engine.EvaluateCheckIn(ctx, delhi, delhiPolicy); err != nil {
		t.Fatalf("EvaluateCheckIn() error = %v", err)
	}

	noida := testEvent("noida", "alice", "fp1")
	noida.GPSLat, noida.GPSLng = 28.70, 77.30
	noida.Timestamp = testStart.Add(2 * time.Minute)
	noidaPolicy := &GeofencePolicy{SessionID: "noida", Center: geo.Point{Lat: 28.70, Lng: 77.30}, RadiusMeters: 100}

	decision, err := f.engine.EvaluateCheckIn(ctx, noida, noidaPolicy)
	if err != nil {
		t.Fatalf("EvaluateCheckIn() error = %v", err)
	}
	if decision.Accept || decision.Violation.ViolationType != ViolationImpossibleTravel {
		t.Fatalf("decision = %+v, want impossible_travel", decision)
	}
}

func TestEngine_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   func() *CheckInEvent
		policy  *GeofencePolicy
		wantErr error
	}{
		{"missing student", func() *CheckInEvent { e := testEvent("s1", "alice", "fp"); e.StudentID = ""; return e }, testPolicy("s1", 50), ErrInvalidEvent},
		{"bad coordinate", func() *CheckInEvent { e := testEvent("s1", "alice", "fp"); e.GPSLat = 120; return e }, testPolicy("s1", 50), geo.ErrInvalidCoordinate},
		{"policy for another session", func() *CheckInEvent { return testEvent("s1", "alice", "fp") }, testPolicy("s2", 50), ErrInvalidPolicy},
		{"nil policy", func() *CheckInEvent { return testEvent("s1", "alice", "fp") }, nil, ErrInvalidPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newEngineFixture(newHeuristicScorer(10))
			_, err := f.engine.EvaluateCheckIn(context.Background(), tt.event(), tt.policy)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if f.scorer.calls != 0 {
				t.Error("invalid input should not reach the scorer")
			}
		})
	}
}

func TestEngine_PersistAndPublishFailuresAreAbsorbed(t *testing.T) {
	f := newEngineFixture(newHeuristicScorer(90))
	f.store.saveErr = errors.New("database is locked")
	f.publisher.err = errors.New("bus closed")

	before := testutil.ToFloat64(metrics.ViolationPersistErrors)

	decision, err := f.engine.EvaluateCheckIn(context.Background(), testEvent("s1", "alice", "fp1"), testPolicy("s1", 50))
	if err != nil {
		t.Fatalf("EvaluateCheckIn() error = %v, want nil", err)
	}
	if decision.Accept {
		t.Fatal("high risk check-in should be flagged")
	}
	if decision.Violation.ViolationType != ViolationGPSSpoofing {
		t.Errorf("ViolationType = %s, want gps_spoofing_suspected", decision.Violation.ViolationType)
	}
	if got := testutil.ToFloat64(metrics.ViolationPersistErrors) - before; got < 1 {
		t.Errorf("ViolationPersistErrors increased by %v, want at least 1", got)
	}
	if len(f.publisher.published) != 1 {
		t.Error("publish should still be attempted after a persistence failure")
	}
}

func TestEngine_ModelScoredDecision(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(newModelScorer(0.7))
	decision, err := f.engine.EvaluateCheckIn(context.Background(), testEvent("s1", "alice", "fp1"), testPolicy("s1", 50))
	if err != nil {
		t.Fatalf("EvaluateCheckIn() error = %v", err)
	}
	if decision.Accept {
		t.Fatal("composite 70 should be flagged")
	}
	v := decision.Violation
	if v.ViolationType != ViolationMLHighRisk {
		t.Errorf("ViolationType = %s, want ml_high_risk", v.ViolationType)
	}
	if v.MLProbability == nil || *v.MLProbability != 0.7 {
		t.Errorf("MLProbability = %v, want 0.7", v.MLProbability)
	}
	if v.ScoreSource != "model" {
		t.Errorf("ScoreSource = %q, want model", v.ScoreSource)
	}
}

func TestEngine_NilStore(t *testing.T) {
	t.Parallel()

	engine := NewEngine(
		NewDeviceIdentityTracker(DefaultDeviceTrackerConfig()),
		nil,
		newHeuristicScorer(95),
		NewAggregator(DefaultAggregatorConfig()),
		nil,
	)
	decision, err := engine.EvaluateCheckIn(context.Background(), testEvent("s1", "alice", "fp1"), testPolicy("s1", 50))
	if err != nil {
		t.Fatalf("EvaluateCheckIn() error = %v", err)
	}
	if decision.Violation == nil {
		t.Error("violation should be returned without a store")
	}
}

func TestEngine_Maintain(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(newHeuristicScorer(10))
	ctx := context.Background()

	policy := testPolicy("s1", 50)
	policy.ExpiresAt = ptrTime(testStart.Add(time.Hour))
	if _, err := f.engine.EvaluateCheckIn(ctx, testEvent("s1", "alice", "fp1"), policy); err != nil {
		t.Fatalf("EvaluateCheckIn() error = %v", err)
	}
	if n := f.engine.Tracker().ActiveSessions(); n != 1 {
		t.Fatalf("ActiveSessions() = %d, want 1", n)
	}

	if err := f.engine.Maintain(ctx, testStart.Add(5*time.Hour)); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}
	if n := f.engine.Tracker().ActiveSessions(); n != 0 {
		t.Errorf("ActiveSessions() after Maintain = %d, want 0", n)
	}
}
