// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package eventprocessor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/geo"
	"github.com/tomtom215/attendguard/internal/logging"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testEvent() *detection.CheckInEvent {
	return &detection.CheckInEvent{
		SessionID:         "sess-1",
		StudentID:         "stu-1",
		StudentIdentifier: "PRN001",
		Timestamp:         testNow,
		GPSLat:            18.5204,
		GPSLng:            73.8567,
		GPSAccuracyMeters: 10,
		DeviceFingerprint: "fp-1",
	}
}

func testPolicy() *detection.GeofencePolicy {
	return &detection.GeofencePolicy{
		SessionID:    "sess-1",
		Center:       geo.Point{Lat: 18.5204, Lng: 73.8567},
		RadiusMeters: 100,
	}
}

// fakeEvaluator records calls and returns a canned result.
type fakeEvaluator struct {
	mu       sync.Mutex
	calls    int
	lastCorr string
	decision *detection.Decision
	err      error
	called   chan struct{}
}

func newFakeEvaluator(decision *detection.Decision, err error) *fakeEvaluator {
	return &fakeEvaluator{decision: decision, err: err, called: make(chan struct{}, 16)}
}

func (f *fakeEvaluator) EvaluateCheckIn(ctx context.Context, _ *detection.CheckInEvent, _ *detection.GeofencePolicy) (*detection.Decision, error) {
	f.mu.Lock()
	f.calls++
	f.lastCorr = logging.CorrelationIDFromContext(ctx)
	f.mu.Unlock()
	f.called <- struct{}{}
	return f.decision, f.err
}

func (f *fakeEvaluator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func receiveOne(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}
