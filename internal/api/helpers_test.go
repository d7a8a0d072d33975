// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/models"
	"github.com/tomtom215/attendguard/internal/risk"
)

var testNow = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

type fakeEvaluator struct {
	mu       sync.Mutex
	decision *detection.Decision
	err      error
	event    *detection.CheckInEvent
	policy   *detection.GeofencePolicy
	calls    int
}

func (f *fakeEvaluator) EvaluateCheckIn(_ context.Context, event *detection.CheckInEvent, policy *detection.GeofencePolicy) (*detection.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.event, f.policy = event, policy
	if f.err != nil {
		return nil, f.err
	}
	if f.decision != nil {
		return f.decision, nil
	}
	return &detection.Decision{Accept: true, RiskScore: 5, ScoreSource: "heuristic"}, nil
}

type fakeViolations struct {
	mu         sync.Mutex
	byID       map[string]*detection.Violation
	list       []detection.Violation
	total      int
	stats      *detection.ViolationStats
	history    map[string][]detection.ReviewRecord
	err        error
	lastFilter detection.ViolationFilter
	statsCalls int
}

func newFakeViolations(vs ...detection.Violation) *fakeViolations {
	f := &fakeViolations{
		byID:    make(map[string]*detection.Violation),
		history: make(map[string][]detection.ReviewRecord),
		list:    vs,
		total:   len(vs),
	}
	for i := range vs {
		v := vs[i]
		f.byID[v.ID] = &v
	}
	return f
}

func (f *fakeViolations) GetViolation(_ context.Context, id string) (*detection.Violation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.byID[id]
	if !ok {
		return nil, detection.ErrViolationNotFound
	}
	out := *v
	return &out, nil
}

func (f *fakeViolations) ListViolations(_ context.Context, filter detection.ViolationFilter) ([]detection.Violation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeViolations) CountViolations(_ context.Context, filter detection.ViolationFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.total, nil
}

func (f *fakeViolations) ViolationStats(_ context.Context, filter detection.ViolationFilter) (*detection.ViolationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	f.statsCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

func (f *fakeViolations) ReviewHistory(_ context.Context, id string) ([]detection.ReviewRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.byID[id]; !ok {
		return nil, detection.ErrViolationNotFound
	}
	return f.history[id], nil
}

type transitionCall struct {
	id         string
	to         detection.ViolationStatus
	reviewedBy string
	notes      *string
}

type fakeReviews struct {
	mu    sync.Mutex
	err   error
	calls []transitionCall
}

func (f *fakeReviews) Transition(_ context.Context, id string, to detection.ViolationStatus, reviewedBy string, notes *string) (*detection.Violation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, transitionCall{id: id, to: to, reviewedBy: reviewedBy, notes: notes})
	if f.err != nil {
		return nil, f.err
	}
	return &detection.Violation{ID: id, Status: to, ReviewedBy: reviewedBy}, nil
}

type fakeModel struct {
	state   risk.ModelState
	enabled bool
}

func (f fakeModel) State() risk.ModelState { return f.state }
func (f fakeModel) ModelEnabled() bool     { return f.enabled }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

var errBoom = errors.New("boom")

// testDeps returns dependencies backed by fakes and a real session tracker.
func testDeps() (Dependencies, *fakeEvaluator, *fakeViolations, *fakeReviews) {
	eval := &fakeEvaluator{}
	viols := newFakeViolations()
	reviews := &fakeReviews{}
	return Dependencies{
		Evaluator:  eval,
		Sessions:   detection.NewDeviceIdentityTracker(detection.DefaultDeviceTrackerConfig()),
		Violations: viols,
		Reviews:    reviews,
		Model:      fakeModel{state: risk.StateReady, enabled: true},
		Database:   fakePinger{},
	}, eval, viols, reviews
}

func newTestRouter(deps Dependencies) http.Handler {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	return NewRouter(NewHandler(deps), NewChiMiddleware(cfg)).SetupChi()
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:52100"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("Unmarshal response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("Unmarshal data %s: %v", env.Data, err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, env envelope, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Errorf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if env.Status != models.StatusError {
		t.Errorf("envelope status = %q, want error", env.Status)
	}
	if env.Error == nil || env.Error.Code != code {
		t.Errorf("error = %+v, want code %s", env.Error, code)
	}
}

func ptrString(s string) *string { return &s }
