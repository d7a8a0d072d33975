// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package risk

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeModel returns a fixed probability or error. When block is set,
// Predict waits on it and ignores ctx.
type fakeModel struct {
	p     float64
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (m *fakeModel) Predict(_ context.Context, _ Features) (float64, error) {
	m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
	return m.p, m.err
}

// countingLoader wraps a load function and counts invocations.
type countingLoader struct {
	calls atomic.Int32
	fn    func(ctx context.Context, attempt int32) (RiskModel, error)
}

func (l *countingLoader) Load(ctx context.Context) (RiskModel, error) {
	n := l.calls.Add(1)
	return l.fn(ctx, n)
}

func staticLoader(m RiskModel) *countingLoader {
	return &countingLoader{fn: func(context.Context, int32) (RiskModel, error) { return m, nil }}
}

func enabledConfig() Config {
	cfg := DefaultConfig()
	cfg.ModelEnabled = true
	cfg.ModelTimeout = 200 * time.Millisecond
	cfg.LoadTimeout = time.Second
	return cfg
}

func testInput() Input {
	return Input{
		Timestamp:         time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Lat:               28.6,
		Lng:               77.2,
		AccuracyMeters:    15,
		IPAddress:         "203.0.113.9",
		UserAgent:         "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36",
		DeviceFingerprint: "device-1",
	}
}

func TestScorer_ModelDisabled(t *testing.T) {
	loader := staticLoader(&fakeModel{p: 0.9})
	s := NewScorer(DefaultConfig(), loader.Load)

	res := s.Score(context.Background(), testInput())

	if res.Source != SourceHeuristic {
		t.Fatalf("Source = %q, want heuristic", res.Source)
	}
	if res.FallbackReason != ReasonModelDisabled {
		t.Errorf("FallbackReason = %q, want %q", res.FallbackReason, ReasonModelDisabled)
	}
	if res.Probability != nil {
		t.Errorf("Probability = %v, want nil", *res.Probability)
	}
	if res.Score != res.HeuristicScore {
		t.Errorf("Score = %v, want heuristic %v", res.Score, res.HeuristicScore)
	}
	if n := loader.calls.Load(); n != 0 {
		t.Errorf("loader called %d times, want 0", n)
	}
	if s.State() != StateNotLoaded {
		t.Errorf("State() = %q, want not_loaded", s.State())
	}
}

func TestScorer_NilLoader(t *testing.T) {
	s := NewScorer(enabledConfig(), nil)
	if s.ModelEnabled() {
		t.Fatal("ModelEnabled() = true with nil loader")
	}
	if res := s.Score(context.Background(), testInput()); res.FallbackReason != ReasonModelDisabled {
		t.Errorf("FallbackReason = %q, want %q", res.FallbackReason, ReasonModelDisabled)
	}
}

func TestScorer_ModelSuccess(t *testing.T) {
	model := &fakeModel{p: 0.4234}
	s := NewScorer(enabledConfig(), staticLoader(model).Load)

	res := s.Score(context.Background(), testInput())

	if res.Source != SourceModel {
		t.Fatalf("Source = %q (reason %q), want model", res.Source, res.FallbackReason)
	}
	if res.Score != 42.34 {
		t.Errorf("Score = %v, want 42.34", res.Score)
	}
	if res.Probability == nil || *res.Probability != 0.4234 {
		t.Errorf("Probability = %v, want 0.4234", res.Probability)
	}
	if res.FallbackReason != "" {
		t.Errorf("FallbackReason = %q, want empty", res.FallbackReason)
	}
	if res.HeuristicScore != HeuristicScore(res.Features) {
		t.Errorf("HeuristicScore = %v, not recomputable from features", res.HeuristicScore)
	}
	if s.State() != StateReady {
		t.Errorf("State() = %q, want ready", s.State())
	}
}

func TestScorer_PredictFailures(t *testing.T) {
	tests := []struct {
		name   string
		model  *fakeModel
		reason string
	}{
		{"error", &fakeModel{err: errors.New("boom")}, ReasonModelError},
		{"above one", &fakeModel{p: 1.5}, ReasonModelOutput},
		{"negative", &fakeModel{p: -0.1}, ReasonModelOutput},
		{"nan", &fakeModel{p: math.NaN()}, ReasonModelOutput},
		{"output error", &fakeModel{err: ErrModelOutput}, ReasonModelOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(enabledConfig(), staticLoader(tt.model).Load)
			res := s.Score(context.Background(), testInput())

			if res.Source != SourceHeuristic {
				t.Fatalf("Source = %q, want heuristic", res.Source)
			}
			if res.FallbackReason != tt.reason {
				t.Errorf("FallbackReason = %q, want %q", res.FallbackReason, tt.reason)
			}
			if res.Score != HeuristicScore(res.Features) {
				t.Errorf("Score = %v, want heuristic score", res.Score)
			}
		})
	}
}

func TestScorer_PredictTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	cfg := enabledConfig()
	cfg.ModelTimeout = 50 * time.Millisecond
	s := NewScorer(cfg, staticLoader(&fakeModel{p: 0.5, block: block}).Load)

	start := time.Now()
	res := s.Score(context.Background(), testInput())
	elapsed := time.Since(start)

	if res.FallbackReason != ReasonModelTimeout {
		t.Errorf("FallbackReason = %q, want %q", res.FallbackReason, ReasonModelTimeout)
	}
	if elapsed > time.Second {
		t.Errorf("Score took %v, the model timeout was not enforced", elapsed)
	}
}

func TestScorer_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := enabledConfig()
	cfg.BreakerFailureThreshold = 2
	cfg.BreakerOpenTimeout = time.Hour
	model := &fakeModel{err: errors.New("model crashed")}
	s := NewScorer(cfg, staticLoader(model).Load)

	for i := 0; i < 2; i++ {
		if res := s.Score(context.Background(), testInput()); res.FallbackReason != ReasonModelError {
			t.Fatalf("call %d: FallbackReason = %q, want %q", i, res.FallbackReason, ReasonModelError)
		}
	}

	res := s.Score(context.Background(), testInput())
	if res.FallbackReason != ReasonBreakerOpen {
		t.Errorf("FallbackReason = %q, want %q", res.FallbackReason, ReasonBreakerOpen)
	}
	if n := model.calls.Load(); n != 2 {
		t.Errorf("model called %d times, want 2 (open breaker must short-circuit)", n)
	}
}

func TestScorer_LoadFailureIsCached(t *testing.T) {
	loader := &countingLoader{fn: func(context.Context, int32) (RiskModel, error) {
		return nil, errors.New("model file missing")
	}}
	s := NewScorer(enabledConfig(), loader.Load)

	for i := 0; i < 3; i++ {
		if res := s.Score(context.Background(), testInput()); res.FallbackReason != ReasonModelUnavailable {
			t.Fatalf("call %d: FallbackReason = %q, want %q", i, res.FallbackReason, ReasonModelUnavailable)
		}
	}

	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	if s.State() != StateFailed {
		t.Errorf("State() = %q, want failed", s.State())
	}
	if err := s.Load(context.Background()); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Load() error = %v, want ErrModelUnavailable", err)
	}
}

func TestScorer_LoadRetryAfterBackoff(t *testing.T) {
	model := &fakeModel{p: 0.25}
	loader := &countingLoader{fn: func(_ context.Context, attempt int32) (RiskModel, error) {
		if attempt == 1 {
			return nil, errors.New("transient")
		}
		return model, nil
	}}

	cfg := enabledConfig()
	cfg.LoadRetryBackoff = time.Minute
	s := NewScorer(cfg, loader.Load)

	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if res := s.Score(context.Background(), testInput()); res.FallbackReason != ReasonModelUnavailable {
		t.Fatalf("first call: FallbackReason = %q", res.FallbackReason)
	}

	now = now.Add(30 * time.Second)
	if res := s.Score(context.Background(), testInput()); res.FallbackReason != ReasonModelUnavailable {
		t.Fatalf("within backoff: FallbackReason = %q", res.FallbackReason)
	}
	if n := loader.calls.Load(); n != 1 {
		t.Fatalf("loader called %d times within backoff, want 1", n)
	}

	now = now.Add(time.Minute)
	res := s.Score(context.Background(), testInput())
	if res.Source != SourceModel || res.Score != 25 {
		t.Errorf("after backoff: Source = %q Score = %v, want model 25", res.Source, res.Score)
	}
	if n := loader.calls.Load(); n != 2 {
		t.Errorf("loader called %d times, want 2", n)
	}
}

func TestScorer_LoadTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	loader := &countingLoader{fn: func(context.Context, int32) (RiskModel, error) {
		<-block
		return &fakeModel{p: 0.1}, nil
	}}
	cfg := enabledConfig()
	cfg.LoadTimeout = 50 * time.Millisecond
	s := NewScorer(cfg, loader.Load)

	res := s.Score(context.Background(), testInput())
	if res.FallbackReason != ReasonModelUnavailable {
		t.Errorf("FallbackReason = %q, want %q", res.FallbackReason, ReasonModelUnavailable)
	}
	if s.State() != StateFailed {
		t.Errorf("State() = %q, want failed", s.State())
	}
}

func TestScorer_ConcurrentFirstUseLoadsOnce(t *testing.T) {
	release := make(chan struct{})
	model := &fakeModel{p: 0.6}
	loader := &countingLoader{fn: func(context.Context, int32) (RiskModel, error) {
		<-release
		return model, nil
	}}
	s := NewScorer(enabledConfig(), loader.Load)

	const callers = 25
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Score(context.Background(), testInput())
		}(i)
	}

	// Give every caller a chance to join the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	for i, res := range results {
		if res.Source != SourceModel || res.Score != 60 {
			t.Errorf("caller %d: Source = %q Score = %v, want model 60", i, res.Source, res.Score)
		}
	}
}

func TestScorer_CanceledWaiterDoesNotFailLoad(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{fn: func(context.Context, int32) (RiskModel, error) {
		<-release
		return &fakeModel{p: 0.3}, nil
	}}
	s := NewScorer(enabledConfig(), loader.Load)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- s.Score(ctx, testInput()) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if res := <-done; res.FallbackReason != ReasonModelUnavailable {
		t.Errorf("canceled caller: FallbackReason = %q, want %q", res.FallbackReason, ReasonModelUnavailable)
	}

	close(release)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.State() != StateReady {
		t.Errorf("State() = %q, want ready", s.State())
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestRoundScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{42.345, 42.35},
		{0, 0},
		{-3, 0},
		{100.4, 100},
		{99.994, 99.99},
	}
	for _, tt := range tests {
		if got := roundScore(tt.in); got != tt.want {
			t.Errorf("roundScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
