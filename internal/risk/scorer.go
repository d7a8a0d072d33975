// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/attendguard/internal/logging"
	"github.com/tomtom215/attendguard/internal/metrics"
)

// Source identifies which path produced a score.
type Source string

// Score sources.
const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
)

// Fallback reasons reported when the heuristic produced the score.
const (
	ReasonModelDisabled    = "model_disabled"
	ReasonModelUnavailable = "model_unavailable"
	ReasonBreakerOpen      = "breaker_open"
	ReasonModelTimeout     = "model_timeout"
	ReasonModelOutput      = "model_output"
	ReasonModelError       = "model_error"
)

// loadKey is the single-flight key for model loads.
const loadKey = "model"

// Config configures a Scorer.
type Config struct {
	ModelEnabled            bool
	ModelTimeout            time.Duration
	LoadTimeout             time.Duration
	LoadRetryBackoff        time.Duration
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration
}

// DefaultConfig returns the scorer defaults with the model disabled.
func DefaultConfig() Config {
	return Config{
		ModelEnabled:            false,
		ModelTimeout:            2 * time.Second,
		LoadTimeout:             10 * time.Second,
		LoadRetryBackoff:        0,
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      30 * time.Second,
	}
}

// Result is the outcome of scoring one check-in.
type Result struct {
	// Score is in [0, 100], rounded to two decimals.
	Score float64 `json:"score"`

	// Probability is the raw model output, nil when the heuristic was used.
	Probability *float64 `json:"probability,omitempty"`

	Source         Source   `json:"source"`
	HeuristicScore float64  `json:"heuristic_score"`
	Features       Features `json:"features"`

	// FallbackReason is set when Source is heuristic.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Scorer produces a risk score for a check-in. The model is loaded lazily
// on first use; concurrent first callers share one load. Any model failure
// degrades to the heuristic, so Score never fails.
type Scorer struct {
	cfg     Config
	loader  Loader
	breaker *gobreaker.CircuitBreaker[float64]
	group   singleflight.Group
	now     func() time.Time

	mu       sync.RWMutex
	state    ModelState
	model    RiskModel
	loadErr  error
	failedAt time.Time
}

// NewScorer creates a scorer. A nil loader behaves like a disabled model.
func NewScorer(cfg Config, loader Loader) *Scorer {
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultConfig().ModelTimeout
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultConfig().LoadTimeout
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = DefaultConfig().BreakerOpenTimeout
	}

	s := &Scorer{
		cfg:     cfg,
		loader:  loader,
		breaker: newModelBreaker(cfg.BreakerFailureThreshold, cfg.BreakerOpenTimeout),
		now:     time.Now,
		state:   StateNotLoaded,
	}
	metrics.RiskModelState.Set(StateNotLoaded.metricValue())
	return s
}

// State returns the current model lifecycle state.
func (s *Scorer) State() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ModelEnabled reports whether the scorer will try the model at all.
func (s *Scorer) ModelEnabled() bool {
	return s.cfg.ModelEnabled && s.loader != nil
}

// Load makes sure the model is loaded, blocking until the shared load
// attempt finishes or ctx is done. It is used to warm the model at startup.
func (s *Scorer) Load(ctx context.Context) error {
	if !s.ModelEnabled() {
		return nil
	}
	_, err := s.ensureModel(ctx)
	return err
}

// Score computes the risk score for in.
func (s *Scorer) Score(ctx context.Context, in Input) Result {
	features := ExtractFeatures(in)
	heuristic := HeuristicScore(features)

	fallback := func(reason string) Result {
		metrics.RecordRiskScoring(string(SourceHeuristic), reason)
		return Result{
			Score:          heuristic,
			Source:         SourceHeuristic,
			HeuristicScore: heuristic,
			Features:       features,
			FallbackReason: reason,
		}
	}

	if !s.ModelEnabled() {
		return fallback(ReasonModelDisabled)
	}

	model, err := s.ensureModel(ctx)
	if err != nil {
		return fallback(ReasonModelUnavailable)
	}

	p, err := s.predict(ctx, model, features)
	if err != nil {
		reason := classifyPredictError(err)
		logging.Ctx(ctx).Debug().Err(err).Str("reason", reason).Msg("Risk model prediction failed, using heuristic")
		return fallback(reason)
	}

	metrics.RecordRiskScoring(string(SourceModel), "")
	prob := p
	return Result{
		Score:          roundScore(p * 100),
		Probability:    &prob,
		Source:         SourceModel,
		HeuristicScore: heuristic,
		Features:       features,
	}
}

// ensureModel returns the loaded model, loading it if needed. A failed load
// is remembered and only retried after LoadRetryBackoff, when one is set.
func (s *Scorer) ensureModel(ctx context.Context) (RiskModel, error) {
	if model, settled, err := s.cached(); settled {
		return model, err
	}

	ch := s.group.DoChan(loadKey, func() (any, error) {
		// Double-check inside the flight: a load may have finished between
		// the cache check and this call.
		if model, settled, err := s.cached(); settled {
			return model, err
		}
		return s.load()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		model, ok := res.Val.(RiskModel)
		if !ok {
			return nil, fmt.Errorf("%w: loader returned %T", ErrModelUnavailable, res.Val)
		}
		return model, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, ctx.Err())
	}
}

// cached reports a settled load outcome. settled is false when a load should run.
func (s *Scorer) cached() (RiskModel, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.state {
	case StateReady:
		return s.model, true, nil
	case StateFailed:
		if s.cfg.LoadRetryBackoff > 0 && s.now().Sub(s.failedAt) >= s.cfg.LoadRetryBackoff {
			return nil, false, nil
		}
		logging.Debug().Err(s.loadErr).Msg("Risk model previously failed to load")
		return nil, true, s.loadErr
	default:
		return nil, false, nil
	}
}

// load runs the loader once. It detaches from any caller context so a
// canceled request cannot fail the load for everyone else.
func (s *Scorer) load() (RiskModel, error) {
	s.setState(StateLoading)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LoadTimeout)
	defer cancel()

	start := time.Now()
	model, err := callWithDeadline(ctx, func(ctx context.Context) (RiskModel, error) {
		return s.loader(ctx)
	})
	if err == nil && model == nil {
		err = errors.New("loader returned no model")
	}
	metrics.RecordRiskModelLoad(err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.model = nil
		s.loadErr = fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		s.failedAt = s.now()
		s.state = StateFailed
		metrics.RiskModelState.Set(StateFailed.metricValue())
		logging.Warn().Err(err).Dur("elapsed", time.Since(start)).
			Dur("retry_backoff", s.cfg.LoadRetryBackoff).
			Msg("Risk model failed to load, scoring with heuristic")
		return nil, s.loadErr
	}

	s.model = model
	s.loadErr = nil
	s.state = StateReady
	metrics.RiskModelState.Set(StateReady.metricValue())
	logging.Info().Dur("elapsed", time.Since(start)).Msg("Risk model loaded")
	return model, nil
}

func (s *Scorer) setState(state ModelState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	metrics.RiskModelState.Set(state.metricValue())
}

// predict runs one prediction through the breaker with ModelTimeout applied.
func (s *Scorer) predict(ctx context.Context, model RiskModel, f Features) (float64, error) {
	start := time.Now()
	p, err := s.breaker.Execute(func() (float64, error) {
		predictCtx, cancel := context.WithTimeout(ctx, s.cfg.ModelTimeout)
		defer cancel()

		p, err := callWithDeadline(predictCtx, func(ctx context.Context) (float64, error) {
			return model.Predict(ctx, f)
		})
		if err != nil {
			return 0, err
		}
		if err := validateProbability(p); err != nil {
			return 0, err
		}
		return p, nil
	})
	recordBreakerResult(s.breaker, err)
	if !isBreakerRejection(err) {
		metrics.RiskModelPredictDuration.Observe(time.Since(start).Seconds())
	}
	return p, err
}

func classifyPredictError(err error) string {
	switch {
	case isBreakerRejection(err):
		return ReasonBreakerOpen
	case errors.Is(err, ErrModelTimeout):
		return ReasonModelTimeout
	case errors.Is(err, ErrModelOutput):
		return ReasonModelOutput
	default:
		return ReasonModelError
	}
}

// roundScore clamps to [0, 100] and rounds to two decimals.
func roundScore(v float64) float64 {
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*100) / 100
}
