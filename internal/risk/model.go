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
)

var (
	// ErrModelUnavailable means the model could not be loaded.
	ErrModelUnavailable = errors.New("risk model unavailable")

	// ErrModelTimeout means a load or prediction exceeded its deadline.
	ErrModelTimeout = errors.New("risk model timed out")

	// ErrModelOutput means the model returned something other than a probability in [0, 1].
	ErrModelOutput = errors.New("risk model returned invalid output")
)

// RiskModel predicts the probability that a check-in is fraudulent.
type RiskModel interface {
	Predict(ctx context.Context, f Features) (float64, error)
}

// Loader prepares a RiskModel. It is called at most once per load attempt.
type Loader func(ctx context.Context) (RiskModel, error)

// ModelState is the lifecycle state of the scorer's model.
type ModelState string

// Model lifecycle states.
const (
	StateNotLoaded ModelState = "not_loaded"
	StateLoading   ModelState = "loading"
	StateReady     ModelState = "ready"
	StateFailed    ModelState = "failed"
)

// metricValue maps a state onto the attendguard_risk_model_state gauge.
func (s ModelState) metricValue() float64 {
	switch s {
	case StateLoading:
		return 1
	case StateReady:
		return 2
	case StateFailed:
		return 3
	default:
		return 0
	}
}

// validateProbability rejects NaN, infinities and values outside [0, 1].
func validateProbability(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return fmt.Errorf("%w: probability %v outside [0, 1]", ErrModelOutput, p)
	}
	return nil
}

// callWithDeadline runs fn and returns when it finishes or ctx is done,
// whichever comes first, so a model that ignores its context still cannot
// block the caller past the deadline. Panics inside fn become errors.
func callWithDeadline[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("risk model panicked: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && !errors.Is(o.err, ErrModelTimeout) {
			o.err = fmt.Errorf("%w: %w", ErrModelTimeout, o.err)
		}
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %w", ErrModelTimeout, ctx.Err())
		}
		return zero, ctx.Err()
	}
}
