// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package risk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// maxStderrBytes limits how much of a failing process's stderr is kept in errors.
	maxStderrBytes = 256

	// waitDelay bounds how long a killed process may hold its output pipes open.
	waitDelay = 500 * time.Millisecond
)

// ProcessModel runs an external predictive executable per prediction.
// The encoded feature vector is appended as the final argument and the
// process must print a single probability to stdout.
type ProcessModel struct {
	path string
	args []string
}

// NewProcessModel creates a model for an already resolved executable path.
func NewProcessModel(path string, args []string) *ProcessModel {
	return &ProcessModel{path: path, args: append([]string(nil), args...)}
}

// Predict runs the executable and parses its output.
func (m *ProcessModel) Predict(ctx context.Context, f Features) (float64, error) {
	args := make([]string, 0, len(m.args)+1)
	args = append(args, m.args...)
	args = append(args, f.Encode())

	cmd := exec.CommandContext(ctx, m.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %w", ErrModelTimeout, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderrBytes {
			msg = msg[:maxStderrBytes]
		}
		return 0, fmt.Errorf("risk model process failed: %w (stderr: %q)", err, msg)
	}

	return ParseProbability(string(out))
}

// ParseProbability parses a model's textual output. Anything that is not a
// single number within [0, 1] fails with ErrModelOutput.
func ParseProbability(output string) (float64, error) {
	text := strings.TrimSpace(output)
	if text == "" {
		return 0, fmt.Errorf("%w: empty output", ErrModelOutput)
	}
	p, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrModelOutput, text)
	}
	if err := validateProbability(p); err != nil {
		return 0, err
	}
	return p, nil
}

// NewProcessLoader returns a Loader that resolves command on PATH and runs
// one probe prediction on a zero feature vector before declaring the model ready.
func NewProcessLoader(command string, args []string) Loader {
	return func(ctx context.Context) (RiskModel, error) {
		path, err := exec.LookPath(command)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", command, err)
		}

		model := NewProcessModel(path, args)
		if _, err := model.Predict(ctx, Features{}); err != nil {
			return nil, fmt.Errorf("probe prediction: %w", err)
		}
		return model, nil
	}
}
