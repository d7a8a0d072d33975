// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package eventprocessor

import (
	"time"

	"github.com/tomtom215/attendguard/internal/config"
)

// Config holds the event bus settings.
type Config struct {
	// BufferSize is the per-subscriber output channel buffer.
	BufferSize int64

	// CheckInTopic carries check-ins submitted for asynchronous evaluation.
	CheckInTopic string

	// ViolationTopic carries every created violation.
	ViolationTopic string

	// CloseTimeout is how long the router waits for in-flight handlers on close.
	CloseTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:     256,
		CheckInTopic:   "attendance.checkin",
		ViolationTopic: "attendance.violation",
		CloseTimeout:   10 * time.Second,
	}
}

// ConfigFromEvents maps the events configuration section onto Config.
// Zero values fall back to the defaults.
func ConfigFromEvents(ev config.EventsConfig) Config {
	cfg := DefaultConfig()
	if ev.BufferSize > 0 {
		cfg.BufferSize = ev.BufferSize
	}
	if ev.CheckInTopic != "" {
		cfg.CheckInTopic = ev.CheckInTopic
	}
	if ev.ViolationTopic != "" {
		cfg.ViolationTopic = ev.ViolationTopic
	}
	if ev.RouterCloseTimeout > 0 {
		cfg.CloseTimeout = ev.RouterCloseTimeout
	}
	return cfg
}
