// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package services

import (
	"context"
	"time"

	"github.com/tomtom215/attendguard/internal/logging"
)

// Maintainer discards expired detection state. Satisfied by
// *detection.Engine.
type Maintainer interface {
	Maintain(ctx context.Context, now time.Time) error
}

// JanitorService calls Maintain on a fixed interval. A failed pass is
// logged and the next tick runs as usual.
type JanitorService struct {
	target   Maintainer
	interval time.Duration
	now      func() time.Time
}

// NewJanitorService creates a janitor running every interval. A
// non-positive interval becomes 5m.
func NewJanitorService(target Maintainer, interval time.Duration) *JanitorService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &JanitorService{target: target, interval: interval, now: time.Now}
}

// Serve implements suture.Service.
func (j *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	log := logging.WithComponent("janitor")
	log.Debug().Dur("interval", j.interval).Msg("Janitor started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := j.target.Maintain(ctx, j.now()); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Msg("Maintenance pass failed")
			}
		}
	}
}

// String implements fmt.Stringer.
func (j *JanitorService) String() string {
	return "janitor"
}
