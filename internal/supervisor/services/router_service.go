// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package services

import (
	"context"
	"errors"
	"fmt"
)

// EventRouter is the lifecycle of *eventprocessor.Router.
type EventRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// EventRouterService runs the Watermill message router under the supervisor.
//
// A Watermill router cannot be run twice, so the service is built from a
// factory and a fresh router is created on every (re)start.
type EventRouterService struct {
	newRouter func() (EventRouter, error)
}

// NewEventRouterService creates the service. newRouter must register every
// handler on the router it returns.
func NewEventRouterService(newRouter func() (EventRouter, error)) *EventRouterService {
	return &EventRouterService{newRouter: newRouter}
}

// Serve implements suture.Service.
func (s *EventRouterService) Serve(ctx context.Context) error {
	router, err := s.newRouter()
	if err != nil {
		return fmt.Errorf("create event router: %w", err)
	}

	runErr := router.Run(ctx)
	closeErr := router.Close()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if runErr == nil {
		// Run returned without cancellation, let suture restart it.
		runErr = errors.New("event router stopped unexpectedly")
	}
	if closeErr != nil {
		return fmt.Errorf("event router: %w (close: %v)", runErr, closeErr)
	}
	return fmt.Errorf("event router: %w", runErr)
}

// String implements fmt.Stringer.
func (s *EventRouterService) String() string {
	return "event-router"
}
