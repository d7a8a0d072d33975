// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// Router wraps the Watermill Router with panic recovery.
type Router struct {
	router   *message.Router
	logger   watermill.LoggerAdapter
	handlers map[string]*message.Handler
}

// NewRouter creates a new Watermill Router. A handler panic is converted
// into an error by the Recoverer middleware instead of crashing the process.
func NewRouter(closeTimeout time.Duration, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = NewLogger("event_router")
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}
	wmRouter.AddMiddleware(middleware.Recoverer)

	return &Router{
		router:   wmRouter,
		logger:   logger,
		handlers: make(map[string]*message.Handler),
	}, nil
}

// AddConsumerHandler registers a handler that produces no output messages.
// Handlers must be added before Run.
func (r *Router) AddConsumerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) *message.Handler {
	h := r.router.AddConsumerHandler(name, subscribeTopic, subscriber, handler)
	r.handlers[name] = h
	return h
}

// HandlerCount returns the number of registered handlers.
func (r *Router) HandlerCount() int {
	return len(r.handlers)
}

// Run starts the router and blocks until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once every handler is subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is currently processing messages.
func (r *Router) IsRunning() bool {
	return r.router.IsRunning()
}

// Close gracefully stops the router, waiting up to the close timeout for
// in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}
