// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package eventprocessor

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/attendguard/internal/logging"
)

// NewLogger returns a watermill logger that writes through the zerolog
// global logger, tagged with component.
func NewLogger(component string) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewComponentSlogLogger(component))
}

// NewBus creates the in-process pub/sub used for check-in intake and
// violation fan-out. Messages published while a topic has no subscriber
// are dropped.
func NewBus(cfg Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = NewLogger("event_bus")
	}
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logger)
}
