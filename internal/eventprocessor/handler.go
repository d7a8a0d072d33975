// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package eventprocessor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/geo"
	"github.com/tomtom215/attendguard/internal/logging"
	"github.com/tomtom215/attendguard/internal/metrics"
)

// Consumed event results.
const (
	resultProcessed = "processed"
	resultInvalid   = "invalid"
	resultFailed    = "failed"
)

// ErrNilEvaluator is returned when a handler is created without an evaluator.
var ErrNilEvaluator = errors.New("check-in evaluator is required")

// CheckInEvaluator decides whether a check-in is accepted.
type CheckInEvaluator interface {
	EvaluateCheckIn(ctx context.Context, event *detection.CheckInEvent, policy *detection.GeofencePolicy) (*detection.Decision, error)
}

// HandlerStats is a snapshot of CheckInHandler counters.
type HandlerStats struct {
	Received        int64
	Accepted        int64
	Flagged         int64
	Invalid         int64
	Failed          int64
	LastMessageTime time.Time
}

// CheckInHandler evaluates check-ins consumed from the bus. Every message
// is acknowledged, including malformed and invalid ones.
type CheckInHandler struct {
	evaluator CheckInEvaluator
	topic     string
	logger    watermill.LoggerAdapter

	received        atomic.Int64
	accepted        atomic.Int64
	flagged         atomic.Int64
	invalid         atomic.Int64
	failed          atomic.Int64
	lastMessageTime atomic.Value // stores time.Time
}

// NewCheckInHandler creates a handler for messages consumed from topic.
func NewCheckInHandler(evaluator CheckInEvaluator, topic string, logger watermill.LoggerAdapter) (*CheckInHandler, error) {
	if evaluator == nil {
		return nil, ErrNilEvaluator
	}
	if logger == nil {
		logger = NewLogger("checkin_handler")
	}
	h := &CheckInHandler{evaluator: evaluator, topic: topic, logger: logger}
	h.lastMessageTime.Store(time.Time{})
	return h, nil
}

// Handle processes one check-in message. It always returns nil.
func (h *CheckInHandler) Handle(msg *message.Message) error {
	h.received.Add(1)
	h.lastMessageTime.Store(time.Now())

	ctx := msg.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	} else {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}

	in, err := DecodeCheckIn(msg.Payload)
	if err != nil {
		h.invalid.Add(1)
		metrics.RecordEventConsumed(h.topic, resultInvalid)
		h.logger.Error("Dropping malformed check-in message", err, watermill.LogFields{
			"message_uuid": msg.UUID,
		})
		return nil
	}

	decision, err := h.evaluator.EvaluateCheckIn(ctx, in.Event, in.Policy)
	if err != nil {
		fields := watermill.LogFields{
			"message_uuid": msg.UUID,
			"session_id":   in.Event.SessionID,
			"student_id":   in.Event.StudentID,
		}
		if isInvalidInput(err) {
			h.invalid.Add(1)
			metrics.RecordEventConsumed(h.topic, resultInvalid)
			h.logger.Info("Check-in message rejected as invalid", fields.Add(watermill.LogFields{"reason": err.Error()}))
			return nil
		}
		h.failed.Add(1)
		metrics.RecordEventConsumed(h.topic, resultFailed)
		h.logger.Error("Check-in evaluation failed", err, fields)
		return nil
	}

	metrics.RecordEventConsumed(h.topic, resultProcessed)
	if decision.Accept {
		h.accepted.Add(1)
		return nil
	}

	h.flagged.Add(1)
	fields := watermill.LogFields{
		"message_uuid": msg.UUID,
		"session_id":   in.Event.SessionID,
		"risk_score":   decision.RiskScore,
	}
	if decision.Violation != nil {
		fields["violation_id"] = decision.Violation.ID
		fields["violation_type"] = string(decision.Violation.ViolationType)
	}
	h.logger.Debug("Asynchronous check-in flagged", fields)
	return nil
}

// Stats returns a snapshot of the handler counters.
func (h *CheckInHandler) Stats() HandlerStats {
	last, _ := h.lastMessageTime.Load().(time.Time)
	return HandlerStats{
		Received:        h.received.Load(),
		Accepted:        h.accepted.Load(),
		Flagged:         h.flagged.Load(),
		Invalid:         h.invalid.Load(),
		Failed:          h.failed.Load(),
		LastMessageTime: last,
	}
}

func isInvalidInput(err error) bool {
	return errors.Is(err, geo.ErrInvalidCoordinate) ||
		errors.Is(err, detection.ErrInvalidEvent) ||
		errors.Is(err, detection.ErrInvalidPolicy)
}
