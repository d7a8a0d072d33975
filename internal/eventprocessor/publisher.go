// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/logging"
	"github.com/tomtom215/attendguard/internal/metrics"
)

// newMessage builds a bus message with a fresh UUID and the caller's
// correlation ID, generating one when ctx has none.
func newMessage(ctx context.Context, payload []byte, eventType string) *message.Message {
	msg := message.NewMessage(uuid.New().String(), payload)
	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = logging.GenerateCorrelationID()
	}
	msg.Metadata.Set(MetadataCorrelationID, correlationID)
	msg.Metadata.Set(MetadataEventType, eventType)
	msg.SetContext(ctx)
	return msg
}

// ViolationPublisher announces created violations on the violation topic.
type ViolationPublisher struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

var _ detection.ViolationPublisher = (*ViolationPublisher)(nil)

// NewViolationPublisher creates a publisher writing to topic.
func NewViolationPublisher(publisher message.Publisher, topic string) *ViolationPublisher {
	return &ViolationPublisher{publisher: publisher, topic: topic, now: time.Now}
}

// PublishViolation encodes v and publishes it.
func (p *ViolationPublisher) PublishViolation(ctx context.Context, v *detection.Violation) error {
	event := &ViolationEvent{
		EventID:    uuid.New().String(),
		OccurredAt: p.now().UTC(),
		Violation:  v,
	}
	data, err := marshalPayload(event)
	if err != nil {
		metrics.RecordEventPublished(p.topic, err)
		return err
	}

	msg := newMessage(ctx, data, EventTypeViolationCreated)
	msg.Metadata.Set(MetadataSessionID, v.SessionID)
	msg.Metadata.Set(MetadataViolationType, string(v.ViolationType))

	err = p.publisher.Publish(p.topic, msg)
	metrics.RecordEventPublished(p.topic, err)
	if err != nil {
		return fmt.Errorf("publish violation %s: %w", v.ID, err)
	}
	return nil
}

// CheckInPublisher submits check-ins for asynchronous evaluation.
type CheckInPublisher struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

// NewCheckInPublisher creates a publisher writing to topic.
func NewCheckInPublisher(publisher message.Publisher, topic string) *CheckInPublisher {
	return &CheckInPublisher{publisher: publisher, topic: topic, now: time.Now}
}

// SubmitCheckIn enqueues a check-in and returns the message ID.
func (p *CheckInPublisher) SubmitCheckIn(ctx context.Context, event *detection.CheckInEvent, policy *detection.GeofencePolicy) (string, error) {
	data, err := marshalPayload(&CheckInMessage{
		Event:       event,
		Policy:      policy,
		SubmittedAt: p.now().UTC(),
	})
	if err != nil {
		metrics.RecordEventPublished(p.topic, err)
		return "", err
	}

	msg := newMessage(ctx, data, EventTypeCheckInSubmitted)
	msg.Metadata.Set(MetadataSessionID, event.SessionID)

	err = p.publisher.Publish(p.topic, msg)
	metrics.RecordEventPublished(p.topic, err)
	if err != nil {
		return "", fmt.Errorf("publish check-in: %w", err)
	}
	return msg.UUID, nil
}
