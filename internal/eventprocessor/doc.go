// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

/*
Package eventprocessor connects the detection engine to an in-process
Watermill pub/sub bus.

Topics (names configurable):

	attendance.checkin    CheckInMessage: {event, policy, submitted_at}
	attendance.violation  ViolationEvent: {event_id, occurred_at, violation}

Components:

  - NewBus: gochannel pub/sub shared by publishers and the router
  - ViolationPublisher: implements detection.ViolationPublisher so every
    created violation is announced on the violation topic
  - CheckInPublisher: submits check-ins for asynchronous evaluation
  - CheckInHandler: consumes the check-in topic and calls the engine; every
    message is acknowledged, whatever the outcome
  - Router: watermill message router with panic recovery, run as a
    supervised service

Message IDs are UUIDs. Every message carries correlation_id and event_type
metadata; the handler restores the correlation ID into the logging context
so a check-in can be traced from submission to decision.

Watermill logs through the zerolog global logger via watermill.NewSlogLogger
and logging.NewComponentSlogLogger.
*/
package eventprocessor
