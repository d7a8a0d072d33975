// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"net"
	"net/http"
	"time"

	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/logging"
)

// EvaluateCheckInRequest is the body of POST /api/v1/checkins/evaluate.
type EvaluateCheckInRequest struct {
	Event  *detection.CheckInEvent   `json:"event" validate:"required"`
	Policy *detection.GeofencePolicy `json:"policy" validate:"required"`
}

// EvaluateCheckIn runs the detection pipeline for one check-in and returns
// the decision. A policy without a session id inherits the event's.
//
// @Summary Evaluate a check-in
// @Tags CheckIns
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=detection.Decision}
// @Failure 400 {object} models.APIResponse "Invalid event or policy"
// @Router /checkins/evaluate [post]
func (h *Handler) EvaluateCheckIn(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, ok := decodeCheckInRequest(w, r)
	if !ok {
		return
	}

	req.applyRequestDefaults(r)

	decision, err := h.evaluator.EvaluateCheckIn(r.Context(), req.Event, req.Policy)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).
			Str("session_id", sanitizeLogValue(req.Event.SessionID)).
			Msg("Check-in rejected as invalid")
		respondDomainError(w, err)
		return
	}
	if decision.Violation != nil {
		h.invalidateStats()
	}

	respondSuccess(w, http.StatusOK, decision, start)
}

// CheckInAccepted is returned by the asynchronous intake endpoint.
type CheckInAccepted struct {
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
}

// SubmitCheckIn enqueues a check-in for asynchronous evaluation. The
// decision is not returned; violations it produces appear through the
// violation queries and the violation topic.
//
// @Summary Submit a check-in for asynchronous evaluation
// @Tags CheckIns
// @Accept json
// @Produce json
// @Success 202 {object} models.APIResponse{data=CheckInAccepted}
// @Failure 400 {object} models.APIResponse "Invalid request body"
// @Failure 503 {object} models.APIResponse "Event bus disabled"
// @Router /checkins [post]
func (h *Handler) SubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.submitter == nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Asynchronous check-in intake is disabled", nil)
		return
	}

	req, ok := decodeCheckInRequest(w, r)
	if !ok {
		return
	}
	req.applyRequestDefaults(r)

	id, err := h.submitter.SubmitCheckIn(r.Context(), req.Event, req.Policy)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("session_id", sanitizeLogValue(req.Event.SessionID)).
			Msg("Failed to enqueue check-in")
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Check-in could not be queued", nil)
		return
	}

	respondSuccess(w, http.StatusAccepted, CheckInAccepted{MessageID: id, SessionID: req.Event.SessionID}, start)
}

func decodeCheckInRequest(w http.ResponseWriter, r *http.Request) (*EvaluateCheckInRequest, bool) {
	var req EvaluateCheckInRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return nil, false
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return nil, false
	}
	return &req, true
}

// applyRequestDefaults fills fields the client may leave to the server.
func (req *EvaluateCheckInRequest) applyRequestDefaults(r *http.Request) {
	if req.Policy.SessionID == "" {
		req.Policy.SessionID = req.Event.SessionID
	}
	if req.Event.IPAddress == "" {
		req.Event.IPAddress = clientIP(r)
	}
	if req.Event.UserAgent == "" {
		req.Event.UserAgent = r.UserAgent()
	}
}

// clientIP returns the remote host without its port. chi's RealIP
// middleware has already applied X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
