// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/attendguard/internal/logging"
)

// OpenSessionRequest is the body of POST /api/v1/sessions/{id}/open.
// Omitted bounds leave that side of the window open.
type OpenSessionRequest struct {
	StartsAt  *time.Time `json:"starts_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// SessionWindowResponse describes a session window after a lifecycle call.
type SessionWindowResponse struct {
	SessionID string     `json:"session_id"`
	Open      bool       `json:"open"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// OpenSession creates or re-bounds the device window of a session.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := chi.URLParam(r, "id")

	var req OpenSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSONBody(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
			return
		}
	}

	var startsAt, expiresAt time.Time
	if req.StartsAt != nil {
		startsAt = req.StartsAt.UTC()
	}
	if req.ExpiresAt != nil {
		expiresAt = req.ExpiresAt.UTC()
	}

	if err := h.sessions.OpenSession(sessionID, startsAt, expiresAt); err != nil {
		respondDomainError(w, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("session_id", sanitizeLogValue(sessionID)).Msg("Session window opened")
	respondSuccess(w, http.StatusOK, SessionWindowResponse{
		SessionID: sessionID,
		Open:      true,
		StartsAt:  req.StartsAt,
		ExpiresAt: req.ExpiresAt,
	}, start)
}

// CloseSession discards the device window of a session.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := chi.URLParam(r, "id")

	if !h.sessions.CloseSession(sessionID) {
		respondDomainError(w, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID))
		return
	}

	logging.Ctx(r.Context()).Info().Str("session_id", sanitizeLogValue(sessionID)).Msg("Session window closed")
	respondSuccess(w, http.StatusOK, SessionWindowResponse{SessionID: sessionID, Open: false}, start)
}
