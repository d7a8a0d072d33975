// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/attendguard/internal/logging"
)

// TravelSettings returns the impossible-travel thresholds in effect.
//
// @Summary Get impossible-travel settings
// @Tags Detection
// @Produce json
// @Success 200 {object} models.APIResponse{data=detection.ImpossibleTravelConfig}
// @Router /detection/travel [get]
func (h *Handler) TravelSettings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.travel == nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Travel settings are not available", nil)
		return
	}
	respondSuccess(w, http.StatusOK, h.travel.Config(), start)
}

// UpdateTravelSettings merges a partial JSON object into the thresholds.
// Fields left out keep their current value; an invalid result is rejected
// and the previous settings stay in effect.
//
// @Summary Update impossible-travel settings
// @Tags Detection
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=detection.ImpossibleTravelConfig}
// @Failure 400 {object} models.APIResponse
// @Router /detection/travel [put]
func (h *Handler) UpdateTravelSettings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.travel == nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Travel settings are not available", nil)
		return
	}

	var raw json.RawMessage
	if err := decodeJSONBody(w, r, &raw); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	if err := h.travel.Configure(raw); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	updated := h.travel.Config()
	logging.Ctx(r.Context()).Info().
		Float64("max_speed_kmh", updated.MaxSpeedKmh).
		Int("lookback_minutes", updated.LookbackMinutes).
		Int("min_time_delta_seconds", updated.MinTimeDeltaSeconds).
		Msg("Impossible travel settings updated")
	respondSuccess(w, http.StatusOK, updated, start)
}
