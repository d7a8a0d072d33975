// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/tomtom215/attendguard/internal/models"
	"github.com/tomtom215/attendguard/internal/risk"
)

const (
	healthHealthy  = "healthy"
	healthDegraded = "degraded"
)

// pingTimeout bounds database checks made by health probes.
const pingTimeout = 2 * time.Second

// Health reports database connectivity and the risk model lifecycle.
//
// A failed model load does not degrade health: scoring falls back to the
// heuristic, so the service keeps deciding check-ins.
//
// @Summary Get system health status
// @Tags Core
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.HealthStatus}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	dbConnected := h.pingDatabase(r.Context())

	modelState := string(risk.StateNotLoaded)
	modelEnabled := false
	if h.model != nil {
		modelState = string(h.model.State())
		modelEnabled = h.model.ModelEnabled()
	}

	activeSessions := 0
	if h.sessions != nil {
		activeSessions = h.sessions.ActiveSessions()
	}

	status := healthHealthy
	if !dbConnected {
		status = healthDegraded
	}

	var statsCache *models.CacheStatus
	if h.statsCache != nil {
		cs := h.statsCache.GetStats()
		statsCache = &models.CacheStatus{
			Hits:      cs.Hits,
			Misses:    cs.Misses,
			Evictions: cs.Evictions,
			Keys:      cs.TotalKeys,
			HitRate:   math.Round(h.statsCache.HitRate()*100) / 100,
		}
	}

	respondSuccess(w, http.StatusOK, models.HealthStatus{
		Status:            status,
		Version:           Version,
		DatabaseConnected: dbConnected,
		ModelEnabled:      modelEnabled,
		ModelState:        modelState,
		ActiveSessions:    activeSessions,
		Uptime:            time.Since(h.startTime).Seconds(),
		StatsCache:        statsCache,
	}, start)
}

// HealthLive is the liveness probe. It answers as long as the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady is the readiness probe. It fails while the database is unreachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.pingDatabase(r.Context()) {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Database is not reachable", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, time.Now())
}

func (h *Handler) pingDatabase(ctx context.Context) bool {
	if h.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.db.Ping(ctx) == nil
}
