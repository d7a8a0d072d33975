// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/attendguard/internal/cache"
	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/models"
	"github.com/tomtom215/attendguard/internal/risk"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name        string
		db          DatabasePinger
		model       ModelStatus
		wantStatus  string
		wantDB      bool
		wantState   string
		wantEnabled bool
	}{
		{
			name:       "healthy with ready model",
			db:         fakePinger{},
			model:      fakeModel{state: risk.StateReady, enabled: true},
			wantStatus: healthHealthy, wantDB: true, wantState: "ready", wantEnabled: true,
		},
		{
			name:       "failed model load stays healthy",
			db:         fakePinger{},
			model:      fakeModel{state: risk.StateFailed, enabled: true},
			wantStatus: healthHealthy, wantDB: true, wantState: "failed", wantEnabled: true,
		},
		{
			name:       "database down degrades",
			db:         fakePinger{err: errBoom},
			model:      fakeModel{state: risk.StateNotLoaded},
			wantStatus: healthDegraded, wantDB: false, wantState: "not_loaded",
		},
		{
			name:       "no collaborators wired",
			wantStatus: healthDegraded, wantDB: false, wantState: "not_loaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _, _, _ := testDeps()
			deps.Database = tt.db
			deps.Model = tt.model
			h := newTestRouter(deps)

			rec, env := doRequest(t, h, http.MethodGet, "/api/v1/health", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var health models.HealthStatus
			decodeData(t, env, &health)
			if health.Status != tt.wantStatus || health.DatabaseConnected != tt.wantDB {
				t.Errorf("health = %+v", health)
			}
			if health.ModelState != tt.wantState || health.ModelEnabled != tt.wantEnabled {
				t.Errorf("model = %s/%v, want %s/%v", health.ModelState, health.ModelEnabled, tt.wantState, tt.wantEnabled)
			}
			if health.Version != Version {
				t.Errorf("version = %q, want %q", health.Version, Version)
			}
		})
	}
}

func TestHealth_StatsCache(t *testing.T) {
	deps, _, viols, _ := testDeps()
	h := newTestRouter(deps)

	_, env := doRequest(t, h, http.MethodGet, "/api/v1/health", nil)
	var health models.HealthStatus
	decodeData(t, env, &health)
	if health.StatsCache != nil {
		t.Errorf("StatsCache = %+v, want omitted when caching is disabled", health.StatsCache)
	}

	viols.stats = &detection.ViolationStats{Total: 2}
	deps.StatsCache = cache.New(time.Minute, 0)
	h = newTestRouter(deps)
	for i := 0; i < 2; i++ {
		doRequest(t, h, http.MethodGet, "/api/v1/violations/stats", nil)
	}

	_, env = doRequest(t, h, http.MethodGet, "/api/v1/health", nil)
	health = models.HealthStatus{}
	decodeData(t, env, &health)
	want := models.CacheStatus{Hits: 1, Misses: 1, Keys: 1, HitRate: 50}
	if health.StatsCache == nil || *health.StatsCache != want {
		t.Errorf("StatsCache = %+v, want %+v", health.StatsCache, want)
	}
}

func TestHealthProbes(t *testing.T) {
	deps, _, _, _ := testDeps()
	h := newTestRouter(deps)

	if rec, _ := doRequest(t, h, http.MethodGet, "/api/v1/health/live", nil); rec.Code != http.StatusOK {
		t.Errorf("live = %d, want 200", rec.Code)
	}
	if rec, _ := doRequest(t, h, http.MethodGet, "/api/v1/health/ready", nil); rec.Code != http.StatusOK {
		t.Errorf("ready = %d, want 200", rec.Code)
	}

	deps.Database = fakePinger{err: errBoom}
	h = newTestRouter(deps)
	rec, env := doRequest(t, h, http.MethodGet, "/api/v1/health/ready", nil)
	expectError(t, rec, env, http.StatusServiceUnavailable, CodeUnavailable)

	if rec, _ := doRequest(t, h, http.MethodGet, "/api/v1/health/live", nil); rec.Code != http.StatusOK {
		t.Errorf("live with database down = %d, want 200", rec.Code)
	}
}
