// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package models

import (
	"time"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse represents a standardized API response wrapper used by all HTTP endpoints.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"accept": false, "risk_score": 57.5, "violation": {...}},
//	  "metadata": {"timestamp": "2026-03-04T09:00:00Z", "query_time_ms": 3}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "INVALID_TRANSITION",
//	    "message": "violation cannot move from cleared to flagged"
//	  },
//	  "metadata": {"timestamp": "2026-03-04T09:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError represents an error response with structured error details.
//
// Fields:
//   - Code: Machine-readable error code (e.g., "VALIDATION_ERROR", "NOT_FOUND")
//   - Message: Human-readable error message
//   - Details: Additional context (field names, constraints, etc.)
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PaginationInfo describes one offset page of a listing.
type PaginationInfo struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
	TotalCount int  `json:"total_count"`
}

// HealthStatus is the payload of the health endpoint.
type HealthStatus struct {
	Status            string  `json:"status"` // healthy, degraded
	Version           string  `json:"version"`
	DatabaseConnected bool    `json:"database_connected"`
	ModelEnabled      bool    `json:"model_enabled"`
	ModelState        string  `json:"model_state"`
	ActiveSessions    int     `json:"active_sessions"`
	Uptime            float64 `json:"uptime_seconds"`

	// StatsCache is omitted when the stats cache is disabled.
	StatsCache *CacheStatus `json:"stats_cache,omitempty"`
}

// CacheStatus reports the counters of a response cache.
type CacheStatus struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Keys      int64   `json:"keys"`
	HitRate   float64 `json:"hit_rate_percent"`
}
