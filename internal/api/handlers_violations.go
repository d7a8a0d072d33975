// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/attendguard/internal/cache"
	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/models"
)

const (
	defaultViolationLimit = 50
	maxViolationLimit     = 500
)

// ViolationQueryParams are the query-string filters of the violation listing.
type ViolationQueryParams struct {
	SessionID      string   `json:"session_id" validate:"omitempty,max=128"`
	StudentID      string   `json:"student_id" validate:"omitempty,max=128"`
	Types          []string `json:"type" validate:"omitempty,dive,violation_type"`
	Statuses       []string `json:"status" validate:"omitempty,dive,violation_status"`
	Limit          int      `json:"limit" validate:"min=1,max=500"`
	Offset         int      `json:"offset" validate:"min=0"`
	OrderBy        string   `json:"order_by" validate:"omitempty,oneof=created_at checked_in_at risk_score violation_type status"`
	OrderDirection string   `json:"order_direction" validate:"omitempty,oneof=asc desc"`
}

// ViolationPage is one page of the violation listing.
type ViolationPage struct {
	Violations []detection.Violation `json:"violations"`
	Pagination models.PaginationInfo `json:"pagination"`
}

// TransitionRequest is the body of POST /api/v1/violations/{id}/transition.
// Omitting review_notes keeps the notes already recorded.
type TransitionRequest struct {
	Status      string  `json:"status" validate:"required,violation_status"`
	ReviewedBy  string  `json:"reviewed_by" validate:"required,max=128"`
	ReviewNotes *string `json:"review_notes" validate:"omitempty,max=2000"`
}

// parseViolationFilter reads and validates the listing filters of r.
func parseViolationFilter(r *http.Request) (detection.ViolationFilter, *models.APIError) {
	q := r.URL.Query()
	params := ViolationQueryParams{
		SessionID:      strings.TrimSpace(q.Get("session_id")),
		StudentID:      strings.TrimSpace(q.Get("student_id")),
		Types:          parseCommaSeparated(q.Get("type")),
		Statuses:       parseCommaSeparated(q.Get("status")),
		Limit:          getIntParam(r, "limit", defaultViolationLimit),
		Offset:         getIntParam(r, "offset", 0),
		OrderBy:        q.Get("order_by"),
		OrderDirection: strings.ToLower(q.Get("order_direction")),
	}
	if apiErr := validateRequest(&params); apiErr != nil {
		return detection.ViolationFilter{}, apiErr
	}

	filter := detection.ViolationFilter{
		SessionID:      params.SessionID,
		StudentID:      params.StudentID,
		Limit:          params.Limit,
		Offset:         params.Offset,
		OrderBy:        params.OrderBy,
		OrderDirection: params.OrderDirection,
	}
	for _, t := range params.Types {
		filter.Types = append(filter.Types, detection.ViolationType(t))
	}
	for _, s := range params.Statuses {
		filter.Statuses = append(filter.Statuses, detection.ViolationStatus(s))
	}

	var err error
	if filter.MinRiskScore, err = getFloatParam(r, "min_risk_score"); err != nil {
		return filter, &models.APIError{Code: CodeValidation, Message: err.Error()}
	}
	if filter.StartDate, err = getTimeParam(r, "start_date"); err != nil {
		return filter, &models.APIError{Code: CodeValidation, Message: err.Error()}
	}
	if filter.EndDate, err = getTimeParam(r, "end_date"); err != nil {
		return filter, &models.APIError{Code: CodeValidation, Message: err.Error()}
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return filter, &models.APIError{Code: CodeValidation, Message: "end_date must not be before start_date"}
	}

	return filter, nil
}

// ListViolations returns violations matching the query filters, newest first by default.
//
// @Summary List violations
// @Tags Violations
// @Produce json
// @Param session_id query string false "Session ID"
// @Param student_id query string false "Student ID"
// @Param type query string false "Comma-separated violation types"
// @Param status query string false "Comma-separated review statuses"
// @Param min_risk_score query number false "Minimum risk score"
// @Param start_date query string false "RFC3339 lower bound on created_at"
// @Param end_date query string false "RFC3339 upper bound on created_at"
// @Param limit query int false "Page size (1-500)" default(50)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} models.APIResponse{data=ViolationPage}
// @Router /violations [get]
func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter, apiErr := parseViolationFilter(r)
	if apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	violations, err := h.violations.ListViolations(r.Context(), filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	total, err := h.violations.CountViolations(r.Context(), filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if violations == nil {
		violations = []detection.Violation{}
	}

	respondSuccess(w, http.StatusOK, ViolationPage{
		Violations: violations,
		Pagination: models.PaginationInfo{
			Limit:      filter.Limit,
			Offset:     filter.Offset,
			HasMore:    filter.Offset+len(violations) < total,
			TotalCount: total,
		},
	}, start)
}

// ViolationStats returns per-type and per-status counts for the query filters.
func (h *Handler) ViolationStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter, apiErr := parseViolationFilter(r)
	if apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	key := cache.GenerateKey("violation_stats", filter)
	if h.statsCache != nil {
		if cached, ok := h.statsCache.Get(key); ok {
			respondSuccess(w, http.StatusOK, cached, start)
			return
		}
	}

	stats, err := h.violations.ViolationStats(r.Context(), filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if h.statsCache != nil {
		h.statsCache.Set(key, stats)
	}

	respondSuccess(w, http.StatusOK, stats, start)
}

// GetViolation returns a single violation.
func (h *Handler) GetViolation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	v, err := h.violations.GetViolation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, v, start)
}

// ReviewHistory returns the review audit trail of a violation, oldest first.
func (h *Handler) ReviewHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	records, err := h.violations.ReviewHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if records == nil {
		records = []detection.ReviewRecord{}
	}

	respondSuccess(w, http.StatusOK, records, start)
}

// TransitionViolation moves a violation to a new review status.
//
// @Summary Review a violation
// @Tags Violations
// @Accept json
// @Produce json
// @Param id path string true "Violation ID"
// @Success 200 {object} models.APIResponse{data=detection.Violation}
// @Failure 400 {object} models.APIResponse "Missing reviewer or unknown status"
// @Failure 404 {object} models.APIResponse "Violation not found"
// @Failure 409 {object} models.APIResponse "Transition not allowed from the current status"
// @Router /violations/{id}/transition [post]
func (h *Handler) TransitionViolation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req TransitionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	v, err := h.reviews.Transition(r.Context(), chi.URLParam(r, "id"),
		detection.ViolationStatus(req.Status), req.ReviewedBy, req.ReviewNotes)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.invalidateStats()
	respondSuccess(w, http.StatusOK, v, start)
}
