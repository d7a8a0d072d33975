// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/attendguard/internal/middleware"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router over handler. A nil chiMw uses the default
// middleware configuration.
func NewRouter(handler *Handler, chiMw *ChiMiddleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: chiMw}
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to ALL routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Compression)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())

		r.Post("/checkins/evaluate", router.handler.EvaluateCheckIn)
		r.Post("/checkins", router.handler.SubmitCheckIn)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWrite())
			r.Post("/open", router.handler.OpenSession)
			r.Post("/close", router.handler.CloseSession)
		})

		r.Route("/detection/travel", func(r chi.Router) {
			r.Get("/", router.handler.TravelSettings)
			r.With(router.chiMiddleware.RateLimitWrite()).Put("/", router.handler.UpdateTravelSettings)
		})

		r.Route("/violations", func(r chi.Router) {
			r.Get("/", router.handler.ListViolations)
			r.Get("/stats", router.handler.ViolationStats)
			r.Get("/{id}", router.handler.GetViolation)
			r.Get("/{id}/reviews", router.handler.ReviewHistory)
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/{id}/transition", router.handler.TransitionViolation)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
