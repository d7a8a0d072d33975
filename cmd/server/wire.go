// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/attendguard/internal/api"
	"github.com/tomtom215/attendguard/internal/cache"
	"github.com/tomtom215/attendguard/internal/config"
	"github.com/tomtom215/attendguard/internal/database"
	"github.com/tomtom215/attendguard/internal/detection"
	"github.com/tomtom215/attendguard/internal/eventprocessor"
	"github.com/tomtom215/attendguard/internal/logging"
	"github.com/tomtom215/attendguard/internal/risk"
	"github.com/tomtom215/attendguard/internal/supervisor/services"
)

// components holds everything main wires together.
type components struct {
	db        *database.DB
	store     *detection.DuckDBStore
	lastSeen  detection.LastSeenStore
	scorer    *risk.Scorer
	engine    *detection.Engine
	bus       *gochannel.GoChannel
	submitter *eventprocessor.CheckInPublisher
	handler   *eventprocessor.CheckInHandler
	events    eventprocessor.Config
	closers   []namedCloser
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// close releases resources in reverse order of acquisition.
func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		nc := c.closers[i]
		if err := nc.closer.Close(); err != nil {
			logging.Error().Err(err).Str("resource", nc.name).Msg("Error during shutdown")
		}
	}
}

func (c *components) track(name string, closer io.Closer) {
	c.closers = append(c.closers, namedCloser{name: name, closer: closer})
}

// buildComponents opens storage and constructs the detection pipeline.
// On error everything opened so far is closed.
func buildComponents(ctx context.Context, cfg *config.Config) (c *components, err error) {
	c = &components{}
	defer func() {
		if err != nil {
			c.close()
		}
	}()

	c.db, err = database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	c.track("duckdb", c.db)

	c.store = detection.NewDuckDBStore(c.db.Conn())
	if err = c.store.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("initialize violation schema: %w", err)
	}
	logging.Info().Str("path", c.db.Path()).Msg("Violation store ready")

	c.lastSeen, err = openLastSeen(cfg, c)
	if err != nil {
		return nil, err
	}

	c.scorer = newScorer(cfg.Risk)

	tracker := detection.NewDeviceIdentityTracker(detection.DeviceTrackerConfig{
		MultiplePRNsThreshold: cfg.Detection.MultiplePRNsThreshold,
		IdleTTL:               cfg.Detection.WindowIdleTTL,
	})

	travel := detection.NewImpossibleTravelDetector(c.lastSeen)
	if err = travel.SetConfig(detection.ImpossibleTravelConfig{
		MaxSpeedKmh:         cfg.Detection.MaxSpeedKmh,
		LookbackMinutes:     int(cfg.Detection.TravelLookback / time.Minute),
		MinTimeDeltaSeconds: int(cfg.Detection.MinTimeDelta / time.Second),
	}); err != nil {
		return nil, fmt.Errorf("configure impossible travel: %w", err)
	}

	aggregator, err := newAggregator(cfg.Detection)
	if err != nil {
		return nil, err
	}

	c.engine = detection.NewEngine(tracker, travel, c.scorer, aggregator, c.store)

	if cfg.Events.Enabled {
		c.events = eventprocessor.ConfigFromEvents(cfg.Events)
		c.bus = eventprocessor.NewBus(c.events, nil)
		c.track("event bus", c.bus)

		c.engine.SetPublisher(eventprocessor.NewViolationPublisher(c.bus, c.events.ViolationTopic))
		c.submitter = eventprocessor.NewCheckInPublisher(c.bus, c.events.CheckInTopic)
		c.handler, err = eventprocessor.NewCheckInHandler(c.engine, c.events.CheckInTopic, nil)
		if err != nil {
			return nil, fmt.Errorf("create check-in handler: %w", err)
		}
		logging.Info().
			Str("checkin_topic", c.events.CheckInTopic).
			Str("violation_topic", c.events.ViolationTopic).
			Msg("Event bus enabled")
	}

	return c, nil
}

func openLastSeen(cfg *config.Config, c *components) (detection.LastSeenStore, error) {
	if cfg.History.Backend != "badger" {
		logging.Info().Msg("Last-seen history kept in memory")
		return detection.NewMemoryLastSeenStore(), nil
	}
	store, err := detection.OpenBadgerLastSeenStore(cfg.History.BadgerDir, cfg.Detection.TravelLookback)
	if err != nil {
		return nil, fmt.Errorf("open last-seen history: %w", err)
	}
	c.track("badger", store)
	logging.Info().Str("dir", cfg.History.BadgerDir).Msg("Last-seen history stored in Badger")
	return store, nil
}

func newScorer(rc config.RiskConfig) *risk.Scorer {
	var loader risk.Loader
	if rc.ModelEnabled {
		loader = risk.NewProcessLoader(rc.ModelCommand, rc.ModelArgs)
		logging.Info().Str("command", rc.ModelCommand).Msg("Risk model enabled, loading on first check-in")
	} else {
		logging.Info().Msg("Risk model disabled, heuristic scoring only")
	}
	return risk.NewScorer(risk.Config{
		ModelEnabled:            rc.ModelEnabled,
		ModelTimeout:            rc.ModelTimeout,
		LoadTimeout:             rc.LoadTimeout,
		LoadRetryBackoff:        rc.LoadRetryBackoff,
		BreakerFailureThreshold: rc.BreakerFailureThreshold,
		BreakerOpenTimeout:      rc.BreakerOpenTimeout,
	}, loader)
}

func newAggregator(dc config.DetectionConfig) (*detection.Aggregator, error) {
	blend, err := detection.ParseBlend(dc.Blend)
	if err != nil {
		return nil, fmt.Errorf("configure aggregator: %w", err)
	}
	precedence := make([]detection.ViolationType, 0, len(dc.Precedence))
	for _, name := range dc.Precedence {
		precedence = append(precedence, detection.ViolationType(name))
	}

	ac := detection.DefaultAggregatorConfig()
	ac.Blend = blend
	ac.GPSSpoofingThreshold = dc.GPSSpoofingThreshold
	ac.MLHighRiskThreshold = dc.MLHighRiskThreshold
	ac.Precedence = precedence
	for name, w := range dc.Weights {
		ac.Weights[detection.ViolationType(name)] = w
	}
	ac.ExtraSignalBonus = dc.ExtraSignalBonus
	return detection.NewAggregator(ac), nil
}

// newHTTPServer builds the API server.
func newHTTPServer(cfg *config.Config, c *components) *http.Server {
	deps := api.Dependencies{
		Evaluator:  c.engine,
		Sessions:   c.engine.Tracker(),
		Violations: c.store,
		Reviews:    detection.NewReviewWorkflow(c.store),
		Travel:     c.engine.Travel(),
		Model:      c.scorer,
		Database:   c.db,
	}
	if cfg.Server.StatsCacheTTL > 0 {
		deps.StatsCache = cache.New(cfg.Server.StatsCacheTTL, cache.DefaultMaxEntries)
	}
	if c.submitter != nil {
		deps.Submitter = c.submitter
	}

	router := api.NewRouter(api.NewHandler(deps), api.NewChiMiddlewareFromSecurity(cfg.Security))
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * cfg.Server.WriteTimeout,
	}
}

// eventRouterFactory returns a constructor for the check-in consumer router.
func eventRouterFactory(c *components) func() (services.EventRouter, error) {
	return func() (services.EventRouter, error) {
		router, err := eventprocessor.NewRouter(c.events.CloseTimeout, nil)
		if err != nil {
			return nil, err
		}
		router.AddConsumerHandler("checkin-evaluator", c.events.CheckInTopic, c.bus, c.handler.Handle)
		return router, nil
	}
}
