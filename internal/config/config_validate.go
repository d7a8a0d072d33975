// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateRisk(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Server.StatsCacheTTL < 0 {
		return fmt.Errorf("STATS_CACHE_TTL cannot be negative, got %s", c.Server.StatsCacheTTL)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS cannot be negative, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateHistory() error {
	switch c.History.Backend {
	case "memory":
		return nil
	case "badger":
		if strings.TrimSpace(c.History.BadgerDir) == "" {
			return fmt.Errorf("HISTORY_BADGER_DIR is required when HISTORY_BACKEND=badger")
		}
		return nil
	default:
		return fmt.Errorf("HISTORY_BACKEND must be 'memory' or 'badger', got %q", c.History.Backend)
	}
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if d.MultiplePRNsThreshold < 1 {
		return fmt.Errorf("DETECTION_MULTIPLE_PRNS_THRESHOLD must be at least 1, got %d", d.MultiplePRNsThreshold)
	}
	if d.MaxSpeedKmh <= 0 {
		return fmt.Errorf("DETECTION_MAX_SPEED_KMH must be positive, got %v", d.MaxSpeedKmh)
	}
	// The travel detector works in whole minutes and seconds.
	if d.TravelLookback < time.Minute || d.TravelLookback%time.Minute != 0 {
		return fmt.Errorf("DETECTION_TRAVEL_LOOKBACK must be a positive whole number of minutes, got %s", d.TravelLookback)
	}
	if d.MinTimeDelta < 0 {
		return fmt.Errorf("DETECTION_MIN_TIME_DELTA cannot be negative, got %s", d.MinTimeDelta)
	}
	if d.MinTimeDelta%time.Second != 0 {
		return fmt.Errorf("DETECTION_MIN_TIME_DELTA must be a whole number of seconds, got %s", d.MinTimeDelta)
	}
	if d.SweepInterval <= 0 {
		return fmt.Errorf("DETECTION_SWEEP_INTERVAL must be positive, got %s", d.SweepInterval)
	}
	if d.WindowIdleTTL <= 0 {
		return fmt.Errorf("DETECTION_WINDOW_IDLE_TTL must be positive, got %s", d.WindowIdleTTL)
	}
	if d.GPSSpoofingThreshold < 0 || d.GPSSpoofingThreshold > 100 {
		return fmt.Errorf("DETECTION_GPS_SPOOFING_THRESHOLD must be within [0, 100], got %v", d.GPSSpoofingThreshold)
	}
	if d.MLHighRiskThreshold < 0 || d.MLHighRiskThreshold > 100 {
		return fmt.Errorf("DETECTION_ML_HIGH_RISK_THRESHOLD must be within [0, 100], got %v", d.MLHighRiskThreshold)
	}
	switch d.Blend {
	case "average", "max", "rules", "model":
	default:
		return fmt.Errorf("DETECTION_BLEND must be one of average, max, rules, model, got %q", d.Blend)
	}

	for name, w := range d.Weights {
		if _, ok := DefaultRuleWeights[name]; !ok {
			return fmt.Errorf("detection.weights has no rule named %q", name)
		}
		if w < 0 || w > 100 {
			return fmt.Errorf("detection weight for %s must be within [0, 100], got %v", name, w)
		}
	}
	if d.ExtraSignalBonus < 0 || d.ExtraSignalBonus > 100 {
		return fmt.Errorf("DETECTION_EXTRA_SIGNAL_BONUS must be within [0, 100], got %v", d.ExtraSignalBonus)
	}

	known := make(map[string]bool, len(DefaultPrecedence))
	for _, name := range DefaultPrecedence {
		known[name] = true
	}
	seen := make(map[string]bool, len(d.Precedence))
	for _, name := range d.Precedence {
		if !known[name] {
			return fmt.Errorf("DETECTION_PRECEDENCE contains unknown violation type %q", name)
		}
		if seen[name] {
			return fmt.Errorf("DETECTION_PRECEDENCE lists %q more than once", name)
		}
		seen[name] = true
	}
	return nil
}

func (c *Config) validateRisk() error {
	r := c.Risk
	if r.ModelEnabled && strings.TrimSpace(r.ModelCommand) == "" {
		return fmt.Errorf("RISK_MODEL_COMMAND is required when RISK_MODEL_ENABLED=true")
	}
	if r.ModelTimeout <= 0 {
		return fmt.Errorf("RISK_MODEL_TIMEOUT must be positive, got %s", r.ModelTimeout)
	}
	if r.LoadTimeout <= 0 {
		return fmt.Errorf("RISK_LOAD_TIMEOUT must be positive, got %s", r.LoadTimeout)
	}
	if r.LoadRetryBackoff < 0 {
		return fmt.Errorf("RISK_LOAD_RETRY_BACKOFF cannot be negative, got %s", r.LoadRetryBackoff)
	}
	if r.BreakerFailureThreshold == 0 {
		return fmt.Errorf("RISK_BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	if r.BreakerOpenTimeout <= 0 {
		return fmt.Errorf("RISK_BREAKER_OPEN_TIMEOUT must be positive, got %s", r.BreakerOpenTimeout)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.BufferSize < 0 {
		return fmt.Errorf("EVENTS_BUFFER_SIZE cannot be negative, got %d", c.Events.BufferSize)
	}
	if c.Events.CheckInTopic == "" || c.Events.ViolationTopic == "" {
		return fmt.Errorf("EVENTS_CHECKIN_TOPIC and EVENTS_VIOLATION_TOPIC are required when events are enabled")
	}
	if c.Events.CheckInTopic == c.Events.ViolationTopic {
		return fmt.Errorf("check-in and violation topics must differ, both are %q", c.Events.CheckInTopic)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.Security.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}
}
