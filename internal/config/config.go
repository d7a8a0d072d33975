// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every setting
//  2. Config File: optional YAML file (config.yaml, or CONFIG_PATH)
//  3. Environment Variables: explicit mappings override everything
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	History   HistoryConfig   `koanf:"history"`
	Detection DetectionConfig `koanf:"detection"`
	Risk      RiskConfig      `koanf:"risk"`
	Events    EventsConfig    `koanf:"events"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// StatsCacheTTL is how long violation stats responses are cached.
	// 0 disables the cache.
	StatsCacheTTL time.Duration `koanf:"stats_cache_ttl"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the DuckDB violation store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" keeps everything in RAM.
	Path string `koanf:"path"`

	// MaxMemory is passed to DuckDB as its memory_limit setting.
	MaxMemory string `koanf:"max_memory"`

	// Threads limits DuckDB worker threads (0 = DuckDB default).
	Threads int `koanf:"threads"`
}

// HistoryConfig selects the backend for per-student last check-in lookups.
type HistoryConfig struct {
	// Backend is "memory" or "badger".
	Backend string `koanf:"backend"`

	// BadgerDir is the Badger data directory when Backend is "badger".
	BadgerDir string `koanf:"badger_dir"`
}

// DetectionConfig holds the rule thresholds and the aggregation policy.
type DetectionConfig struct {
	// MultiplePRNsThreshold is the number of distinct identifiers a single
	// device may carry in one session before multiple_prns_same_device fires.
	MultiplePRNsThreshold int `koanf:"multiple_prns_threshold"`

	// WindowIdleTTL bounds windows for sessions that were never given an expiry.
	WindowIdleTTL time.Duration `koanf:"window_idle_ttl"`

	// SweepInterval is how often expired session windows and stale last-seen
	// entries are discarded.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// TravelLookback bounds how far back a previous check-in is considered.
	TravelLookback time.Duration `koanf:"travel_lookback"`

	// MaxSpeedKmh is the plausible-travel ceiling.
	MaxSpeedKmh float64 `koanf:"max_speed_kmh"`

	// MinTimeDelta skips travel checks for check-ins closer together than this.
	MinTimeDelta time.Duration `koanf:"min_time_delta"`

	// GPSSpoofingThreshold is the model-side score at or above which
	// gps_spoofing_suspected is raised.
	GPSSpoofingThreshold float64 `koanf:"gps_spoofing_threshold"`

	// MLHighRiskThreshold is the composite score at or above which
	// ml_high_risk is raised when no specific rule fired.
	MLHighRiskThreshold float64 `koanf:"ml_high_risk_threshold"`

	// Blend combines the rule score with the model-side score:
	// average, max, rules or model.
	Blend string `koanf:"blend"`

	// Precedence orders violation types, highest severity first.
	Precedence []string `koanf:"precedence"`

	// Weights is the 0-100 severity of each rule signal, keyed by violation
	// type. Types left out keep their default weight.
	Weights map[string]float64 `koanf:"weights"`

	// ExtraSignalBonus is added to the rule score per additional fired rule.
	ExtraSignalBonus float64 `koanf:"extra_signal_bonus"`
}

// RiskConfig configures the external risk model and its failure handling.
type RiskConfig struct {
	// ModelEnabled turns on the model-backed scoring path.
	ModelEnabled bool `koanf:"model_enabled"`

	// ModelCommand is the predictive executable. The feature vector is
	// passed as the final argument and a probability is read from stdout.
	ModelCommand string `koanf:"model_command"`

	// ModelArgs are extra arguments placed before the feature vector.
	ModelArgs []string `koanf:"model_args"`

	// ModelTimeout bounds a single prediction.
	ModelTimeout time.Duration `koanf:"model_timeout"`

	// LoadTimeout bounds the initial model load.
	LoadTimeout time.Duration `koanf:"load_timeout"`

	// LoadRetryBackoff enables a new load attempt after a failed one once
	// this much time has passed. 0 keeps a failed load for the process lifetime.
	LoadRetryBackoff time.Duration `koanf:"load_retry_backoff"`

	// BreakerFailureThreshold is the number of consecutive prediction
	// failures that open the circuit.
	BreakerFailureThreshold uint32 `koanf:"breaker_failure_threshold"`

	// BreakerOpenTimeout is how long the circuit stays open before probing.
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// EventsConfig configures the in-process event bus.
type EventsConfig struct {
	Enabled        bool   `koanf:"enabled"`
	BufferSize     int64  `koanf:"buffer_size"`
	CheckInTopic   string `koanf:"checkin_topic"`
	ViolationTopic string `koanf:"violation_topic"`

	// RouterCloseTimeout bounds graceful shutdown of the message router.
	RouterCloseTimeout time.Duration `koanf:"router_close_timeout"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}
