// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/attendguard/config.yaml",
	"/etc/attendguard/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultPrecedence is the default ordering of violation types, highest severity first.
var DefaultPrecedence = []string{
	"multiple_prns_same_device",
	"impossible_travel",
	"duplicate_device",
	"duplicate_prn",
	"gps_spoofing_suspected",
	"outside_geofence",
	"low_gps_accuracy",
	"ml_high_risk",
}

// DefaultRuleWeights is the default severity of each rule-backed violation type.
var DefaultRuleWeights = map[string]float64{
	"multiple_prns_same_device": 90,
	"impossible_travel":         85,
	"duplicate_device":          75,
	"duplicate_prn":             70,
	"outside_geofence":          60,
	"low_gps_accuracy":          30,
}

func defaultWeights() map[string]float64 {
	out := make(map[string]float64, len(DefaultRuleWeights))
	for k, v := range DefaultRuleWeights {
		out[k] = v
	}
	return out
}

// defaultConfig returns a Config with every default applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8470,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			StatsCacheTTL:   10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/attendguard.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		History: HistoryConfig{
			Backend:   "memory",
			BadgerDir: "/data/lastseen",
		},
		Detection: DetectionConfig{
			MultiplePRNsThreshold: 2,
			WindowIdleTTL:         24 * time.Hour,
			SweepInterval:         5 * time.Minute,
			TravelLookback:        4 * time.Hour,
			MaxSpeedKmh:           150,
			MinTimeDelta:          0,
			GPSSpoofingThreshold:  80,
			MLHighRiskThreshold:   60,
			Blend:                 "average",
			Precedence:            append([]string(nil), DefaultPrecedence...),
			Weights:               defaultWeights(),
			ExtraSignalBonus:      5,
		},
		Risk: RiskConfig{
			ModelEnabled:            false,
			ModelCommand:            "",
			ModelArgs:               []string{},
			ModelTimeout:            2 * time.Second,
			LoadTimeout:             10 * time.Second,
			LoadRetryBackoff:        0,
			BreakerFailureThreshold: 5,
			BreakerOpenTimeout:      30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:            true,
			BufferSize:         256,
			CheckInTopic:       "attendance.checkin",
			ViolationTopic:     "attendance.violation",
			RouterCloseTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	// HTTP_PORT -> server.port, RISK_MODEL_TIMEOUT -> risk.model_timeout
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, otherwise the first
// existing entry of DefaultConfigPaths, otherwise "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are the keys that accept comma-separated env values.
var sliceConfigPaths = []string{
	"detection.precedence",
	"risk.model_args",
	"security.cors_origins",
}

// processSliceFields splits comma-separated string values into slices.
// Values that came from YAML are already slices and are left untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"stats_cache_ttl":       "server.stats_cache_ttl",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Last-seen history
	"history_backend":    "history.backend",
	"history_badger_dir": "history.badger_dir",

	// Detection
	"detection_multiple_prns_threshold": "detection.multiple_prns_threshold",
	"detection_window_idle_ttl":         "detection.window_idle_ttl",
	"detection_sweep_interval":          "detection.sweep_interval",
	"detection_travel_lookback":         "detection.travel_lookback",
	"detection_max_speed_kmh":           "detection.max_speed_kmh",
	"detection_min_time_delta":          "detection.min_time_delta",
	"detection_gps_spoofing_threshold":  "detection.gps_spoofing_threshold",
	"detection_ml_high_risk_threshold":  "detection.ml_high_risk_threshold",
	"detection_blend":                   "detection.blend",
	"detection_precedence":              "detection.precedence",
	"detection_extra_signal_bonus":      "detection.extra_signal_bonus",

	"detection_weight_multiple_prns_same_device": "detection.weights.multiple_prns_same_device",
	"detection_weight_impossible_travel":         "detection.weights.impossible_travel",
	"detection_weight_duplicate_device":          "detection.weights.duplicate_device",
	"detection_weight_duplicate_prn":             "detection.weights.duplicate_prn",
	"detection_weight_outside_geofence":          "detection.weights.outside_geofence",
	"detection_weight_low_gps_accuracy":          "detection.weights.low_gps_accuracy",

	// Risk model
	"risk_model_enabled":             "risk.model_enabled",
	"risk_model_command":             "risk.model_command",
	"risk_model_args":                "risk.model_args",
	"risk_model_timeout":             "risk.model_timeout",
	"risk_load_timeout":              "risk.load_timeout",
	"risk_load_retry_backoff":        "risk.load_retry_backoff",
	"risk_breaker_failure_threshold": "risk.breaker_failure_threshold",
	"risk_breaker_open_timeout":      "risk.breaker_open_timeout",

	// Events
	"events_enabled":              "events.enabled",
	"events_buffer_size":          "events.buffer_size",
	"events_checkin_topic":        "events.checkin_topic",
	"events_violation_topic":      "events.violation_topic",
	"events_router_close_timeout": "events.router_close_timeout",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped so unrelated environment
// variables never leak into the configuration.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
