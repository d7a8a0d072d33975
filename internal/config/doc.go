// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

/*
Package config provides layered configuration loading for AttendGuard.

Configuration is assembled with Koanf v2 from three layers, later layers
overriding earlier ones:

 1. Defaults (defaultConfig)
 2. Optional YAML file: CONFIG_PATH, ./config.yaml, /etc/attendguard/config.yaml
 3. Environment variables with explicit name mappings (unknown variables are ignored)

# Example config.yaml

	server:
	  port: 8470
	detection:
	  max_speed_kmh: 120
	  blend: max
	  extra_signal_bonus: 10
	  weights:
	    outside_geofence: 40
	  precedence:
	    - multiple_prns_same_device
	    - duplicate_device
	    - impossible_travel
	risk:
	  model_enabled: true
	  model_command: /opt/models/proxy-risk
	  model_timeout: 1500ms

# Environment Variables

	HTTP_PORT, DUCKDB_PATH, HISTORY_BACKEND, HISTORY_BADGER_DIR
	DETECTION_MAX_SPEED_KMH, DETECTION_TRAVEL_LOOKBACK, DETECTION_BLEND,
	DETECTION_PRECEDENCE (comma-separated), DETECTION_EXTRA_SIGNAL_BONUS,
	DETECTION_WEIGHT_<VIOLATION_TYPE> (e.g. DETECTION_WEIGHT_OUTSIDE_GEOFENCE)
	RISK_MODEL_ENABLED, RISK_MODEL_COMMAND, RISK_MODEL_TIMEOUT, RISK_LOAD_RETRY_BACKOFF
	EVENTS_ENABLED, CORS_ORIGINS, RATE_LIMIT_REQUESTS, LOG_LEVEL, LOG_FORMAT

Load validates the result and returns an error describing the first invalid
setting.
*/
package config
