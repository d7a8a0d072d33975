// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/attendguard/internal/geo"
)

// ImpossibleTravelConfig configures the impossible travel detector.
type ImpossibleTravelConfig struct {
	// MaxSpeedKmh is the plausible-travel ceiling (default: 150 km/h, fast road travel).
	MaxSpeedKmh float64 `json:"max_speed_kmh"`

	// LookbackMinutes bounds how old a previous check-in may be.
	LookbackMinutes int `json:"lookback_minutes"`

	// MinTimeDeltaSeconds skips pairs of check-ins closer together than this.
	MinTimeDeltaSeconds int `json:"min_time_delta_seconds"`
}

// DefaultImpossibleTravelConfig returns sensible defaults.
func DefaultImpossibleTravelConfig() ImpossibleTravelConfig {
	return ImpossibleTravelConfig{
		MaxSpeedKmh:         150,
		LookbackMinutes:     240,
		MinTimeDeltaSeconds: 0,
	}
}

// Lookback returns the configured look-back window.
func (c ImpossibleTravelConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackMinutes) * time.Minute
}

// MinTimeDelta returns the configured minimum gap between check-ins.
func (c ImpossibleTravelConfig) MinTimeDelta() time.Duration {
	return time.Duration(c.MinTimeDeltaSeconds) * time.Second
}

func (c ImpossibleTravelConfig) validate() error {
	if c.MaxSpeedKmh <= 0 || math.IsNaN(c.MaxSpeedKmh) {
		return fmt.Errorf("max_speed_kmh must be positive")
	}
	if c.LookbackMinutes <= 0 {
		return fmt.Errorf("lookback_minutes must be positive")
	}
	if c.MinTimeDeltaSeconds < 0 {
		return fmt.Errorf("min_time_delta_seconds cannot be negative")
	}
	return nil
}

// TravelSignal describes the movement since the previous check-in.
type TravelSignal struct {
	Fired bool `json:"fired"`

	// Previous is nil when no earlier check-in was considered.
	Previous       *Sighting `json:"previous,omitempty"`
	DistanceMeters float64   `json:"distance_meters"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	SpeedKmh       float64   `json:"speed_kmh"`

	// BearingDegrees is the heading from the previous check-in, [0, 360).
	BearingDegrees float64 `json:"bearing_degrees"`
}

// ImpossibleTravelDetector flags students whose consecutive check-ins imply
// movement faster than the plausible ceiling.
type ImpossibleTravelDetector struct {
	store  LastSeenStore
	config ImpossibleTravelConfig
	mu     sync.RWMutex
}

// NewImpossibleTravelDetector creates a detector over store with default settings.
func NewImpossibleTravelDetector(store LastSeenStore) *ImpossibleTravelDetector {
	return &ImpossibleTravelDetector{
		store:  store,
		config: DefaultImpossibleTravelConfig(),
	}
}

// Config returns the current configuration.
func (d *ImpossibleTravelDetector) Config() ImpossibleTravelConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// SetConfig replaces the configuration after validating it.
func (d *ImpossibleTravelDetector) SetConfig(config ImpossibleTravelConfig) error {
	if err := config.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	d.mu.Lock()
	d.config = config
	d.mu.Unlock()
	return nil
}

// Configure updates the configuration from JSON.
func (d *ImpossibleTravelDetector) Configure(config json.RawMessage) error {
	newConfig := d.Config()
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return d.SetConfig(newConfig)
}

// Check records the event as the student's latest sighting and compares it
// with the previous one. Ambiguous ordering is skipped, never flagged.
func (d *ImpossibleTravelDetector) Check(ctx context.Context, event *CheckInEvent) (TravelSignal, error) {
	config := d.Config()

	current := Sighting{
		SessionID: event.SessionID,
		Point:     event.Point(),
		Timestamp: event.Timestamp,
	}
	prev, err := d.store.Swap(ctx, event.StudentID, current)
	if err != nil {
		return TravelSignal{}, fmt.Errorf("failed to swap last sighting: %w", err)
	}
	if prev == nil {
		return TravelSignal{}, nil
	}

	// Clock skew or duplicate delivery.
	if !prev.Timestamp.Before(current.Timestamp) {
		return TravelSignal{}, nil
	}

	elapsed := current.Timestamp.Sub(prev.Timestamp)
	if elapsed > config.Lookback() || elapsed < config.MinTimeDelta() {
		return TravelSignal{}, nil
	}

	speed, err := geo.SpeedKmh(prev.Point, prev.Timestamp, current.Point, current.Timestamp)
	if errors.Is(err, geo.ErrInvalidInterval) {
		return TravelSignal{}, nil
	}
	if err != nil {
		return TravelSignal{}, err
	}

	return TravelSignal{
		Fired:          speed > config.MaxSpeedKmh,
		Previous:       prev,
		DistanceMeters: roundTo2Decimals(geo.HaversineDistanceMeters(prev.Point, current.Point)),
		ElapsedSeconds: roundTo2Decimals(elapsed.Seconds()),
		SpeedKmh:       roundTo2Decimals(speed),
		BearingDegrees: roundTo2Decimals(geo.InitialBearingDegrees(prev.Point, current.Point)),
	}, nil
}

// Prune drops sightings that can no longer fall inside the look-back window.
func (d *ImpossibleTravelDetector) Prune(ctx context.Context, now time.Time) (int, error) {
	return d.store.Prune(ctx, now.Add(-d.Config().Lookback()))
}

// roundTo2Decimals rounds a float to 2 decimal places.
func roundTo2Decimals(f float64) float64 {
	return math.Round(f*100) / 100
}
