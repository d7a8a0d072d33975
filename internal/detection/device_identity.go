// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/attendguard/internal/logging"
	"github.com/tomtom215/attendguard/internal/metrics"
)

// DeviceTrackerConfig configures the device/identity duplicate tracker.
type DeviceTrackerConfig struct {
	// MultiplePRNsThreshold is the number of distinct identifiers a device may
	// carry before multiple_prns_same_device fires.
	MultiplePRNsThreshold int `json:"multiple_prns_threshold"`

	// IdleTTL discards windows without an expiry after this much inactivity.
	IdleTTL time.Duration `json:"idle_ttl"`
}

// DefaultDeviceTrackerConfig returns sensible defaults.
func DefaultDeviceTrackerConfig() DeviceTrackerConfig {
	return DeviceTrackerConfig{
		MultiplePRNsThreshold: 2,
		IdleTTL:               24 * time.Hour,
	}
}

// DeviceSignals is what the tracker observed for one check-in.
type DeviceSignals struct {
	// Evaluated is false when the check-in had no fingerprint or fell
	// outside the session window.
	Evaluated bool `json:"evaluated"`

	DuplicateDevice bool `json:"duplicate_device"`
	DuplicatePRN    bool `json:"duplicate_prn"`
	MultiplePRNs    bool `json:"multiple_prns"`

	// OtherIdentifiers seen on this device before this check-in.
	OtherIdentifiers []string `json:"other_identifiers,omitempty"`

	// OtherDevices is how many other fingerprints this identifier used.
	OtherDevices int `json:"other_devices"`

	// DistinctIdentifiers on this device including this check-in.
	DistinctIdentifiers int `json:"distinct_identifiers"`

	// Threshold is the multiple_prns_same_device limit in effect.
	Threshold int `json:"threshold"`
}

// sessionWindow is the duplicate-tracking state of one session. All reads and
// updates happen under mu so concurrent check-ins evaluate in some serial order.
type sessionWindow struct {
	mu           sync.Mutex
	startsAt     time.Time // zero = unbounded
	expiresAt    time.Time // zero = unbounded
	lastActivity time.Time
	closed       bool

	// Both indexes hold the timestamps at which each pair was recorded so a
	// re-bounded window only counts pairs seen inside its interval.
	deviceIdentifiers map[string]map[string][]time.Time
	identifierDevices map[string]map[string][]time.Time
}

func newSessionWindow(startsAt, expiresAt, now time.Time) *sessionWindow {
	return &sessionWindow{
		startsAt:          startsAt,
		expiresAt:         expiresAt,
		lastActivity:      now,
		deviceIdentifiers: make(map[string]map[string][]time.Time),
		identifierDevices: make(map[string]map[string][]time.Time),
	}
}

// contains reports whether ts lies in the inclusive window interval.
func (w *sessionWindow) contains(ts time.Time) bool {
	if !w.startsAt.IsZero() && ts.Before(w.startsAt) {
		return false
	}
	if !w.expiresAt.IsZero() && ts.After(w.expiresAt) {
		return false
	}
	return true
}

// seenWithin reports whether any of the recorded timestamps lies in the window.
func (w *sessionWindow) seenWithin(seen []time.Time) bool {
	for _, ts := range seen {
		if w.contains(ts) {
			return true
		}
	}
	return false
}

// DeviceIdentityTracker detects device sharing and identifier reuse within a
// session. Sessions are independent and tracked in parallel.
type DeviceIdentityTracker struct {
	config DeviceTrackerConfig
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*sessionWindow
}

// NewDeviceIdentityTracker creates an empty tracker.
func NewDeviceIdentityTracker(config DeviceTrackerConfig) *DeviceIdentityTracker {
	if config.MultiplePRNsThreshold < 1 {
		config.MultiplePRNsThreshold = DefaultDeviceTrackerConfig().MultiplePRNsThreshold
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultDeviceTrackerConfig().IdleTTL
	}
	return &DeviceIdentityTracker{
		config:  config,
		now:     time.Now,
		windows: make(map[string]*sessionWindow),
	}
}

// OpenSession creates or re-bounds the window for sessionID. Zero times
// leave that side of the interval open.
func (t *DeviceIdentityTracker) OpenSession(sessionID string, startsAt, expiresAt time.Time) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidEvent)
	}
	if !startsAt.IsZero() && !expiresAt.IsZero() && !expiresAt.After(startsAt) {
		return ErrInvalidWindow
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.windows[sessionID]; ok {
		w.mu.Lock()
		w.startsAt, w.expiresAt = startsAt, expiresAt
		w.lastActivity = t.now()
		w.mu.Unlock()
		return nil
	}

	t.windows[sessionID] = newSessionWindow(startsAt, expiresAt, t.now())
	metrics.ActiveSessionWindows.Set(float64(len(t.windows)))
	logging.Debug().Str("session_id", sessionID).Time("starts_at", startsAt).Time("expires_at", expiresAt).
		Msg("Session window opened")
	return nil
}

// CloseSession discards the window for sessionID. It reports whether one existed.
func (t *DeviceIdentityTracker) CloseSession(sessionID string) bool {
	t.mu.Lock()
	w, ok := t.windows[sessionID]
	if ok {
		delete(t.windows, sessionID)
		metrics.ActiveSessionWindows.Set(float64(len(t.windows)))
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	metrics.SessionWindowsEvicted.WithLabelValues("closed").Inc()
	logging.Debug().Str("session_id", sessionID).Msg("Session window closed")
	return true
}

// ActiveSessions returns the number of tracked windows.
func (t *DeviceIdentityTracker) ActiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

// Sweep discards windows that expired before now or saw no activity for
// IdleTTL. It returns the number of windows removed.
func (t *DeviceIdentityTracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, w := range t.windows {
		w.mu.Lock()
		reason := ""
		switch {
		case !w.expiresAt.IsZero() && now.After(w.expiresAt):
			reason = "expired"
		case now.Sub(w.lastActivity) > t.config.IdleTTL:
			reason = "idle"
		}
		if reason != "" {
			w.closed = true
		}
		w.mu.Unlock()

		if reason != "" {
			delete(t.windows, id)
			metrics.SessionWindowsEvicted.WithLabelValues(reason).Inc()
			removed++
		}
	}

	metrics.ActiveSessionWindows.Set(float64(len(t.windows)))
	return removed
}

// Record evaluates the check-in against its session window and then adds it.
// Duplicates are judged against check-ins recorded before this one.
func (t *DeviceIdentityTracker) Record(event *CheckInEvent, policy *GeofencePolicy) DeviceSignals {
	if event.DeviceFingerprint == "" || event.StudentIdentifier == "" {
		return DeviceSignals{}
	}

	for {
		w := t.window(event.SessionID, policy)

		w.mu.Lock()
		if w.closed {
			// Swept or closed between lookup and lock; fetch a fresh window.
			w.mu.Unlock()
			continue
		}
		signals, ok := t.evaluate(w, event)
		w.mu.Unlock()

		if !ok {
			return DeviceSignals{}
		}
		return signals
	}
}

// window returns the session's window, creating it from the policy bounds.
func (t *DeviceIdentityTracker) window(sessionID string, policy *GeofencePolicy) *sessionWindow {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.windows[sessionID]; ok {
		return w
	}

	var startsAt, expiresAt time.Time
	if policy != nil {
		if policy.StartsAt != nil {
			startsAt = *policy.StartsAt
		}
		if policy.ExpiresAt != nil {
			expiresAt = *policy.ExpiresAt
		}
	}
	w := newSessionWindow(startsAt, expiresAt, t.now())
	t.windows[sessionID] = w
	metrics.ActiveSessionWindows.Set(float64(len(t.windows)))
	return w
}

// evaluate must be called with w.mu held.
func (t *DeviceIdentityTracker) evaluate(w *sessionWindow, event *CheckInEvent) (DeviceSignals, bool) {
	if !w.contains(event.Timestamp) {
		return DeviceSignals{}, false
	}
	w.lastActivity = t.now()

	fingerprint := event.DeviceFingerprint
	identifier := event.StudentIdentifier

	identifiers := w.deviceIdentifiers[fingerprint]
	if identifiers == nil {
		identifiers = make(map[string][]time.Time)
		w.deviceIdentifiers[fingerprint] = identifiers
	}
	devices := w.identifierDevices[identifier]
	if devices == nil {
		devices = make(map[string][]time.Time)
		w.identifierDevices[identifier] = devices
	}

	var others []string
	for id, seen := range identifiers {
		if id != identifier && w.seenWithin(seen) {
			others = append(others, id)
		}
	}
	sort.Strings(others)

	otherDevices := 0
	for fp, seen := range devices {
		if fp != fingerprint && w.seenWithin(seen) {
			otherDevices++
		}
	}

	identifiers[identifier] = append(identifiers[identifier], event.Timestamp)
	devices[fingerprint] = append(devices[fingerprint], event.Timestamp)
	distinct := len(others) + 1

	return DeviceSignals{
		Evaluated:           true,
		DuplicateDevice:     len(others) > 0,
		DuplicatePRN:        otherDevices > 0,
		MultiplePRNs:        distinct > t.config.MultiplePRNsThreshold,
		OtherIdentifiers:    others,
		OtherDevices:        otherDevices,
		DistinctIdentifiers: distinct,
		Threshold:           t.config.MultiplePRNsThreshold,
	}, true
}
