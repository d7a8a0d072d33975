// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/attendguard/internal/geo"
)

// Sighting is the last known check-in position of a student.
type Sighting struct {
	SessionID string    `json:"session_id"`
	Point     geo.Point `json:"point"`
	Timestamp time.Time `json:"timestamp"`
}

// newer reports whether s should replace prev as the latest sighting.
func (s Sighting) newer(prev *Sighting) bool {
	return prev == nil || !s.Timestamp.Before(prev.Timestamp)
}

// LastSeenStore keeps the most recent sighting per student.
type LastSeenStore interface {
	// Swap atomically returns the stored sighting (nil if none) and records
	// next unless the stored one is more recent.
	Swap(ctx context.Context, studentID string, next Sighting) (*Sighting, error)

	// Prune drops sightings older than before and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// MemoryLastSeenStore is a process-local LastSeenStore.
type MemoryLastSeenStore struct {
	mu        sync.Mutex
	sightings map[string]Sighting
}

// NewMemoryLastSeenStore creates an empty store.
func NewMemoryLastSeenStore() *MemoryLastSeenStore {
	return &MemoryLastSeenStore{sightings: make(map[string]Sighting)}
}

// Swap implements LastSeenStore.
func (s *MemoryLastSeenStore) Swap(_ context.Context, studentID string, next Sighting) (*Sighting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *Sighting
	if stored, ok := s.sightings[studentID]; ok {
		prev = &stored
	}
	if next.newer(prev) {
		s.sightings[studentID] = next
	}
	return prev, nil
}

// Prune implements LastSeenStore.
func (s *MemoryLastSeenStore) Prune(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sighting := range s.sightings {
		if sighting.Timestamp.Before(before) {
			delete(s.sightings, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked students.
func (s *MemoryLastSeenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sightings)
}
