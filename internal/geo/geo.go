// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

// Package geo provides the pure geographic math used by the check-in
// detection rules: great-circle distance, initial bearing and the implied
// travel speed between two timestamped points.
//
// All functions are deterministic and free of side effects. Distances are
// computed with the Haversine formula on a sphere of mean Earth radius
// 6,371,000 meters.
package geo

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// EarthRadiusMeters is the mean Earth radius used by all distance calculations.
const EarthRadiusMeters = 6371000.0

var (
	// ErrInvalidCoordinate is returned for latitudes outside [-90, 90],
	// longitudes outside [-180, 180], or non-finite values.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidInterval is returned when the elapsed time between two
	// points is zero or negative.
	ErrInvalidInterval = errors.New("invalid interval")
)

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidateCoordinate reports whether p is a usable WGS84 coordinate.
func ValidateCoordinate(p Point) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("%w: non-finite value (%v, %v)", ErrInvalidCoordinate, p.Lat, p.Lng)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// HaversineDistanceMeters returns the great-circle distance between a and b in meters.
func HaversineDistanceMeters(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	// Rounding can push h a hair past 1 for antipodal points.
	if h > 1 {
		h = 1
	}

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// InitialBearingDegrees returns the forward azimuth from a to b,
// normalized to [0, 360). Identical points yield 0.
func InitialBearingDegrees(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	if x == 0 && y == 0 {
		return 0
	}

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// SpeedKmh returns the speed in km/h needed to move from p1 at t1 to p2 at t2.
// It fails with ErrInvalidInterval unless t2 is strictly after t1.
func SpeedKmh(p1 Point, t1 time.Time, p2 Point, t2 time.Time) (float64, error) {
	elapsed := t2.Sub(t1)
	if elapsed <= 0 {
		return 0, fmt.Errorf("%w: elapsed %s", ErrInvalidInterval, elapsed)
	}
	km := HaversineDistanceMeters(p1, p2) / 1000
	return km / elapsed.Hours(), nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
