// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package risk

import (
	"hash/fnv"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// FeatureCount is the number of fields in an encoded feature vector.
const FeatureCount = 11

// FingerprintBuckets is the modulus applied to the device fingerprint hash.
const FingerprintBuckets = 100

// Input is the slice of a check-in the scorer looks at.
type Input struct {
	Timestamp         time.Time
	Lat               float64
	Lng               float64
	AccuracyMeters    float64
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}

// Features is the ordered feature vector sent to the model.
type Features struct {
	HourOfDay         int     `json:"hour_of_day"`
	DayOfWeek         int     `json:"day_of_week"` // 0 = Sunday
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	AccuracyMeters    float64 `json:"accuracy_meters"`
	IPOctets          [4]int  `json:"ip_octets"` // zeros unless IPv4
	UserAgentLength   int     `json:"user_agent_length"`
	FingerprintBucket int     `json:"fingerprint_bucket"`
}

// ExtractFeatures derives the model features from a check-in. Hour and day
// are taken in the timestamp's own location.
func ExtractFeatures(in Input) Features {
	return Features{
		HourOfDay:         in.Timestamp.Hour(),
		DayOfWeek:         int(in.Timestamp.Weekday()),
		Lat:               in.Lat,
		Lng:               in.Lng,
		AccuracyMeters:    in.AccuracyMeters,
		IPOctets:          ipv4Octets(in.IPAddress),
		UserAgentLength:   utf8.RuneCountInString(in.UserAgent),
		FingerprintBucket: fingerprintBucket(in.DeviceFingerprint),
	}
}

// Vector returns the features in wire order:
// hour, day-of-week, lat, lng, accuracy, four IP octets, user-agent length, fingerprint bucket.
func (f Features) Vector() []float64 {
	return []float64{
		float64(f.HourOfDay),
		float64(f.DayOfWeek),
		f.Lat,
		f.Lng,
		f.AccuracyMeters,
		float64(f.IPOctets[0]),
		float64(f.IPOctets[1]),
		float64(f.IPOctets[2]),
		float64(f.IPOctets[3]),
		float64(f.UserAgentLength),
		float64(f.FingerprintBucket),
	}
}

// Encode serializes the vector as a comma-joined list of FeatureCount numbers.
func (f Features) Encode() string {
	vec := f.Vector()
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func ipv4Octets(addr string) [4]int {
	var octets [4]int
	ip := net.ParseIP(strings.TrimSpace(addr)).To4()
	if ip == nil {
		return octets
	}
	for i := range octets {
		octets[i] = int(ip[i])
	}
	return octets
}

func fingerprintBucket(fingerprint string) int {
	if fingerprint == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(fingerprint))
	return int(h.Sum32() % FingerprintBuckets)
}
