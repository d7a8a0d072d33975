// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package risk

// Heuristic weights.
const (
	lowAccuracyMeters   = 100
	lowAccuracyPoints   = 30
	privateNetworkPoint = 10
	publicNetworkPoints = 20
	shortUserAgentLen   = 30
	shortUserAgentPoint = 20
	maxScore            = 100
)

// HeuristicScore is the deterministic fallback score in [0, 100]:
// +30 when accuracy is worse than 100 m, +10 when the first IP octet looks
// like a private range (10, 172, 192) and +20 otherwise, +20 when the user
// agent is shorter than 30 characters.
func HeuristicScore(f Features) float64 {
	score := 0
	if f.AccuracyMeters > lowAccuracyMeters {
		score += lowAccuracyPoints
	}
	if privateLikeOctet(f.IPOctets[0]) {
		score += privateNetworkPoint
	} else {
		score += publicNetworkPoints
	}
	if f.UserAgentLength < shortUserAgentLen {
		score += shortUserAgentPoint
	}
	if score > maxScore {
		score = maxScore
	}
	return float64(score)
}

func privateLikeOctet(octet int) bool {
	switch octet {
	case 10, 172, 192:
		return true
	default:
		return false
	}
}
