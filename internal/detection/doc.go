// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

// Package detection decides whether a QR attendance check-in is genuine or
// the product of proxy attendance, and governs the review of flagged
// check-ins afterwards.
//
// Detection Architecture:
//
//	CheckInEvent + GeofencePolicy -> Engine.EvaluateCheckIn -> Decision
//	                                   |
//	     +-------------+---------------+-------------+
//	     v             v               v             v
//	 Geofence   DeviceIdentity   ImpossibleTravel  risk.Scorer
//	     |             |               |             |
//	     +-------------+-------+-------+-------------+
//	                           v
//	                      Aggregator -> Violation -> DuckDBStore / publisher
//
// Signals:
//   - outside_geofence / low_gps_accuracy: haversine distance to the zone
//     center against the radius (inclusive), and accuracy against the radius
//   - duplicate_device / duplicate_prn / multiple_prns_same_device: per-session
//     windows mapping fingerprints to identifiers and back, serialized per session
//   - impossible_travel: implied speed since the student's previous sighting,
//     read and replaced in one atomic step (memory or Badger)
//   - gps_spoofing_suspected / ml_high_risk: derived from the risk score
//
// The Aggregator picks exactly one primary cause using a configurable
// precedence list and records the remaining causes in Signals and Details.
// The risk score always reflects the configured blend of the rule-derived
// score and the model-side score.
//
// Review Workflow:
//
//	flagged -> reviewed -> cleared | confirmed
//	flagged -> cleared | confirmed
//
// cleared and confirmed are terminal. Every transition needs a reviewer and
// is recorded in the violation_reviews audit table.
package detection
