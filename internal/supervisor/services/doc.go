// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

// Package services adapts AttendGuard's long-running components to the
// suture.Service interface: each wrapper blocks in Serve until its context
// is cancelled and implements fmt.Stringer so supervisor logs name it.
package services
