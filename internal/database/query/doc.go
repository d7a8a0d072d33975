// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

// Package query provides SQL query building utilities for the stores.
//
// # Overview
//
// The WhereBuilder offers a fluent interface for constructing WHERE clauses
// whose values are always bound as parameters:
//
//	wb := query.NewWhereBuilder()
//	wb.AddEquals("session_id", filter.SessionID)
//	wb.AddIn("violation_type", types)
//	wb.AddMin("risk_score", filter.MinRiskScore)
//	wb.AddTimeRange("created_at", filter.StartDate, filter.EndDate)
//	whereClause, args := wb.Build()
//	// "session_id = ? AND violation_type IN (?, ?) AND risk_score >= ? AND created_at >= ?"
//
// Zero values (empty strings, empty slices, nil pointers) add nothing, so a
// filter struct can be passed through field by field.
//
// # SQL Injection Prevention
//
// Column names are trusted and written by the caller. Values never appear in
// the SQL text. ORDER BY columns are not handled here; callers whitelist them.
//
// # Thread Safety
//
// A WhereBuilder is not safe for concurrent use. Build one per query.
package query
