// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

// Package database manages the DuckDB connection used by the violation store.
//
// # Overview
//
// DuckDB is embedded in the process. New opens the file named by
// DatabaseConfig.Path (creating its directory), applies the thread and
// memory limits, sizes the connection pool and pings the database. Schema
// creation belongs to the stores: detection.DuckDBStore.InitSchema creates
// the violations and violation_reviews tables on the pool returned by Conn.
//
// # Usage
//
//	db, err := database.New(&cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	store := detection.NewDuckDBStore(db.Conn())
//	if err := store.InitSchema(ctx); err != nil {
//	    return err
//	}
//
// # Durability
//
// Close issues a CHECKPOINT before releasing the pool so the next start
// does not have to replay the write-ahead log.
//
// # Error Classification
//
// IsTransactionConflict identifies DuckDB's optimistic concurrency failures,
// which the stores map to domain errors when two writers race on one row.
// IsConnectionError separates lost connections from failed queries.
package database
