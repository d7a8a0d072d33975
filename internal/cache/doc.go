// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

/*
Package cache provides a small thread-safe TTL cache for API query results.

Entries expire lazily on Get; Set prunes expired entries once the cache
holds more than its configured maximum so memory stays bounded without a
background goroutine.

Keys for structured query parameters come from GenerateKey, which hashes
the JSON encoding of the parameters:

	key := cache.GenerateKey("violation_stats", filter)
	if v, ok := c.Get(key); ok {
	    return v.(*detection.ViolationStats)
	}
	stats, err := store.ViolationStats(ctx, filter)
	c.Set(key, stats)

The cache does not know which writes invalidate which entries; callers
Clear it after review transitions and newly flagged check-ins.
*/
package cache
