// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/attendguard/internal/logging"
)

// Key prefix for BadgerDB storage
const lastSeenKeyPrefix = "lastseen:"

// swapRetries bounds retries when concurrent swaps conflict.
const swapRetries = 3

// BadgerLastSeenStore implements LastSeenStore on BadgerDB so sightings
// survive restarts. Entries expire through Badger TTLs.
type BadgerLastSeenStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerLastSeenStore wraps an open database. A ttl of zero disables expiry.
func NewBadgerLastSeenStore(db *badger.DB, ttl time.Duration) *BadgerLastSeenStore {
	return &BadgerLastSeenStore{db: db, ttl: ttl}
}

// OpenBadgerLastSeenStore opens (or creates) a database in dir.
func OpenBadgerLastSeenStore(dir string, ttl time.Duration) (*BadgerLastSeenStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{logger: logging.WithComponent("badger")}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return NewBadgerLastSeenStore(db, ttl), nil
}

// Swap implements LastSeenStore. Read and write happen in one transaction;
// Badger's optimistic concurrency rejects a conflicting commit, which is retried.
func (s *BadgerLastSeenStore) Swap(ctx context.Context, studentID string, next Sighting) (*Sighting, error) {
	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("marshal sighting: %w", err)
	}
	key := []byte(lastSeenKeyPrefix + studentID)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var prev *Sighting
		err := s.db.Update(func(txn *badger.Txn) error {
			prev = nil
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return fmt.Errorf("get sighting: %w", err)
			default:
				var stored Sighting
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &stored)
				}); err != nil {
					return fmt.Errorf("decode sighting: %w", err)
				}
				prev = &stored
			}

			if !next.newer(prev) {
				return nil
			}
			entry := badger.NewEntry(key, data)
			if s.ttl > 0 {
				entry = entry.WithTTL(s.ttl)
			}
			return txn.SetEntry(entry)
		})

		if errors.Is(err, badger.ErrConflict) && attempt < swapRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		return prev, nil
	}
}

// Prune implements LastSeenStore by deleting entries older than before.
// Entries written with a TTL are also removed by Badger on their own.
func (s *BadgerLastSeenStore) Prune(ctx context.Context, before time.Time) (int, error) {
	var stale [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(lastSeenKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var sighting Sighting
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &sighting)
			}); err != nil {
				continue
			}
			if sighting.Timestamp.Before(before) {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan sightings: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("delete sighting: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes: %w", err)
	}
	return len(stale), nil
}

// Close closes the underlying database.
func (s *BadgerLastSeenStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes Badger's internal logging into zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
