// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/attendguard/internal/config"
)

func TestNew_InMemory(t *testing.T) {
	t.Parallel()

	db, err := New(&config.DatabaseConfig{Path: MemoryPath, MaxMemory: "256MB", Threads: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	var one int
	if err := db.Conn().QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil || one != 1 {
		t.Errorf("SELECT 1 = %d, %v", one, err)
	}
	if err := db.Checkpoint(ctx); err != nil {
		t.Errorf("Checkpoint() error = %v", err)
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "data", "attendguard.duckdb")
	db, err := New(&config.DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if _, err := db.Conn().ExecContext(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}
	if _, err := db.Conn().ExecContext(ctx, "INSERT INTO t VALUES (7)"); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	reopened, err := New(&config.DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	var id int
	if err := reopened.Conn().QueryRowContext(ctx, "SELECT id FROM t").Scan(&id); err != nil || id != 7 {
		t.Errorf("persisted row = %d, %v", id, err)
	}
	if reopened.Path() != path {
		t.Errorf("Path() = %q, want %q", reopened.Path(), path)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
	if _, err := New(&config.DatabaseConfig{Path: "  "}); err == nil {
		t.Error("New() with an empty path should fail")
	}
}

func TestConnectionString(t *testing.T) {
	t.Parallel()

	got := connectionString(&config.DatabaseConfig{Path: "/data/a.duckdb", MaxMemory: "1GB", Threads: 4})
	for _, want := range []string{"/data/a.duckdb?", "access_mode=read_write", "threads=4", "max_memory=1GB", "autoload_known_extensions=false"} {
		if !strings.Contains(got, want) {
			t.Errorf("connectionString() = %q, missing %q", got, want)
		}
	}

	mem := connectionString(&config.DatabaseConfig{Path: MemoryPath, Threads: 1})
	if strings.Contains(mem, "access_mode") || strings.Contains(mem, "max_memory") {
		t.Errorf("in-memory connection string = %q", mem)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err          error
		wantConn     bool
		wantConflict bool
	}{
		{nil, false, false},
		{errors.New("sql: database is closed"), true, false},
		{errors.New("driver: bad connection"), true, false},
		{errors.New("TransactionContext Error: Failed to commit: Transaction conflict"), false, true},
		{errors.New("Conflict on update!"), false, true},
		{errors.New("Binder Error: column not found"), false, false},
	}
	for _, tt := range tests {
		if got := IsConnectionError(tt.err); got != tt.wantConn {
			t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.wantConn)
		}
		if got := IsTransactionConflict(tt.err); got != tt.wantConflict {
			t.Errorf("IsTransactionConflict(%v) = %v, want %v", tt.err, got, tt.wantConflict)
		}
	}
}
