// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeMaintainer struct {
	calls atomic.Int32
	err   error
	ran   chan time.Time
}

func (f *fakeMaintainer) Maintain(_ context.Context, now time.Time) error {
	f.calls.Add(1)
	select {
	case f.ran <- now:
	default:
	}
	return f.err
}

func TestNewJanitorService_DefaultInterval(t *testing.T) {
	if got := NewJanitorService(&fakeMaintainer{}, 0).interval; got != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", got)
	}
}

func TestJanitorService_Serve(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "successful passes"},
		{name: "failed passes keep running", err: errors.New("badger closed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &fakeMaintainer{err: tt.err, ran: make(chan time.Time, 8)}
			svc := NewJanitorService(target, 10*time.Millisecond)
			fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
			svc.now = func() time.Time { return fixed }

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			for i := 0; i < 2; i++ {
				select {
				case got := <-target.ran:
					if !got.Equal(fixed) {
						t.Errorf("Maintain now = %v, want %v", got, fixed)
					}
				case <-time.After(2 * time.Second):
					t.Fatalf("pass %d did not run", i+1)
				}
			}

			cancel()
			select {
			case err := <-errCh:
				if !errors.Is(err, context.Canceled) {
					t.Errorf("Serve() error = %v, want context.Canceled", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return")
			}
		})
	}
}
