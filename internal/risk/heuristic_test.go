// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package risk

import "testing"

func TestHeuristicScore(t *testing.T) {
	t.Parallel()

	longUA := 40
	tests := []struct {
		name     string
		features Features
		want     float64
	}{
		{
			name:     "clean private network",
			features: Features{AccuracyMeters: 10, IPOctets: [4]int{10, 0, 0, 1}, UserAgentLength: longUA},
			want:     10,
		},
		{
			name:     "public network",
			features: Features{AccuracyMeters: 10, IPOctets: [4]int{203, 0, 113, 1}, UserAgentLength: longUA},
			want:     20,
		},
		{
			name:     "non-ipv4 counts as public",
			features: Features{AccuracyMeters: 10, UserAgentLength: longUA},
			want:     20,
		},
		{
			name:     "poor accuracy",
			features: Features{AccuracyMeters: 150, IPOctets: [4]int{192, 168, 0, 1}, UserAgentLength: longUA},
			want:     40,
		},
		{
			name:     "accuracy exactly 100 is not poor",
			features: Features{AccuracyMeters: 100, IPOctets: [4]int{172, 16, 0, 1}, UserAgentLength: longUA},
			want:     10,
		},
		{
			name:     "short user agent",
			features: Features{AccuracyMeters: 10, IPOctets: [4]int{10, 0, 0, 1}, UserAgentLength: 29},
			want:     30,
		},
		{
			name:     "user agent of 30 is not short",
			features: Features{AccuracyMeters: 10, IPOctets: [4]int{10, 0, 0, 1}, UserAgentLength: 30},
			want:     10,
		},
		{
			name:     "everything suspicious",
			features: Features{AccuracyMeters: 500, IPOctets: [4]int{8, 8, 8, 8}, UserAgentLength: 5},
			want:     70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HeuristicScore(tt.features)
			if got != tt.want {
				t.Errorf("HeuristicScore() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("HeuristicScore() = %v outside [0, 100]", got)
			}
		})
	}
}
