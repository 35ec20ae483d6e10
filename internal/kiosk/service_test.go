package kiosk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventSpan(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 3, 6, 18, 0, 0, 0, loc)
	first := time.Date(2025, 3, 1, 17, 5, 0, 0, loc)

	cases := []struct {
		name    string
		last    time.Time
		wantEnd time.Time
	}{
		{
			name:    "last event today extends span to now",
			last:    time.Date(2025, 3, 6, 9, 0, 0, 0, loc),
			wantEnd: now,
		},
		{
			name:    "last event yesterday ends the span there",
			last:    time.Date(2025, 3, 5, 18, 30, 0, 0, loc),
			wantEnd: time.Date(2025, 3, 5, 18, 30, 0, 0, loc),
		},
		{
			name:    "future last event clamps to now",
			last:    time.Date(2025, 3, 7, 10, 0, 0, 0, loc),
			wantEnd: now,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := eventSpan(first, tc.last, now, loc)
			assert.Equal(t, first, start)
			assert.Equal(t, tc.wantEnd, end)
		})
	}
}

func TestEventSpan_TodayJudgedInKioskZone(t *testing.T) {
	// 20:00 EST on March 5 is already March 6 in UTC; in the kiosk's own
	// zone the log still ends "yesterday" relative to a March 6 evening.
	est := time.FixedZone("EST", -5*3600)
	now := time.Date(2025, 3, 6, 19, 0, 0, 0, est)
	first := time.Date(2025, 3, 1, 17, 0, 0, 0, est)
	last := time.Date(2025, 3, 6, 1, 0, 0, 0, time.UTC) // Mar 5, 20:00 EST

	start, end := eventSpan(first, last, now, est)
	assert.Equal(t, first, start)
	assert.Equal(t, last.In(est), end)
	assert.NotEqual(t, now, end)
}
