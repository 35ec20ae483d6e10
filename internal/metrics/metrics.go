// Package metrics exposes the kiosk's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignEvents counts recorded kiosk events by action.
	SignEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_sign_events_total",
		Help: "Attendance events recorded at the kiosk, by action.",
	}, []string{"action"})

	// ScanRejected counts NFC payloads that failed HMAC verification.
	ScanRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_scan_rejected_total",
		Help: "NFC tag scans rejected as invalid or tampered.",
	})

	// ReportDuration observes full pipeline recomputations.
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kiosk_report_seconds",
		Help:    "Time spent rebuilding the attendance report pipeline.",
		Buckets: prometheus.DefBuckets,
	})

	// SnapshotHits counts leaderboard requests served from the Redis cache.
	SnapshotHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_snapshot_requests_total",
		Help: "Leaderboard snapshot lookups, by result.",
	}, []string{"result"})
)
