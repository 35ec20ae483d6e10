package attendance

import (
	"time"

	"teamkiosk/internal/schedule"
)

// Status classifies a sign-in relative to a meeting window.
type Status string

const (
	StatusOnTime Status = "on_time"
	StatusLate   Status = "late"
	// StatusOutside means the sign-in does not belong to the window at all.
	// It is only a matching result; stored records are never "outside".
	StatusOutside Status = "outside"
)

// Classify assigns a status to a sign-in instant against one occurrence.
// An arrival before the window opens still counts as on-time; only arrivals
// past start+grace are late, and anything on a different date or after the
// window's end does not match.
func Classify(signIn time.Time, occ schedule.Occurrence, grace time.Duration) Status {
	if !occ.SameDate(signIn) {
		return StatusOutside
	}
	if signIn.After(occ.End) {
		return StatusOutside
	}
	if !signIn.After(occ.Start.Add(grace)) {
		return StatusOnTime
	}
	return StatusLate
}
