package attendance

import (
	"time"

	"teamkiosk/internal/schedule"
)

// Action is the kind of a raw kiosk event.
type Action string

const (
	ActionSignIn  Action = "sign_in"
	ActionSignOut Action = "sign_out"
)

// Event is one raw append-only log entry. The transformer requires a
// student's events in ascending timestamp order.
type Event struct {
	StudentID string
	At        time.Time
	Action    Action
}

// Record is the normalized outcome for one (student, occurrence) pair.
// A student who never attended an occurrence simply has no record for it.
type Record struct {
	OccurrenceID int
	Status       Status
	TotalSeconds int64
	SignInAt     time.Time
	SignOutAt    time.Time
	// AutoClosed is set when the window end was used because no same-day
	// sign-out was found.
	AutoClosed bool
}

// Records maps student id -> occurrence id -> normalized record.
type Records map[string]map[int]Record

// Transform reduces the raw event stream into one record per student per
// attended occurrence. Events must be supplied in ascending timestamp order;
// students are processed independently, so per-student sub-streams keep that
// order too.
//
// The per-student machine is either idle or holding one pending sign-in:
//   - sign_in: bind to the first occurrence (ascending id) on the same date
//     that the classifier does not reject. Unmatched sign-ins are dropped.
//     A pending sign-in from an earlier date is auto-closed first; a second
//     sign-in on the same date is ignored while pending.
//   - sign_out while pending: same date closes at min(sign-out, window end);
//     a later date means the student forgot to sign out, so the pending
//     entry auto-closes at its window end and the sign-out itself is unused.
//   - sign_out while idle: dropped.
//   - end of stream: any pending sign-in auto-closes.
//
// Repeated in/out cycles within one occurrence accumulate seconds into the
// same record. There are no failure states; every input has a defined
// transition.
func Transform(events []Event, occurrences []schedule.Occurrence, grace time.Duration) Records {
	out := make(Records)

	type pendingState struct {
		event Event
		occ   schedule.Occurrence
	}
	pending := make(map[string]*pendingState)

	finalize := func(p *pendingState, signOut *Event) {
		closeAt := p.occ.End
		autoClosed := true
		if signOut != nil && p.occ.SameDate(signOut.At) {
			autoClosed = false
			closeAt = signOut.At
			if closeAt.After(p.occ.End) {
				closeAt = p.occ.End
			}
		}
		delta := int64(closeAt.Sub(p.event.At).Seconds())
		if delta < 0 {
			delta = 0
		}

		byOcc := out[p.event.StudentID]
		if byOcc == nil {
			byOcc = make(map[int]Record)
			out[p.event.StudentID] = byOcc
		}
		if rec, ok := byOcc[p.occ.ID]; ok {
			rec.TotalSeconds += delta
			rec.SignOutAt = closeAt
			rec.AutoClosed = autoClosed
			byOcc[p.occ.ID] = rec
			return
		}
		byOcc[p.occ.ID] = Record{
			OccurrenceID: p.occ.ID,
			Status:       Classify(p.event.At, p.occ, grace),
			TotalSeconds: delta,
			SignInAt:     p.event.At,
			SignOutAt:    closeAt,
			AutoClosed:   autoClosed,
		}
	}

	for i := range events {
		evt := events[i]
		p := pending[evt.StudentID]

		switch evt.Action {
		case ActionSignIn:
			occ, ok := matchOccurrence(evt.At, occurrences, grace)
			if !ok {
				continue
			}
			if p != nil {
				if p.occ.SameDate(evt.At) {
					// Already tracking this student today; only the first
					// sign-in of the day starts the clock.
					continue
				}
				finalize(p, nil)
			}
			pending[evt.StudentID] = &pendingState{event: evt, occ: occ}

		case ActionSignOut:
			if p == nil {
				continue
			}
			if p.occ.SameDate(evt.At) {
				finalize(p, &evt)
			} else {
				finalize(p, nil)
			}
			delete(pending, evt.StudentID)
		}
	}

	for _, p := range pending {
		finalize(p, nil)
	}
	return out
}

// matchOccurrence finds the first occurrence in id order that accepts the
// sign-in instant.
func matchOccurrence(at time.Time, occurrences []schedule.Occurrence, grace time.Duration) (schedule.Occurrence, bool) {
	for _, occ := range occurrences {
		if Classify(at, occ, grace) != StatusOutside {
			return occ, true
		}
	}
	return schedule.Occurrence{}, false
}
