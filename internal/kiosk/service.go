// Package kiosk coordinates the sign-in flow and the reporting pipeline.
package kiosk

import (
	"context"
	"time"

	"teamkiosk/internal/attendance"
	"teamkiosk/internal/awards"
	"teamkiosk/internal/roster"
	"teamkiosk/internal/schedule"
)

// Service wires the roster store to the pure engine packages. The pipeline
// is recomputed from scratch per call; evaluation time is always passed in
// so results stay deterministic under test.
type Service struct {
	repo  *roster.Repository
	grace time.Duration
	loc   *time.Location
}

// NewService creates a service. Grace is the on-time allowance after a
// window opens; loc is the kiosk's local timezone used for calendar-date
// comparisons.
func NewService(repo *roster.Repository, grace time.Duration, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, grace: grace, loc: loc}
}

// Toggle records a kiosk tap: sign_in when the student's last event today is
// absent or a sign_out, otherwise sign_out. Returns the recorded action.
func (s *Service) Toggle(ctx context.Context, studentID string, now time.Time) (attendance.Action, error) {
	if _, err := s.repo.GetStudent(ctx, studentID); err != nil {
		return "", err
	}

	dayStart, dayEnd := s.dayBounds(now)
	last, err := s.repo.LastEventBetween(ctx, studentID, dayStart, dayEnd)
	if err != nil {
		return "", err
	}

	action := attendance.ActionSignIn
	if last != nil && last.Action == attendance.ActionSignIn {
		action = attendance.ActionSignOut
	}

	evt := attendance.Event{StudentID: studentID, At: now, Action: action}
	if err := s.repo.AppendEvent(ctx, evt); err != nil {
		return "", err
	}
	return action, nil
}

// SignedInNow returns the students currently on the floor (last event today
// is a sign_in). This is raw session state, deliberately outside the award
// engine.
func (s *Service) SignedInNow(ctx context.Context, now time.Time) ([]string, error) {
	dayStart, dayEnd := s.dayBounds(now)
	return s.repo.SignedInBetween(ctx, dayStart, dayEnd)
}

// Report is one full pipeline evaluation: the generated occurrences, the
// ids of those already finished, and the normalized records.
type Report struct {
	Occurrences  []schedule.Occurrence
	CompletedIDs []int
	Records      attendance.Records
	Students     []roster.Student
	EvaluatedAt  time.Time
}

// BuildReport loads everything and runs occurrence generation plus the
// transform. Empty logs and empty rule sets produce an empty, valid report.
func (s *Service) BuildReport(ctx context.Context, now time.Time) (Report, error) {
	rep := Report{EvaluatedAt: now}

	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return Report{}, err
	}
	rep.Students = students

	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return Report{}, err
	}
	events, err := s.repo.ListEventsAscending(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(rules) == 0 || len(events) == 0 {
		rep.Records = attendance.Records{}
		return rep, nil
	}

	for i := range events {
		events[i].At = events[i].At.In(s.loc)
	}

	spanStart, spanEnd := eventSpan(events[0].At, events[len(events)-1].At, now, s.loc)
	rep.Occurrences = schedule.Generate(rules, spanStart, spanEnd)
	rep.CompletedIDs = schedule.CompletedIDs(rep.Occurrences, now)
	rep.Records = attendance.Transform(events, rep.Occurrences, s.grace)
	return rep, nil
}

// Engine builds the ranking engine for a report.
func (s *Service) Engine(rep Report) *awards.Engine {
	return awards.NewEngine(rep.Records, rep.CompletedIDs)
}

// eventSpan returns the date range to generate occurrences over: the first
// event's date through the last event's date, extended to today when the log
// reaches the present so meetings later today still show up. A last event
// with a clock-skewed future timestamp clamps to now.
func eventSpan(first, last, now time.Time, loc *time.Location) (time.Time, time.Time) {
	start := first.In(loc)
	end := last.In(loc)
	if sameDate(end, now, loc) || end.After(now) {
		end = now.In(loc)
	}
	return start, end
}

func (s *Service) dayBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func sameDate(a, b time.Time, loc *time.Location) bool {
	y1, m1, d1 := a.In(loc).Date()
	y2, m2, d2 := b.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
