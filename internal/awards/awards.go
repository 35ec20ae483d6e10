// Package awards ranks students over their normalized attendance records.
// All computations look only at completed occurrences; an in-progress meeting
// never moves a leaderboard.
package awards

import (
	"fmt"
	"sort"

	"teamkiosk/internal/attendance"
)

// Metric names the three leaderboards.
type Metric string

const (
	MetricStreak Metric = "streak"
	MetricScore  Metric = "score"
	MetricTime   Metric = "time"
)

// Points awarded per attended occurrence by status. A true absence scores
// nothing; showing up late still counts.
const (
	pointsOnTime = 3
	pointsLate   = 2
)

// Entry is one leaderboard row. Rank here is positional (1..limit) within
// the sorted view; use Standing for a student's dense rank among everyone.
type Entry struct {
	Rank      int    `json:"rank"`
	StudentID string `json:"student_id"`
	Value     int64  `json:"value"`
	Display   string `json:"display"`
}

// Standing is a single student's dense competition rank for one metric:
// 1 + the number of students with a strictly greater value. Ties share a
// rank and no rank is skipped.
type Standing struct {
	Rank    int    `json:"rank"`
	Value   int64  `json:"value"`
	Display string `json:"display"`
}

// Engine computes leaderboards from a normalized record map restricted to a
// completed-occurrence id set. It is pure; build one per evaluation.
type Engine struct {
	records      attendance.Records
	completedIDs []int
	// position of each completed occurrence id in the globally sorted id
	// list, built once so streaks never rescan.
	position map[int]int
}

// NewEngine prepares an engine over the given records and completed
// occurrence ids.
func NewEngine(records attendance.Records, completedIDs []int) *Engine {
	sorted := append([]int(nil), completedIDs...)
	sort.Ints(sorted)
	pos := make(map[int]int, len(sorted))
	for i, id := range sorted {
		pos[id] = i
	}
	return &Engine{records: records, completedIDs: sorted, position: pos}
}

// Streak returns the longest run of consecutively attended completed
// occurrences for one student. Consecutive means adjacent positions in the
// completed id sequence, not adjacent calendar days.
func (e *Engine) Streak(studentID string) int64 {
	byOcc := e.records[studentID]
	if len(byOcc) == 0 {
		return 0
	}
	var positions []int
	for id := range byOcc {
		if p, ok := e.position[id]; ok {
			positions = append(positions, p)
		}
	}
	if len(positions) == 0 {
		return 0
	}
	sort.Ints(positions)

	best, run := 1, 1
	for i := 1; i < len(positions); i++ {
		if positions[i] == positions[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return int64(best)
}

// Score returns the weighted attendance score: 3 per on-time occurrence,
// 2 per late one.
func (e *Engine) Score(studentID string) int64 {
	var score int64
	for id, rec := range e.records[studentID] {
		if _, ok := e.position[id]; !ok {
			continue
		}
		if rec.Status == attendance.StatusOnTime {
			score += pointsOnTime
		} else {
			score += pointsLate
		}
	}
	return score
}

// TotalSeconds returns the summed in-window seconds across completed
// occurrences.
func (e *Engine) TotalSeconds(studentID string) int64 {
	var total int64
	for id, rec := range e.records[studentID] {
		if _, ok := e.position[id]; !ok {
			continue
		}
		total += rec.TotalSeconds
	}
	return total
}

func (e *Engine) value(m Metric, studentID string) int64 {
	switch m {
	case MetricStreak:
		return e.Streak(studentID)
	case MetricScore:
		return e.Score(studentID)
	default:
		return e.TotalSeconds(studentID)
	}
}

func (e *Engine) display(m Metric, v int64) string {
	if m == MetricTime {
		return FormatDuration(v)
	}
	return fmt.Sprintf("%d", v)
}

// Leaderboard returns up to limit students in metric-descending order.
// Students with a zero value are omitted. Equal values keep a stable order
// by student id so repeated computations render identically.
func (e *Engine) Leaderboard(m Metric, limit int) []Entry {
	var entries []Entry
	for studentID := range e.records {
		v := e.value(m, studentID)
		if v == 0 {
			continue
		}
		entries = append(entries, Entry{StudentID: studentID, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].StudentID < entries[j].StudentID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Display = e.display(m, entries[i].Value)
	}
	return entries
}

// StudentStanding returns the dense rank and raw value for one student,
// even when they fall outside the visible leaderboard. A student with no
// records gets value 0 and ranks below everyone who attended; whether the
// id exists at all is the roster's question, not this engine's.
func (e *Engine) StudentStanding(m Metric, studentID string) Standing {
	v := e.value(m, studentID)
	rank := 1
	for other := range e.records {
		if other == studentID {
			continue
		}
		if e.value(m, other) > v {
			rank++
		}
	}
	return Standing{Rank: rank, Value: v, Display: e.display(m, v)}
}

// FormatDuration renders seconds as H:MM, the kiosk's total-time format.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	return fmt.Sprintf("%d:%02d", h, m)
}
