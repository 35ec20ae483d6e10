package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Rule is a recurring meeting window: a weekday plus a time-of-day range.
// Weekday follows time.Weekday numbering (0 = Sunday).
type Rule struct {
	ID        string       `json:"id"`
	Weekday   time.Weekday `json:"weekday"`
	StartHour int          `json:"start_hour"`
	StartMin  int          `json:"start_min"`
	EndHour   int          `json:"end_hour"`
	EndMin    int          `json:"end_min"`
}

// Validate rejects rules that cannot produce a well-formed occurrence.
func (r Rule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("weekday %d out of range", r.Weekday)
	}
	if r.StartHour < 0 || r.StartHour > 23 || r.EndHour < 0 || r.EndHour > 23 {
		return errors.New("hour out of range")
	}
	if r.StartMin < 0 || r.StartMin > 59 || r.EndMin < 0 || r.EndMin > 59 {
		return errors.New("minute out of range")
	}
	if r.startMinutes() >= r.endMinutes() {
		return errors.New("window start must be before end")
	}
	return nil
}

func (r Rule) startMinutes() int { return r.StartHour*60 + r.StartMin }
func (r Rule) endMinutes() int   { return r.EndHour*60 + r.EndMin }

// Occurrence is one concrete dated instance of a rule. IDs are assigned
// sequentially in generation order; streak logic compares these ids, not
// calendar distance.
type Occurrence struct {
	ID    int       `json:"id"`
	Date  time.Time `json:"date"` // midnight in the occurrence's location
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SameDate reports whether t falls on the occurrence's calendar date.
func (o Occurrence) SameDate(t time.Time) bool {
	y1, m1, d1 := o.Date.Date()
	y2, m2, d2 := t.In(o.Date.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Completed reports whether the occurrence has fully elapsed at eval time.
func (o Occurrence) Completed(at time.Time) bool {
	return o.End.Before(at)
}

// Duration returns the window length.
func (o Occurrence) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Generate expands rules into dated occurrences over [startDate, endDate]
// inclusive. Ids start at 1 and follow discovery order: days are walked
// chronologically, and within one day occurrences follow the supplied rule
// order. Empty rules or an inverted range yield an empty slice.
func Generate(rules []Rule, startDate, endDate time.Time) []Occurrence {
	if len(rules) == 0 {
		return nil
	}

	byWeekday := make(map[time.Weekday][]Rule, len(rules))
	for _, r := range rules {
		byWeekday[r.Weekday] = append(byWeekday[r.Weekday], r)
	}

	loc := startDate.Location()
	start := midnight(startDate)
	end := midnight(endDate)

	var out []Occurrence
	id := 1
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for _, r := range byWeekday[day.Weekday()] {
			out = append(out, Occurrence{
				ID:    id,
				Date:  day,
				Start: time.Date(day.Year(), day.Month(), day.Day(), r.StartHour, r.StartMin, 0, 0, loc),
				End:   time.Date(day.Year(), day.Month(), day.Day(), r.EndHour, r.EndMin, 0, 0, loc),
			})
			id++
		}
	}
	return out
}

// CompletedIDs returns the ids of occurrences whose end has passed at eval
// time, in ascending id order.
func CompletedIDs(occurrences []Occurrence, at time.Time) []int {
	var ids []int
	for _, o := range occurrences {
		if o.Completed(at) {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
