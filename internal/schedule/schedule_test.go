package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerate_WalksRangeInOrder(t *testing.T) {
	rules := []Rule{
		{ID: "tue", Weekday: time.Tuesday, StartHour: 17, EndHour: 19},
		{ID: "thu", Weekday: time.Thursday, StartHour: 17, EndHour: 19},
	}
	// 2025-03-03 is a Monday.
	occs := Generate(rules, date(2025, 3, 3), date(2025, 3, 16))

	require.Len(t, occs, 4)
	assert.Equal(t, 1, occs[0].ID)
	assert.Equal(t, date(2025, 3, 4), occs[0].Date)
	assert.Equal(t, 2, occs[1].ID)
	assert.Equal(t, date(2025, 3, 6), occs[1].Date)
	assert.Equal(t, 3, occs[2].ID)
	assert.Equal(t, date(2025, 3, 11), occs[2].Date)
	assert.Equal(t, 4, occs[3].ID)
	assert.Equal(t, date(2025, 3, 13), occs[3].Date)

	assert.Equal(t, 17, occs[0].Start.Hour())
	assert.Equal(t, 19, occs[0].End.Hour())
	assert.Equal(t, 2*time.Hour, occs[0].Duration())
}

func TestGenerate_MultipleRulesSameDayFollowRuleOrder(t *testing.T) {
	rules := []Rule{
		{ID: "morning", Weekday: time.Saturday, StartHour: 9, EndHour: 12},
		{ID: "afternoon", Weekday: time.Saturday, StartHour: 13, EndHour: 16},
	}
	// 2025-03-08 is a Saturday.
	occs := Generate(rules, date(2025, 3, 8), date(2025, 3, 8))

	require.Len(t, occs, 2)
	assert.Equal(t, 9, occs[0].Start.Hour())
	assert.Equal(t, 13, occs[1].Start.Hour())
}

func TestGenerate_Deterministic(t *testing.T) {
	rules := []Rule{
		{Weekday: time.Monday, StartHour: 18, EndHour: 20},
		{Weekday: time.Wednesday, StartHour: 18, EndHour: 20},
	}
	a := Generate(rules, date(2025, 1, 1), date(2025, 3, 31))
	b := Generate(rules, date(2025, 1, 1), date(2025, 3, 31))
	assert.Equal(t, a, b)
}

func TestGenerate_EmptyInputs(t *testing.T) {
	assert.Empty(t, Generate(nil, date(2025, 3, 3), date(2025, 3, 16)))

	rules := []Rule{{Weekday: time.Tuesday, StartHour: 17, EndHour: 19}}
	assert.Empty(t, Generate(rules, date(2025, 3, 16), date(2025, 3, 3)))
}

func TestCompletedIDs(t *testing.T) {
	rules := []Rule{{Weekday: time.Tuesday, StartHour: 17, EndHour: 19}}
	occs := Generate(rules, date(2025, 3, 3), date(2025, 3, 16))
	require.Len(t, occs, 2)

	// Between the two meetings: only the first has finished.
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, []int{1}, CompletedIDs(occs, at))

	// Exactly at the first window's end it is not yet completed.
	assert.Empty(t, CompletedIDs(occs, occs[0].End))

	after := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []int{1, 2}, CompletedIDs(occs, after))
}

func TestRuleValidate(t *testing.T) {
	valid := Rule{Weekday: time.Tuesday, StartHour: 17, EndHour: 19}
	assert.NoError(t, valid.Validate())

	cases := map[string]Rule{
		"weekday too large": {Weekday: 7, StartHour: 17, EndHour: 19},
		"negative weekday":  {Weekday: -1, StartHour: 17, EndHour: 19},
		"start after end":   {Weekday: time.Tuesday, StartHour: 19, EndHour: 17},
		"start equals end":  {Weekday: time.Tuesday, StartHour: 17, EndHour: 17},
		"hour out of range": {Weekday: time.Tuesday, StartHour: 24, EndHour: 25},
		"minute negative":   {Weekday: time.Tuesday, StartHour: 17, StartMin: -1, EndHour: 19},
	}
	for name, rule := range cases {
		assert.Error(t, rule.Validate(), name)
	}
}
