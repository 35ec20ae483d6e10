package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamkiosk/internal/schedule"
)

const grace = 5 * time.Minute

// Tuesday and Thursday practice, 17:00-19:00, over two weeks.
func practiceOccurrences(t *testing.T) []schedule.Occurrence {
	t.Helper()
	rules := []schedule.Rule{
		{Weekday: time.Tuesday, StartHour: 17, EndHour: 19},
		{Weekday: time.Thursday, StartHour: 17, EndHour: 19},
	}
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	occs := schedule.Generate(rules, start, start.AddDate(0, 0, 13))
	require.Len(t, occs, 4)
	return occs
}

func at(day, hour, min int) time.Time {
	return time.Date(2025, 3, day, hour, min, 0, 0, time.UTC)
}

func TestTransform_NoEvents(t *testing.T) {
	out := Transform(nil, practiceOccurrences(t), grace)
	assert.Empty(t, out)
}

func TestTransform_RoundTripOnTime(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 17, 0), Action: ActionSignIn},
		{StudentID: "amy", At: at(4, 17, 30), Action: ActionSignOut},
	}
	out := Transform(events, occs, grace)

	require.Contains(t, out, "amy")
	rec, ok := out["amy"][1]
	require.True(t, ok)
	assert.Equal(t, StatusOnTime, rec.Status)
	assert.Equal(t, int64(1800), rec.TotalSeconds)
	assert.False(t, rec.AutoClosed)
	assert.Equal(t, at(4, 17, 0), rec.SignInAt)
	assert.Equal(t, at(4, 17, 30), rec.SignOutAt)
}

func TestTransform_LateArrival(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 17, 10), Action: ActionSignIn},
		{StudentID: "amy", At: at(4, 19, 0), Action: ActionSignOut},
	}
	out := Transform(events, occs, grace)

	rec := out["amy"][1]
	assert.Equal(t, StatusLate, rec.Status)
	assert.Equal(t, int64(110*60), rec.TotalSeconds)
}

func TestTransform_MissingSignOutAutoCloses(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 17, 0), Action: ActionSignIn},
	}
	out := Transform(events, occs, grace)

	rec := out["amy"][1]
	assert.True(t, rec.AutoClosed)
	assert.Equal(t, occs[0].End, rec.SignOutAt)
	assert.Equal(t, int64(2*3600), rec.TotalSeconds)
}

func TestTransform_SignOutCappedAtWindowEnd(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 18, 0), Action: ActionSignIn},
		{StudentID: "amy", At: at(4, 21, 30), Action: ActionSignOut},
	}
	out := Transform(events, occs, grace)

	rec := out["amy"][1]
	assert.Equal(t, int64(3600), rec.TotalSeconds)
	assert.Equal(t, occs[0].End, rec.SignOutAt)
}

func TestTransform_ForgottenSignOutThenNextDaySignIn(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 17, 0), Action: ActionSignIn},
		// Forgot to sign out Tuesday; shows up Thursday.
		{StudentID: "amy", At: at(6, 17, 2), Action: ActionSignIn},
		{StudentID: "amy", At: at(6, 18, 0), Action: ActionSignOut},
	}
	out := Transform(events, occs, grace)

	tue, ok := out["amy"][1]
	require.True(t, ok)
	assert.True(t, tue.AutoClosed)
	assert.Equal(t, occs[0].End, tue.SignOutAt)

	thu, ok := out["amy"][2]
	require.True(t, ok)
	assert.False(t, thu.AutoClosed)
	assert.Equal(t, StatusOnTime, thu.Status)
	assert.Equal(t, int64(58*60), thu.TotalSeconds)
}

func TestTransform_CrossDaySignOutIgnoresItsTimestamp(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 17, 0), Action: ActionSignIn},
		// Taps sign-out the next morning: the Tuesday entry still closes at
		// the Tuesday window end.
		{StudentID: "amy", At: at(5, 9, 0), Action: ActionSignOut},
	}
	out := Transform(events, occs, grace)

	rec := out["amy"][1]
	assert.True(t, rec.AutoClosed)
	assert.Equal(t, int64(2*3600), rec.TotalSeconds)
	require.Len(t, out["amy"], 1)
}

func TestTransform_SecondSignInSameDayIgnored(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 17, 0), Action: ActionSignIn},
		{StudentID: "amy", At: at(4, 17, 45), Action: ActionSignIn},
		{StudentID: "amy", At: at(4, 18, 0), Action: ActionSignOut},
	}
	out := Transform(events, occs, grace)

	rec := out["amy"][1]
	// The first sign-in of the day keeps the clock.
	assert.Equal(t, at(4, 17, 0), rec.SignInAt)
	assert.Equal(t, int64(3600), rec.TotalSeconds)
	assert.Equal(t, StatusOnTime, rec.Status)
}

func TestTransform_RepeatedCyclesAccumulate(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 17, 0), Action: ActionSignIn},
		{StudentID: "amy", At: at(4, 17, 30), Action: ActionSignOut},
		{StudentID: "amy", At: at(4, 18, 0), Action: ActionSignIn},
		{StudentID: "amy", At: at(4, 18, 20), Action: ActionSignOut},
	}
	out := Transform(events, occs, grace)

	require.Len(t, out["amy"], 1)
	rec := out["amy"][1]
	assert.Equal(t, int64(50*60), rec.TotalSeconds)
	// Status stays from the first cycle.
	assert.Equal(t, StatusOnTime, rec.Status)
}

func TestTransform_DroppedEvents(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		// Sign-out with nothing pending.
		{StudentID: "amy", At: at(4, 16, 0), Action: ActionSignOut},
		// Sign-in after the window already ended.
		{StudentID: "amy", At: at(4, 20, 0), Action: ActionSignIn},
		// Sign-in on a day with no meeting.
		{StudentID: "amy", At: at(5, 17, 0), Action: ActionSignIn},
	}
	out := Transform(events, occs, grace)
	assert.Empty(t, out["amy"])
}

func TestTransform_StudentsIndependent(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 17, 0), Action: ActionSignIn},
		{StudentID: "ben", At: at(4, 17, 20), Action: ActionSignIn},
		{StudentID: "amy", At: at(4, 18, 0), Action: ActionSignOut},
		{StudentID: "ben", At: at(4, 18, 30), Action: ActionSignOut},
	}
	out := Transform(events, occs, grace)

	assert.Equal(t, int64(3600), out["amy"][1].TotalSeconds)
	assert.Equal(t, int64(70*60), out["ben"][1].TotalSeconds)
	assert.Equal(t, StatusLate, out["ben"][1].Status)
}

func TestTransform_EarlyArrivalKeepsPreWindowDwell(t *testing.T) {
	occs := practiceOccurrences(t)
	events := []Event{
		{StudentID: "amy", At: at(4, 16, 30), Action: ActionSignIn},
		{StudentID: "amy", At: at(4, 18, 30), Action: ActionSignOut},
	}
	out := Transform(events, occs, grace)

	rec := out["amy"][1]
	assert.Equal(t, StatusOnTime, rec.Status)
	// Pre-window dwell counts toward the total.
	assert.Equal(t, int64(2*3600), rec.TotalSeconds)
}
