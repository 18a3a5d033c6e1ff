package dispatch

import (
	"time"

	"github.com/mkorobov/notibox/internal/domain/schedule"
)

// NextOccurrence computes the schedule mutation after a successful run:
// the next trigger timestamp and whether the schedule stays active.
//
// The next trigger is derived from the previous trigger, never from the
// run time, so a late run does not shift the cadence. Daily and weekly
// are calendar-day adds; monthly clamps to the last valid day of the
// target month (Jan 31 -> Feb 28/29). All engine timestamps are UTC, so
// a calendar day here is a UTC day.
func NextOccurrence(prev time.Time, rec schedule.Recurrence) (time.Time, bool) {
	switch rec {
	case schedule.RecurrenceDaily:
		return prev.AddDate(0, 0, 1), true
	case schedule.RecurrenceWeekly:
		return prev.AddDate(0, 0, 7), true
	case schedule.RecurrenceMonthly:
		return addMonthClamped(prev), true
	default:
		return prev, false
	}
}

// addMonthClamped adds one calendar month, clamping the day of month.
// time.AddDate would normalize Jan 31 + 1 month to Mar 2/3 instead.
func addMonthClamped(t time.Time) time.Time {
	y, m, d := t.Date()
	last := daysIn(y, m+1, t.Location())
	if d > last {
		d = last
	}
	return time.Date(y, m+1, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
