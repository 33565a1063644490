package reminder

import (
	"fmt"
	"time"

	"github.com/clinova/scheduling-engine/internal/scheduling"
)

// PlanSendTimes computes the send instants for an appointment starting at
// startsAt, one per offset. Each naive instant (startsAt minus offset) is
// shifted forward to the next instant that falls on an allowed weekday inside
// the preference's send window; an instant that already satisfies both is
// left untouched. Instants already in the past are re-based on now before
// the shift, and instants that would land at or after the appointment start
// are dropped.
func PlanSendTimes(startsAt time.Time, pref Preference, offsets []time.Duration, now time.Time) ([]time.Time, error) {
	loc, err := time.LoadLocation(pref.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load preference timezone %q: %w", pref.Timezone, err)
	}

	var out []time.Time
	for _, offset := range offsets {
		naive := startsAt.Add(-offset)
		if naive.Before(now) {
			naive = now
		}

		shifted, err := shiftIntoWindow(naive, pref, loc)
		if err != nil {
			return nil, err
		}
		if !shifted.Before(startsAt) {
			continue
		}
		out = append(out, shifted)
	}

	return out, nil
}

// shiftIntoWindow moves t forward to the next instant on an allowed weekday
// inside [window_start, window_end) in loc. It scans at most eight days; a
// preference with no allowed day at all is a configuration error.
func shiftIntoWindow(t time.Time, pref Preference, loc *time.Location) (time.Time, error) {
	cur := t.In(loc)

	for i := 0; i < 8; i++ {
		if dayAllowed(scheduling.ISOWeekday(cur), pref.DaysOfWeek) {
			winStart, err := scheduling.AtTimeOfDay(cur, pref.WindowStart, loc)
			if err != nil {
				return time.Time{}, fmt.Errorf("window start: %w", err)
			}
			winEnd, err := scheduling.AtTimeOfDay(cur, pref.WindowEnd, loc)
			if err != nil {
				return time.Time{}, fmt.Errorf("window end: %w", err)
			}
			if cur.Before(winStart) {
				return winStart, nil
			}
			if cur.Before(winEnd) {
				return cur, nil
			}
		}
		y, m, d := cur.Date()
		cur = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}

	return time.Time{}, fmt.Errorf("no allowed send window within a week of %s", t.Format(time.RFC3339))
}

func dayAllowed(weekday int, days []int) bool {
	for _, d := range days {
		if d == weekday {
			return true
		}
	}
	return false
}
