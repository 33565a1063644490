package scheduling

import (
	"sort"
	"time"
)

// GenerateCandidates steps a cursor through each open window and keeps every
// start that satisfies the lead time and does not collide with an occupying
// appointment. Candidates from overlapping windows are deduplicated by start
// instant. The result is unscored and ordered by start time.
func GenerateCandidates(windows []OpenWindow, duration time.Duration, now time.Time, leadTime time.Duration, appts []Appointment) []CandidateSlot {
	earliest := now.Add(leadTime)

	occupied := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if a.Status.Occupies() {
			occupied = append(occupied, Interval{Start: a.StartsAt, End: a.EndsAt})
		}
	}

	seen := make(map[int64]bool)
	var out []CandidateSlot

	for _, win := range windows {
		step := time.Duration(win.GranularityMinutes) * time.Minute
		if step <= 0 {
			step = duration
		}
		for cursor := win.Start; !cursor.Add(duration).After(win.End); cursor = cursor.Add(step) {
			if cursor.Before(earliest) {
				continue
			}
			slot := Interval{Start: cursor, End: cursor.Add(duration)}
			if collides(slot, occupied) {
				continue
			}
			key := cursor.Unix()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, CandidateSlot{Start: slot.Start, End: slot.End})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func collides(slot Interval, occupied []Interval) bool {
	for _, iv := range occupied {
		if slot.Overlaps(iv) {
			return true
		}
	}
	return false
}
