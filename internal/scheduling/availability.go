package scheduling

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ISOWeekday maps time.Weekday onto ISO numbering, Monday = 1, Sunday = 7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// ResolveOpenIntervals turns the weekday rules plus the date's overrides into
// the set of open windows for one calendar day. Rules for other weekdays must
// already be filtered out by the caller; rules are treated independently, so
// overlapping rules may yield overlapping windows.
//
// Block overrides subtract their range from every base window, splitting a
// window in two when the block lands in the middle. When one or more Extra
// overrides exist for the date, the block-adjusted windows are intersected
// with the union of the Extra windows: extras restrict, they never add time
// outside the rules. No rules means the provider is closed that day no matter
// what the overrides say.
func ResolveOpenIntervals(rules []AvailabilityRule, overrides []DateOverride, date time.Time, loc *time.Location) ([]OpenWindow, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	var blocks, extras []Interval
	for _, ov := range overrides {
		ivLoc := loc
		iv, err := localInterval(date, ov.StartTime, ov.EndTime, ivLoc)
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", ov.ID, err)
		}
		switch ov.Kind {
		case OverrideBlock:
			blocks = append(blocks, iv)
		case OverrideExtra:
			extras = append(extras, iv)
		}
	}

	var windows []OpenWindow
	for _, rule := range rules {
		ruleLoc := loc
		if rule.Timezone != "" {
			l, err := time.LoadLocation(rule.Timezone)
			if err != nil {
				return nil, fmt.Errorf("rule %s: load timezone %q: %w", rule.ID, rule.Timezone, err)
			}
			ruleLoc = l
		}

		base, err := localInterval(date, rule.StartTime, rule.EndTime, ruleLoc)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}

		open := subtractAll([]Interval{base}, blocks)
		if len(extras) > 0 {
			open = intersectWithUnion(open, extras)
		}

		for _, iv := range open {
			windows = append(windows, OpenWindow{Interval: iv, GranularityMinutes: rule.SlotGranularityMinutes})
		}
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].Start.Before(windows[j].Start)
	})

	return windows, nil
}

// subtractAll removes every block from the set of intervals, splitting where
// a block lands inside an interval.
func subtractAll(intervals []Interval, blocks []Interval) []Interval {
	open := intervals
	for _, block := range blocks {
		var next []Interval
		for _, iv := range open {
			if !iv.Overlaps(block) {
				next = append(next, iv)
				continue
			}
			if block.Start.After(iv.Start) {
				next = append(next, Interval{Start: iv.Start, End: block.Start})
			}
			if block.End.Before(iv.End) {
				next = append(next, Interval{Start: block.End, End: iv.End})
			}
		}
		open = next
	}
	return open
}

// intersectWithUnion keeps only the parts of each interval covered by at
// least one of the windows.
func intersectWithUnion(intervals []Interval, windows []Interval) []Interval {
	var out []Interval
	for _, iv := range intervals {
		for _, win := range windows {
			start := iv.Start
			if win.Start.After(start) {
				start = win.Start
			}
			end := iv.End
			if win.End.Before(end) {
				end = win.End
			}
			if start.Before(end) {
				out = append(out, Interval{Start: start, End: end})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// localInterval places a HH:MM wall-clock range onto the given date in loc.
func localInterval(date time.Time, startHHMM, endHHMM string, loc *time.Location) (Interval, error) {
	start, err := AtTimeOfDay(date, startHHMM, loc)
	if err != nil {
		return Interval{}, err
	}
	end, err := AtTimeOfDay(date, endHHMM, loc)
	if err != nil {
		return Interval{}, err
	}
	if !end.After(start) {
		return Interval{}, fmt.Errorf("window %s-%s is empty or inverted", startHHMM, endHHMM)
	}
	return Interval{Start: start, End: end}, nil
}

// AtTimeOfDay places a HH:MM wall time onto the given date in loc.
func AtTimeOfDay(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("malformed time %q, want HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("malformed hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("malformed minute in %q", hhmm)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc), nil
}
