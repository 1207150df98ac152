package slots

import (
	"sort"
	"time"
)

// Generate steps from windowStart to windowEnd at a 30-minute cadence and
// returns every candidate [t, t+duration) that starts within business hours,
// ends inside the window, and overlaps no busy interval. Output is
// chronological by construction. It never fails; an impossible window
// resolves to an empty sequence.
func Generate(windowStart, windowEnd time.Time, busy []BusyInterval, durationMinutes int) []Slot {
	if durationMinutes <= 0 {
		durationMinutes = 60
	}

	var out []Slot
	step := stepMinutes * time.Minute
	duration := time.Duration(durationMinutes) * time.Minute

	for t := windowStart; t.Before(windowEnd); t = t.Add(step) {
		if t.Hour() < BusinessStartHour || t.Hour() >= BusinessEndHour {
			continue
		}
		end := t.Add(duration)
		if end.After(windowEnd) {
			continue
		}
		if overlapsAny(t, end, busy) {
			continue
		}
		out = append(out, newSlot(t, durationMinutes))
	}
	return out
}

func overlapsAny(start, end time.Time, busy []BusyInterval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// SortByProximity reorders slots by absolute distance of their start to the
// requested anchor. The sort is stable, so equidistant slots keep their
// chronological order and the earlier one wins.
func SortByProximity(s []Slot, anchor time.Time) {
	sort.SliceStable(s, func(i, j int) bool {
		return absDuration(s[i].Start.Sub(anchor)) < absDuration(s[j].Start.Sub(anchor))
	})
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
