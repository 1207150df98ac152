package slots

import (
	"context"
	"sort"
	"time"

	"github.com/slotwise/booking-assistant/internal/dateparse"
	"github.com/slotwise/booking-assistant/pkg/logging"
)

// weekSearchDays is how many consecutive days an unscoped week request scans.
const weekSearchDays = 7

// weekSearchLimit caps the combined result of a week search.
const weekSearchLimit = 10

// BusySource lists existing busy intervals within a timezone-aware range.
// The calendar gateway satisfies this.
type BusySource interface {
	ListBusy(ctx context.Context, start, end time.Time) ([]BusyInterval, error)
}

// Finder resolves a parsed date preference into offered slots by querying a
// BusySource and running the generator over the appropriate windows.
type Finder struct {
	busy   BusySource
	logger *logging.Logger
}

// NewFinder creates a slot finder over the given busy source.
func NewFinder(busy BusySource, logger *logging.Logger) *Finder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Finder{busy: busy, logger: logger.Component("slots")}
}

// Suggest returns slots for the preference. Specific-time requests walk the
// exact / ±1h / ±2h widening ladder and come back sorted by proximity to the
// requested hour; week searches fan out over seven days; window requests
// cover the named part of day. An empty result is not an error.
func (f *Finder) Suggest(ctx context.Context, pref dateparse.DatePreference) ([]Slot, error) {
	switch {
	case pref.WeekSearch:
		return f.weekSearch(ctx, pref)
	case pref.SpecificTime:
		return f.specificTimeLadder(ctx, pref)
	default:
		start, end := windowBounds(pref)
		return f.generateRange(ctx, start, end, pref.DurationMinutes)
	}
}

// specificTimeLadder tries an exact one-hour slot at the requested hour,
// then widens to ±1 hour, then ±2 hours clamped to business hours. Each tier
// runs only if the previous one was empty, and the first non-empty tier is
// returned nearest-first.
func (f *Finder) specificTimeLadder(ctx context.Context, pref dateparse.DatePreference) ([]Slot, error) {
	hour := pref.StartHour
	anchor := dayAt(pref.TargetDate, hour, 0, 0)

	exactStart := anchor
	exactEnd := exactStart.Add(time.Duration(pref.DurationMinutes) * time.Minute)
	found, err := f.generateRange(ctx, exactStart, exactEnd, pref.DurationMinutes)
	if err != nil {
		return nil, err
	}

	for _, widen := range []int{1, 2} {
		if len(found) > 0 {
			break
		}
		startHour := max(BusinessStartHour, hour-widen)
		endHour := min(BusinessEndHour, hour+widen)
		start := dayAt(pref.TargetDate, startHour, 0, 0)
		end := dayAt(pref.TargetDate, endHour, 59, 59)
		found, err = f.generateRange(ctx, start, end, pref.DurationMinutes)
		if err != nil {
			return nil, err
		}
	}

	SortByProximity(found, anchor)
	return found, nil
}

func (f *Finder) weekSearch(ctx context.Context, pref dateparse.DatePreference) ([]Slot, error) {
	var all []Slot
	for i := 0; i < weekSearchDays; i++ {
		day := pref.TargetDate.AddDate(0, 0, i)
		start := dayAt(day, BusinessStartHour, 0, 0)
		end := dayAt(day, BusinessEndHour, 0, 0)
		daySlots, err := f.generateRange(ctx, start, end, pref.DurationMinutes)
		if err != nil {
			return nil, err
		}
		for j := range daySlots {
			daySlots[j].DayName = day.Format("Monday")
			daySlots[j].DayDate = day.Format("January 2")
		}
		all = append(all, daySlots...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })
	if len(all) > weekSearchLimit {
		all = all[:weekSearchLimit]
	}
	return all, nil
}

func (f *Finder) generateRange(ctx context.Context, start, end time.Time, durationMinutes int) ([]Slot, error) {
	busy, err := f.busy.ListBusy(ctx, start, end)
	if err != nil {
		return nil, err
	}
	generated := Generate(start, end, busy, durationMinutes)
	f.logger.Debug("generated slots",
		"window_start", start,
		"window_end", end,
		"busy", len(busy),
		"slots", len(generated),
	)
	return generated, nil
}

// windowBounds maps a part-of-day window to its generation range.
func windowBounds(pref dateparse.DatePreference) (time.Time, time.Time) {
	day := pref.TargetDate
	switch pref.Window {
	case dateparse.WindowMorning:
		return dayAt(day, 9, 0, 0), dayAt(day, 12, 0, 0)
	case dateparse.WindowAfternoon:
		return dayAt(day, 13, 0, 0), dayAt(day, 17, 0, 0)
	case dateparse.WindowEvening:
		return dayAt(day, 17, 0, 0), dayAt(day, 19, 0, 0)
	default:
		return dayAt(day, BusinessStartHour, 0, 0), dayAt(day, BusinessEndHour, 0, 0)
	}
}

func dayAt(day time.Time, hour, minute, second int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, day.Location())
}
