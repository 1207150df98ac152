// Package slots turns busy calendar intervals into ranked, offerable
// appointment windows at a fixed 30-minute cadence, constrained to business
// hours.
package slots

import "time"

// Business hours bound every generated slot: a slot may start at 9:00 local
// and must start before 17:00.
const (
	BusinessStartHour = 9
	BusinessEndHour   = 17
)

// stepMinutes is the candidate cadence.
const stepMinutes = 30

// BusyInterval is an existing calendar event's time range.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps applies the half-open interval test: [a, b) and [c, d) overlap
// when a < d and b > c.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}

// Slot is a single offered appointment window. Slots are value objects:
// never mutated after creation, only selected by index.
type Slot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`

	// Precomputed display strings, e.g. "02:30 PM IST" and
	// "Friday, June 27, 2025".
	StartDisplay string `json:"start_display"`
	EndDisplay   string `json:"end_display"`
	DateDisplay  string `json:"date_display"`

	// DayName/DayDate label the source day for multi-day searches,
	// e.g. "Monday" / "June 30".
	DayName string `json:"day_name,omitempty"`
	DayDate string `json:"day_date,omitempty"`
}

func newSlot(start time.Time, durationMinutes int) Slot {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return Slot{
		Start:           start,
		End:             end,
		DurationMinutes: durationMinutes,
		StartDisplay:    formatClock(start),
		EndDisplay:      formatClock(end),
		DateDisplay:     start.Format("Monday, January 2, 2006"),
	}
}

func formatClock(t time.Time) string {
	return t.Format("03:04 PM MST")
}
