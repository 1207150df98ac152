package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/booking-assistant/internal/dateparse"
)

type fakeBusySource struct {
	intervals []BusyInterval
	err       error
	calls     int
}

func (f *fakeBusySource) ListBusy(ctx context.Context, start, end time.Time) ([]BusyInterval, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var within []BusyInterval
	for _, b := range f.intervals {
		if b.Overlaps(start, end) {
			within = append(within, b)
		}
	}
	return within, nil
}

func specificPref(hour int) dateparse.DatePreference {
	return dateparse.DatePreference{
		TargetDate:      day,
		Window:          dateparse.WindowSpecificTime,
		StartHour:       hour,
		SpecificTime:    true,
		DurationMinutes: 60,
	}
}

func TestSuggestSpecificTimeExactTier(t *testing.T) {
	src := &fakeBusySource{}
	f := NewFinder(src, nil)

	got, err := f.Suggest(context.Background(), specificPref(14))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, at(14, 0), got[0].Start)
	assert.Equal(t, at(15, 0), got[0].End)
}

func TestSuggestWidensWhenExactTierBusy(t *testing.T) {
	// 14:00-15:00 is taken, so the exact tier is empty and the ±1h tier
	// must supply the answer. Nearest available is 13:00.
	src := &fakeBusySource{intervals: []BusyInterval{{Start: at(14, 0), End: at(15, 0)}}}
	f := NewFinder(src, nil)

	got, err := f.Suggest(context.Background(), specificPref(14))
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, at(13, 0), got[0].Start)
	assert.NotEqual(t, 14, got[0].Start.Hour())
}

func TestSuggestLadderStopsAtFirstNonEmptyTier(t *testing.T) {
	// Busy 14:00-15:00 leaves the ±1h tier with a 13:00 opening; the
	// ±2h tier (12:00-16:59) must not run. Mark 12:00-13:00 busy too so
	// any ±2h result would differ.
	src := &fakeBusySource{intervals: []BusyInterval{
		{Start: at(14, 0), End: at(15, 0)},
		{Start: at(12, 0), End: at(13, 0)},
	}}
	f := NewFinder(src, nil)

	got, err := f.Suggest(context.Background(), specificPref(14))
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Start.Hour(), 13, "slot from outside the ±1h tier: %v", s.Start)
		assert.LessOrEqual(t, s.Start.Hour(), 15)
	}
	// Exact tier plus one widening: two busy lookups, no third.
	assert.Equal(t, 2, src.calls)
}

func TestSuggestLadderExhaustedReturnsEmpty(t *testing.T) {
	// The whole day is busy; the widest tier still finds nothing.
	src := &fakeBusySource{intervals: []BusyInterval{{Start: at(9, 0), End: at(17, 0)}}}
	f := NewFinder(src, nil)

	got, err := f.Suggest(context.Background(), specificPref(14))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 3, src.calls)
}

func TestSuggestWindowPreference(t *testing.T) {
	src := &fakeBusySource{}
	f := NewFinder(src, nil)

	pref := dateparse.DatePreference{
		TargetDate:      day,
		Window:          dateparse.WindowMorning,
		StartHour:       9,
		DurationMinutes: 60,
	}
	got, err := f.Suggest(context.Background(), pref)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, at(9, 0), got[0].Start)
	for _, s := range got {
		assert.Less(t, s.Start.Hour(), 12)
	}
}

func TestSuggestEveningWindowOutsideBusinessHours(t *testing.T) {
	// Evening starts where business hours end, so nothing is offered.
	src := &fakeBusySource{}
	f := NewFinder(src, nil)

	pref := dateparse.DatePreference{
		TargetDate:      day,
		Window:          dateparse.WindowEvening,
		StartHour:       17,
		DurationMinutes: 60,
	}
	got, err := f.Suggest(context.Background(), pref)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestWeekSearch(t *testing.T) {
	src := &fakeBusySource{}
	f := NewFinder(src, nil)

	pref := dateparse.DatePreference{
		TargetDate:      day,
		Window:          dateparse.WindowBusinessHours,
		StartHour:       10,
		WeekSearch:      true,
		DurationMinutes: 60,
	}
	got, err := f.Suggest(context.Background(), pref)
	require.NoError(t, err)
	assert.Len(t, got, weekSearchLimit)

	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Start.Before(got[i-1].Start), "week search must be chronological")
	}
	for _, s := range got {
		assert.NotEmpty(t, s.DayName)
		assert.NotEmpty(t, s.DayDate)
	}
}

func TestSuggestPropagatesGatewayError(t *testing.T) {
	src := &fakeBusySource{err: errors.New("calendar down")}
	f := NewFinder(src, nil)

	_, err := f.Suggest(context.Background(), specificPref(10))
	assert.Error(t, err)
}
