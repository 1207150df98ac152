// Package dateparse resolves natural-language scheduling preferences
// ("tomorrow afternoon", "next friday at 2:30 pm") into structured dates and
// time windows using deterministic pattern rules. No model calls are made.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Window classifies the part of day a preference targets.
type Window string

const (
	WindowMorning       Window = "morning"
	WindowAfternoon     Window = "afternoon"
	WindowEvening       Window = "evening"
	WindowSpecificTime  Window = "specific_time"
	WindowBusinessHours Window = "business_hours"
)

// DefaultDurationMinutes is assumed when the utterance does not carry one.
const DefaultDurationMinutes = 60

// DatePreference is the structured result of parsing one utterance. It is
// recomputed fresh per turn and never persisted beyond the turn that
// produced it.
type DatePreference struct {
	// TargetDate is midnight of the resolved calendar date in the
	// reference location.
	TargetDate time.Time `json:"target_date"`
	Window     Window    `json:"window"`
	StartHour  int       `json:"start_hour"`
	// StartMinute is only meaningful when SpecificTime is set.
	StartMinute int `json:"start_minute"`
	// SpecificTime distinguishes an explicit clock time from a window
	// keyword. Downstream it decides between auto-selecting the nearest
	// slot and presenting a menu.
	SpecificTime bool `json:"specific_time"`
	// WeekSearch marks an unscoped "this week"/"next week" request that
	// should fan out across seven days.
	WeekSearch      bool   `json:"week_search"`
	DurationMinutes int    `json:"duration_minutes"`
	RawText         string `json:"raw_text,omitempty"`
}

// Anchor returns the preferred start instant on the target date.
func (p DatePreference) Anchor() time.Time {
	return time.Date(p.TargetDate.Year(), p.TargetDate.Month(), p.TargetDate.Day(),
		p.StartHour, p.StartMinute, 0, 0, p.TargetDate.Location())
}

// Describe renders the preference the way it is echoed back to the user.
func (p DatePreference) Describe() string {
	switch p.Window {
	case WindowMorning:
		return "morning (9 AM - 12 PM)"
	case WindowAfternoon:
		return "afternoon (1 PM - 5 PM)"
	case WindowEvening:
		return "evening (5 PM - 7 PM)"
	case WindowSpecificTime:
		h := p.StartHour
		m := p.StartMinute
		return "specific time (" + pad2(h) + ":" + pad2(m) + ")"
	default:
		return "business hours (9 AM - 5 PM)"
	}
}

var (
	time12hRE = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	time24hRE = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"sunday", time.Sunday},
}

// Parse resolves an utterance against the given reference time. It is pure
// and deterministic; unrecognized or malformed input falls back to the safe
// default of tomorrow during business hours with a 60-minute duration.
func Parse(utterance string, now time.Time) DatePreference {
	text := strings.ToLower(utterance)

	pref := DatePreference{
		Window:          WindowBusinessHours,
		StartHour:       10,
		DurationMinutes: DefaultDurationMinutes,
		RawText:         strings.TrimSpace(utterance),
	}

	pref.TargetDate = resolveDate(text, now)
	resolveTime(text, &pref)

	if !pref.SpecificTime && (strings.Contains(text, "this week") || strings.Contains(text, "next week")) {
		pref.WeekSearch = true
	}

	return pref
}

// resolveDate applies the date rules in priority order: explicit relative
// keyword, "next <weekday>", "next week", then a default of tomorrow. A bare
// weekday name without the "next" prefix is deliberately not a date signal.
func resolveDate(text string, now time.Time) time.Time {
	today := midnight(now)

	if strings.Contains(text, "tomorrow") || strings.Contains(text, "next day") {
		return today.AddDate(0, 0, 1)
	}

	for _, wd := range weekdayNames {
		if !strings.Contains(text, "next "+wd.name) {
			continue
		}
		days := int(wd.day-now.Weekday()+7) % 7
		// "next friday" said on a Friday means one week out, never today.
		if days == 0 {
			days = 7
		}
		return today.AddDate(0, 0, days)
	}

	if strings.Contains(text, "next week") {
		return today.AddDate(0, 0, 7)
	}

	return today.AddDate(0, 0, 1)
}

// resolveTime applies the time rules in priority order: 12-hour clock,
// 24-hour clock, window keyword, business-hours default. Times outside valid
// ranges are ignored rather than errored.
func resolveTime(text string, pref *DatePreference) {
	if m := time12hRE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour >= 1 && hour <= 12 && minute <= 59 {
			if m[3] == "pm" && hour != 12 {
				hour += 12
			} else if m[3] == "am" && hour == 12 {
				hour = 0
			}
			pref.Window = WindowSpecificTime
			pref.SpecificTime = true
			pref.StartHour = hour
			pref.StartMinute = minute
			return
		}
	}

	if m := time24hRE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59 {
			pref.Window = WindowSpecificTime
			pref.SpecificTime = true
			pref.StartHour = hour
			pref.StartMinute = minute
			return
		}
	}

	switch {
	case strings.Contains(text, "morning"):
		pref.Window = WindowMorning
		pref.StartHour = 9
	case strings.Contains(text, "afternoon"):
		pref.Window = WindowAfternoon
		pref.StartHour = 13
	case strings.Contains(text, "evening"):
		pref.Window = WindowEvening
		pref.StartHour = 17
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
