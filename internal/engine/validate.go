package engine

import (
	"time"

	"github.com/slotwise/booking-assistant/internal/slots"
)

const (
	minDurationMinutes = 15
	maxDurationMinutes = 480
	maxAdvance         = 365 * 24 * time.Hour
)

// validateRequest checks the resolved appointment bounds. Violations are
// reported to the user, never silently corrected.
func validateRequest(targetDate time.Time, startHour, durationMinutes int, now time.Time) []string {
	var problems []string

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if targetDate.Before(today) {
		problems = append(problems, "appointments cannot be booked in the past")
	}
	if targetDate.After(now.Add(maxAdvance)) {
		problems = append(problems, "appointments cannot be booked more than one year in advance")
	}
	if startHour < slots.BusinessStartHour || startHour > slots.BusinessEndHour {
		problems = append(problems, "appointments are only available during business hours (9 AM - 5 PM)")
	}
	if durationMinutes < minDurationMinutes || durationMinutes > maxDurationMinutes {
		problems = append(problems, "duration must be between 15 minutes and 8 hours")
	}
	return problems
}
