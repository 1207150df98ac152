package engine

import (
	"fmt"
	"strings"

	"github.com/slotwise/booking-assistant/internal/calendar"
	"github.com/slotwise/booking-assistant/internal/intent"
	"github.com/slotwise/booking-assistant/internal/slots"
)

// Response templating. One assistant message per turn; stages overwrite the
// pending reply, the machine appends whatever survives.

func greetingMessage() string {
	return "Hello! I'm your scheduling assistant. I can book appointments, check availability, and find the best time slots for you.\n\n" +
		"Try something like:\n" +
		"- \"I need to schedule a meeting for tomorrow afternoon\"\n" +
		"- \"What's my availability this week?\"\n" +
		"- \"Book me for next Friday at 2 PM\""
}

func helpMessage() string {
	return "Here's what I can do:\n\n" +
		"Book appointments:\n" +
		"- \"Schedule a meeting for tomorrow at 2 PM\"\n" +
		"- \"Book me for next Friday morning\"\n\n" +
		"Check availability:\n" +
		"- \"What's free on Tuesday?\"\n" +
		"- \"Show me slots for next week\"\n\n" +
		"Just tell me what you need in your own words."
}

func goodbyeMessage() string {
	return "Thanks for chatting! I'm here whenever you need help with your calendar. Have a great day!"
}

func intentGuidance(it intent.Intent) string {
	switch it {
	case intent.IntentSchedule:
		return "Happy to set that up. When would you like to meet? You can say things like \"tomorrow afternoon\", \"next Friday morning\", or \"Monday at 2:30 PM\"."
	case intent.IntentCheckAvailability:
		return "I can check availability for you. What date or period are you interested in? For example \"tomorrow\", \"this Friday\", or \"next week\"."
	case intent.IntentModify:
		return "I can help you change an appointment. What would you like to modify - the date, the time, or the duration?"
	case intent.IntentCancel:
		return "I can help you cancel an appointment. Which one - the date and time, or the meeting title?"
	default:
		return clarificationMessage()
	}
}

func clarificationMessage() string {
	return "Could you tell me a bit more about what you need? For example:\n" +
		"- \"I need to schedule a meeting\" - then tell me when\n" +
		"- \"Check my calendar\" - for what date or period?\n" +
		"- \"Book something\" - what kind of appointment, and when?"
}

func parsedDetailsMessage(describe string, dateDisplay string) string {
	return fmt.Sprintf("Got it - you're looking for %s on %s. Let me check availability and find the best options.", describe, dateDisplay)
}

// slotMenu renders the numbered offer. Numbering here is what selection
// indexes against, so the order must not change afterwards.
func slotMenu(candidates []slots.Slot, dateDisplay string) string {
	var b strings.Builder
	if dateDisplay != "" {
		fmt.Fprintf(&b, "Here are the available time slots for %s:\n\n", dateDisplay)
	} else {
		b.WriteString("Here are the available time slots:\n\n")
	}
	for i, s := range candidates {
		if s.DayName != "" {
			fmt.Fprintf(&b, "%d. %s %s, %s - %s (%d minutes)\n", i+1, s.DayName, s.DayDate, s.StartDisplay, s.EndDisplay, s.DurationMinutes)
		} else {
			fmt.Fprintf(&b, "%d. %s - %s (%d minutes)\n", i+1, s.StartDisplay, s.EndDisplay, s.DurationMinutes)
		}
	}
	b.WriteString("\nReply with the number (like \"1\" or \"slot 3\"), the time (like \"2:30 PM\"), or \"yes\" for the first option.")
	return b.String()
}

func autoSelectedMessage(s slots.Slot) string {
	return fmt.Sprintf("I found the best available slot for your requested time: %s - %s on %s. Booking it now.",
		s.StartDisplay, s.EndDisplay, s.DateDisplay)
}

func selectionConfirmedMessage(number int, s slots.Slot) string {
	return fmt.Sprintf("You picked slot %d: %s - %s on %s. Booking it now.",
		number, s.StartDisplay, s.EndDisplay, s.DateDisplay)
}

func noAvailabilityMessage() string {
	return "I couldn't find any available slots for that time. You could try a different day, a different part of the day (morning instead of afternoon), or a shorter meeting. What works better for you?"
}

func bookingConfirmedMessage(s slots.Slot, result calendar.EventResult) string {
	var b strings.Builder
	b.WriteString("Booking confirmed!\n\n")
	fmt.Fprintf(&b, "Date: %s\n", s.DateDisplay)
	fmt.Fprintf(&b, "Time: %s - %s\n", s.StartDisplay, s.EndDisplay)
	fmt.Fprintf(&b, "Duration: %d minutes\n", s.DurationMinutes)
	if result.EventID != "" {
		fmt.Fprintf(&b, "Event ID: %s\n", result.EventID)
	}
	if result.EventLink != "" {
		fmt.Fprintf(&b, "Calendar link: %s\n", result.EventLink)
	}
	b.WriteString("\nYou'll receive a calendar invitation. Need anything else?")
	return b.String()
}

func validationMessage(problems []string) string {
	return "I can't book that as requested:\n- " + strings.Join(problems, "\n- ") + "\n\nCould you pick a different time?"
}

func errorMessage(category ErrorCategory) string {
	switch category {
	case CategoryGatewayAuth:
		return "I'm having trouble accessing the calendar right now. This is usually temporary - please try again in a few minutes."
	case CategoryGatewayConflict:
		return "That slot was just taken. Could you pick another one from the list, or ask me to check availability again?"
	case CategoryValidation:
		return "That request is outside what I can book. Appointments run 15 minutes to 8 hours, during business hours (9 AM - 5 PM), up to one year ahead."
	case CategoryParse:
		return clarificationMessage()
	default:
		return "Something unexpected happened on my end. It's usually temporary - please try again, or rephrase what you need."
	}
}

func bookingFailedMessage() string {
	return "I wasn't able to complete the booking. The slot may have just been taken, or the calendar had a temporary issue. Let's try a different time slot."
}
