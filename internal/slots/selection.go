package slots

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	indexRE   = regexp.MustCompile(`^(?:slot\s*)?#?(\d+)\.?$`)
	clock12RE = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	clock24RE = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

var confirmationKeywords = []string{
	"yes", "confirm", "book", "schedule", "okay", "ok", "sure",
	"perfect", "that works", "sounds good",
}

// DetectSelection resolves a user reply against the slots that were last
// shown. A standalone number ("2", "slot 3") is a 1-based menu index and
// takes priority over a clock-time match ("2:30 PM", "14:30"). Returns nil
// when the reply picks nothing.
func DetectSelection(message string, presented []Slot) *Slot {
	msg := strings.TrimSpace(strings.ToLower(message))
	if msg == "" || len(presented) == 0 {
		return nil
	}

	if m := indexRE.FindStringSubmatch(msg); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= len(presented) {
			return &presented[n-1]
		}
		return nil
	}

	if m := clock12RE.FindStringSubmatch(msg); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if m[3] == "pm" && hour != 12 {
			hour += 12
		} else if m[3] == "am" && hour == 12 {
			hour = 0
		}
		return matchClock(presented, hour, minute)
	}

	if m := clock24RE.FindStringSubmatch(msg); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return matchClock(presented, hour, minute)
	}

	return nil
}

func matchClock(presented []Slot, hour, minute int) *Slot {
	for i := range presented {
		if presented[i].Start.Hour() == hour && presented[i].Start.Minute() == minute {
			return &presented[i]
		}
	}
	return nil
}

// IsConfirmation reports whether the reply is a generic confirmation
// ("yes", "book it"). Checked only after index and time matching fail.
func IsConfirmation(message string) bool {
	msg := strings.ToLower(message)
	for _, kw := range confirmationKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
