// Package engine drives one conversation turn through the booking state
// machine: intent, detail collection, availability, slot offer, booking.
package engine

import (
	"time"

	"github.com/slotwise/booking-assistant/internal/intent"
	"github.com/slotwise/booking-assistant/internal/slots"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one utterance in the transcript. The transcript is append-only
// and never reordered; it is the source of truth for the last user input.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Stage names a node in the conversation graph. Stored for observability;
// actual routing is recomputed from state fields every turn.
type Stage string

const (
	StageGreeting          Stage = "greeting"
	StageUnderstandIntent  Stage = "understand_intent"
	StageCollectDetails    Stage = "collect_details"
	StageCheckAvailability Stage = "check_availability"
	StageSuggestSlots      Stage = "suggest_slots"
	StageConfirmBooking    Stage = "confirm_booking"
	StageBookAppointment   Stage = "book_appointment"
	StageHandleError       Stage = "handle_error"
	StageEnd               Stage = "end"
)

// Appointment is the mutable draft built up across turns. StartTime and
// EndTime are only ever set together, once a slot is chosen.
type Appointment struct {
	TargetDate      time.Time   `json:"target_date"`
	StartHour       int         `json:"start_hour"`
	DurationMinutes int         `json:"duration_minutes"`
	Title           string      `json:"title,omitempty"`
	StartTime       *time.Time  `json:"start_time,omitempty"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	SelectedSlot    *slots.Slot `json:"selected_slot,omitempty"`
	// ParsedInput is the utterance the date details came from, kept for
	// the auto-generated event title.
	ParsedInput string `json:"parsed_input,omitempty"`
}

// Flags are short-circuit signals set by a stage to influence routing
// without overloading Intent.
type Flags struct {
	SimpleGreeting   bool `json:"simple_greeting"`
	AutoSelectedSlot bool `json:"auto_selected_slot"`
}

// ConversationState is the single record threaded through every stage. The
// caller persists it between turns keyed by SessionID; the engine assumes
// at most one in-flight turn per session.
type ConversationState struct {
	SessionID string        `json:"session_id"`
	Messages  []Message     `json:"messages"`
	Stage     Stage         `json:"stage"`
	Intent    intent.Intent `json:"intent,omitempty"`
	// Context accumulates loosely-typed conversation facts (date, time,
	// duration, urgency, participants). Entity extraction merges into
	// it, never replaces it.
	Context     map[string]any `json:"context,omitempty"`
	Appointment Appointment    `json:"appointment"`
	// CandidateSlots is replaced wholesale each time availability is
	// recomputed. Its 1-based numbering must match what was last shown,
	// so it is never resorted between display and selection.
	CandidateSlots   []slots.Slot  `json:"candidate_slots,omitempty"`
	BookingConfirmed bool          `json:"booking_confirmed"`
	Error            string        `json:"error,omitempty"`
	ErrorCategory    ErrorCategory `json:"error_category,omitempty"`
	Flags            Flags         `json:"flags"`
}

// NewConversationState starts an empty conversation for the session.
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{
		SessionID: sessionID,
		Stage:     StageGreeting,
		Context:   map[string]any{},
	}
}

// LastUserMessage returns the most recent user utterance, or "".
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Text
		}
	}
	return ""
}

func (s *ConversationState) userTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// mergeContext folds extracted facts into the running context, skipping
// empty values so later turns never erase earlier ones.
func (s *ConversationState) mergeContext(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	if s.Context == nil {
		s.Context = map[string]any{}
	}
	for k, v := range delta {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok && str == "" {
			continue
		}
		s.Context[k] = v
	}
}

// mergeContextMissing is mergeContext for low-confidence sources: it fills
// gaps but never replaces a key the conversation already established.
func (s *ConversationState) mergeContextMissing(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	if s.Context == nil {
		s.Context = map[string]any{}
	}
	for k, v := range delta {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok && str == "" {
			continue
		}
		if _, exists := s.Context[k]; exists {
			continue
		}
		s.Context[k] = v
	}
}

// awaitingSelection reports whether a slot menu is outstanding: candidates
// were shown and the conversation has not reached a terminal booking state.
func (s *ConversationState) awaitingSelection() bool {
	return len(s.CandidateSlots) > 0 && !s.BookingConfirmed && s.Error == ""
}
