package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/booking-assistant/internal/calendar"
	"github.com/slotwise/booking-assistant/internal/intent"
	"github.com/slotwise/booking-assistant/internal/llm"
	"github.com/slotwise/booking-assistant/internal/slots"
)

// testNow is a Friday; "tomorrow" resolves to Saturday June 28.
var testNow = time.Date(2025, 6, 27, 12, 0, 0, 0, time.UTC)

func tomorrowAt(hour, minute int) time.Time {
	return time.Date(2025, 6, 28, hour, minute, 0, 0, time.UTC)
}

// fakeLLM answers the intent prompt and the entity prompt separately so the
// classifier's two calls do not bleed into each other.
type fakeLLM struct {
	intentJSON   string
	entitiesJSON string
	err          error
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if f.err != nil {
		return llm.Response{}, f.err
	}
	if len(req.Messages) > 0 && strings.HasPrefix(req.Messages[0].Content, "Extract from:") {
		return llm.Response{Text: f.entitiesJSON}, nil
	}
	return llm.Response{Text: f.intentJSON}, nil
}

type fakeGateway struct {
	busy []slots.BusyInterval
	// busyAfterCreate is added to ListBusy results once CreateEvent has
	// been attempted, to simulate losing the slot to a race.
	busyAfterCreate []slots.BusyInterval
	authErr         error
	createErr       error
	createFailures  int // fail this many creates before succeeding
	createCalls     int
	created         []calendar.EventRequest
	panicOnAuth     bool
}

func (g *fakeGateway) Authenticate(ctx context.Context) error {
	if g.panicOnAuth {
		panic("gateway exploded")
	}
	return g.authErr
}

func (g *fakeGateway) ListBusy(ctx context.Context, start, end time.Time) ([]slots.BusyInterval, error) {
	all := g.busy
	if g.createCalls > 0 {
		all = append(append([]slots.BusyInterval{}, all...), g.busyAfterCreate...)
	}
	var within []slots.BusyInterval
	for _, b := range all {
		if b.Overlaps(start, end) {
			within = append(within, b)
		}
	}
	return within, nil
}

func (g *fakeGateway) CreateEvent(ctx context.Context, req calendar.EventRequest) (calendar.EventResult, error) {
	g.createCalls++
	if g.createErr != nil && g.createCalls <= g.createFailures {
		return calendar.EventResult{Success: false, Error: g.createErr.Error()}, g.createErr
	}
	g.created = append(g.created, req)
	return calendar.EventResult{Success: true, EventID: "evt-123", EventLink: "https://calendar.example/evt-123"}, nil
}

func scheduleLLM() *fakeLLM {
	return &fakeLLM{
		intentJSON:   `{"intent": "schedule", "confidence": "High"}`,
		entitiesJSON: `{}`,
	}
}

func newTestEngine(gw *fakeGateway, client llm.Client) *Engine {
	classifier := intent.NewClassifier(client, "test-model", 16, 1, nil)
	return New(gw, classifier, Options{
		Now:               func() time.Time { return testNow },
		Location:          time.UTC,
		BookingMaxRetries: 2,
	})
}

func assistantMessages(state *ConversationState) []Message {
	var out []Message
	for _, m := range state.Messages {
		if m.Role == RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

func TestTurnSimpleGreeting(t *testing.T) {
	gw := &fakeGateway{}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "hi")

	assert.True(t, state.Flags.SimpleGreeting)
	require.Len(t, assistantMessages(state), 1)
	assert.Equal(t, 0, gw.createCalls)
}

func TestTurnSpecificTimeAutoSelectsAndBooks(t *testing.T) {
	gw := &fakeGateway{}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow at 2pm")

	assert.Equal(t, 14, state.Appointment.StartHour)
	assert.True(t, state.Flags.AutoSelectedSlot)
	require.Len(t, state.CandidateSlots, 1)
	assert.Equal(t, tomorrowAt(14, 0), state.CandidateSlots[0].Start)
	assert.Equal(t, tomorrowAt(15, 0), state.CandidateSlots[0].End)

	assert.True(t, state.BookingConfirmed)
	require.Len(t, gw.created, 1)
	assert.Equal(t, tomorrowAt(14, 0), gw.created[0].Start)
	assert.Equal(t, "Appointment - book a meeting tomorrow at 2pm", gw.created[0].Title)
	require.Len(t, assistantMessages(state), 1)
	assert.Contains(t, assistantMessages(state)[0].Text, "Booking confirmed")
}

func TestTurnWidensAroundBusyRequestedHour(t *testing.T) {
	gw := &fakeGateway{busy: []slots.BusyInterval{{Start: tomorrowAt(14, 0), End: tomorrowAt(15, 0)}}}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow at 2pm")

	require.NotNil(t, state.Appointment.SelectedSlot)
	got := state.Appointment.SelectedSlot.Start.Hour()
	assert.NotEqual(t, 14, got)
	assert.Contains(t, []int{13, 15}, got)
}

func TestTurnMenuSelectionByIndex(t *testing.T) {
	gw := &fakeGateway{}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow afternoon")

	require.NotEmpty(t, state.CandidateSlots)
	require.False(t, state.BookingConfirmed)
	menu := assistantMessages(state)
	require.Len(t, menu, 1)
	assert.Contains(t, menu[0].Text, "1.")
	shown := append([]slots.Slot{}, state.CandidateSlots...)

	e.ProcessTurn(context.Background(), state, "2")

	require.NotNil(t, state.Appointment.SelectedSlot)
	assert.Equal(t, shown[1].Start, state.Appointment.SelectedSlot.Start)
	assert.Equal(t, shown[1].Start, *state.Appointment.StartTime)
	assert.Equal(t, shown[1].End, *state.Appointment.EndTime)
	assert.True(t, state.BookingConfirmed)
	assert.Len(t, assistantMessages(state), 2)
}

func TestTurnMenuConfirmationTakesFirstSlot(t *testing.T) {
	gw := &fakeGateway{}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow morning")
	require.NotEmpty(t, state.CandidateSlots)
	first := state.CandidateSlots[0]

	e.ProcessTurn(context.Background(), state, "yes")

	require.NotNil(t, state.Appointment.SelectedSlot)
	assert.Equal(t, first.Start, state.Appointment.SelectedSlot.Start)
	assert.True(t, state.BookingConfirmed)
}

func TestTurnUnresolvedReplyRepromptsWithoutStateChange(t *testing.T) {
	gw := &fakeGateway{}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow afternoon")
	shown := append([]slots.Slot{}, state.CandidateSlots...)

	e.ProcessTurn(context.Background(), state, "hmm what do you think")

	assert.Nil(t, state.Appointment.SelectedSlot)
	assert.False(t, state.BookingConfirmed)
	require.Len(t, state.CandidateSlots, len(shown))
	for i := range shown {
		assert.Equal(t, shown[i].Start, state.CandidateSlots[i].Start, "menu numbering must stay stable")
	}
}

func TestTurnBookingRetriesThenSlotTaken(t *testing.T) {
	gw := &fakeGateway{
		createErr:       errors.New("backend unavailable"),
		createFailures:  10,
		busyAfterCreate: []slots.BusyInterval{{Start: tomorrowAt(14, 0), End: tomorrowAt(15, 0)}},
	}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow at 2pm")

	assert.False(t, state.BookingConfirmed)
	assert.Empty(t, state.Error, "exhausted booking is reported in the message, not as an error")
	msgs := assistantMessages(state)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "couldn't find any available slots")
	// One real create attempt; the retry reverified and found the slot gone.
	assert.Equal(t, 1, gw.createCalls)
}

func TestTurnNoAvailability(t *testing.T) {
	gw := &fakeGateway{busy: []slots.BusyInterval{{Start: tomorrowAt(9, 0), End: tomorrowAt(17, 0)}}}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow afternoon")

	assert.Empty(t, state.CandidateSlots)
	assert.False(t, state.BookingConfirmed)
	assert.Contains(t, assistantMessages(state)[0].Text, "couldn't find any available slots")
}

func TestTurnValidationRejectsOutOfHours(t *testing.T) {
	gw := &fakeGateway{}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow at 7am")

	assert.Equal(t, CategoryValidation, state.ErrorCategory)
	assert.False(t, state.BookingConfirmed)
	assert.Contains(t, assistantMessages(state)[0].Text, "business hours")
	assert.Equal(t, 0, gw.createCalls)
}

func TestTurnGatewayAuthFailure(t *testing.T) {
	gw := &fakeGateway{authErr: errors.New("credentials rejected")}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow afternoon")

	assert.Equal(t, CategoryGatewayAuth, state.ErrorCategory)
	msgs := assistantMessages(state)
	require.Len(t, msgs, 1)
	assert.NotContains(t, msgs[0].Text, "credentials rejected", "raw error text must not leak")
}

func TestTurnMalformedModelOutputStillAnswers(t *testing.T) {
	// Unusable model output degrades to keyword rules; the turn still
	// produces exactly one assistant message and no stray error.
	client := &fakeLLM{intentJSON: "%%% not json %%%", entitiesJSON: "%%%"}
	gw := &fakeGateway{}
	e := newTestEngine(gw, client)
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow afternoon")

	require.Len(t, assistantMessages(state), 1)
	assert.Empty(t, state.Error)
	assert.Equal(t, intent.IntentSchedule, state.Intent)
}

func TestTurnNeverPanics(t *testing.T) {
	gw := &fakeGateway{panicOnAuth: true}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	require.NotPanics(t, func() {
		e.ProcessTurn(context.Background(), state, "book a meeting tomorrow afternoon")
	})
	assert.NotEmpty(t, state.Error)
	assert.Equal(t, CategoryUnknown, state.ErrorCategory)
	msgs := assistantMessages(state)
	require.Len(t, msgs, 1)
	assert.NotContains(t, msgs[0].Text, "exploded")
}

func TestTurnWeekSearchShowsLabeledMenu(t *testing.T) {
	gw := &fakeGateway{}
	e := newTestEngine(gw, &fakeLLM{
		intentJSON:   `{"intent": "check_availability", "confidence": "High"}`,
		entitiesJSON: `{}`,
	})
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "what's my availability next week?")

	require.NotEmpty(t, state.CandidateSlots)
	assert.NotEmpty(t, state.CandidateSlots[0].DayName)
	assert.Contains(t, assistantMessages(state)[0].Text, state.CandidateSlots[0].DayName)
}

func TestTurnBookingConfirmedResetsForNextCycle(t *testing.T) {
	gw := &fakeGateway{}
	e := newTestEngine(gw, scheduleLLM())
	state := NewConversationState("s1")

	e.ProcessTurn(context.Background(), state, "book a meeting tomorrow at 2pm")
	require.True(t, state.BookingConfirmed)

	e.ProcessTurn(context.Background(), state, "book another meeting tomorrow at 10am")

	assert.True(t, state.BookingConfirmed)
	assert.Len(t, gw.created, 2)
	assert.Equal(t, tomorrowAt(10, 0), gw.created[1].Start)
}
