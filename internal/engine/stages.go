package engine

import (
	"context"
	"strings"
	"time"

	"github.com/slotwise/booking-assistant/internal/calendar"
	"github.com/slotwise/booking-assistant/internal/dateparse"
	"github.com/slotwise/booking-assistant/internal/intent"
	"github.com/slotwise/booking-assistant/internal/retry"
	"github.com/slotwise/booking-assistant/internal/slots"
)

// menuLimit caps how many slots one offer shows. Week searches are already
// capped upstream.
const menuLimit = 8

// reverifyWindow is how far around the intended start a booking retry
// re-checks for a conflicting event.
const reverifyWindow = 5 * time.Minute

const dateDisplayLayout = "Monday, January 2, 2006"

func (e *Engine) stageGreeting(_ context.Context, t *turn) Stage {
	// Default reply for a first contact; overwritten if a later stage
	// has something more specific to say.
	if t.state.userTurns() == 1 {
		t.reply = greetingMessage()
	}
	return StageUnderstandIntent
}

func (e *Engine) stageUnderstandIntent(ctx context.Context, t *turn) Stage {
	r := e.classifier.Classify(ctx, t.utterance)
	e.metrics.ObserveIntentSource(string(r.Source))

	if r.SimpleGreeting {
		t.state.Flags.SimpleGreeting = true
		switch r.Greeting {
		case intent.GreetingHelp:
			t.reply = helpMessage()
		case intent.GreetingGoodbye:
			t.reply = goodbyeMessage()
		default:
			t.reply = greetingMessage()
		}
		return StageEnd
	}

	t.state.Flags.SimpleGreeting = false
	t.state.Intent = r.Intent
	t.state.mergeContext(r.ContextDelta)
	t.state.mergeContext(r.Entities)
	t.state.mergeContextMissing(e.classifier.ExtractEntities(ctx, t.utterance))
	t.reply = intentGuidance(r.Intent)

	switch r.Intent {
	case intent.IntentCheckAvailability:
		return StageSuggestSlots
	case intent.IntentSchedule, intent.IntentClarification:
		return StageCollectDetails
	default:
		// modify/cancel/general inquiry have no booking path; the
		// guidance reply stands.
		return StageEnd
	}
}

func (e *Engine) stageCollectDetails(_ context.Context, t *turn) Stage {
	pref := dateparse.Parse(t.utterance, e.now())
	if d, ok := contextDuration(t.state.Context); ok {
		pref.DurationMinutes = d
	}

	if problems := validateRequest(pref.TargetDate, pref.StartHour, pref.DurationMinutes, e.now()); len(problems) > 0 {
		t.state.setError(strings.Join(problems, "; "), CategoryValidation)
		return StageHandleError
	}

	t.state.Appointment.TargetDate = pref.TargetDate
	t.state.Appointment.StartHour = pref.StartHour
	t.state.Appointment.DurationMinutes = pref.DurationMinutes
	t.state.Appointment.ParsedInput = t.utterance
	t.pref = &pref

	t.reply = parsedDetailsMessage(pref.Describe(), pref.TargetDate.Format(dateDisplayLayout))
	return StageCheckAvailability
}

func (e *Engine) stageCheckAvailability(ctx context.Context, t *turn) Stage {
	pref := t.currentPreference(e)

	found, ok := e.findSlots(ctx, t, pref)
	if !ok {
		return StageHandleError
	}
	if len(found) == 0 {
		t.state.CandidateSlots = nil
		t.reply = noAvailabilityMessage()
		return StageEnd
	}

	if pref.SpecificTime {
		// Nearest match to the requested clock time; found is already
		// proximity-sorted by the widening ladder.
		best := found[0]
		e.selectSlot(t.state, best)
		t.state.Flags.AutoSelectedSlot = true
		t.state.CandidateSlots = []slots.Slot{best}
		t.reply = autoSelectedMessage(best)
		return StageBookAppointment
	}

	t.state.Flags.AutoSelectedSlot = false
	return e.offerSlots(t, found, pref)
}

func (e *Engine) stageSuggestSlots(ctx context.Context, t *turn) Stage {
	pref := t.currentPreference(e)

	found, ok := e.findSlots(ctx, t, pref)
	if !ok {
		return StageHandleError
	}
	if len(found) == 0 {
		t.state.CandidateSlots = nil
		t.reply = noAvailabilityMessage()
		return StageEnd
	}
	return e.offerSlots(t, found, pref)
}

// offerSlots publishes a numbered menu and hands the turn to the confirm
// stage, which will wait for the user's next reply.
func (e *Engine) offerSlots(t *turn, found []slots.Slot, pref dateparse.DatePreference) Stage {
	menu := found
	if len(menu) > menuLimit {
		menu = menu[:menuLimit]
	}
	t.state.CandidateSlots = menu

	dateDisplay := ""
	if !pref.WeekSearch {
		dateDisplay = pref.TargetDate.Format(dateDisplayLayout)
	}
	t.reply = slotMenu(menu, dateDisplay)
	t.offeredNow = true
	return StageConfirmBooking
}

func (e *Engine) stageConfirmBooking(_ context.Context, t *turn) Stage {
	if t.offeredNow {
		// The menu was just presented; selection is next turn's job.
		return StageEnd
	}

	if sel := slots.DetectSelection(t.utterance, t.state.CandidateSlots); sel != nil {
		number := slotNumber(t.state.CandidateSlots, *sel)
		e.selectSlot(t.state, *sel)
		t.reply = selectionConfirmedMessage(number, *sel)
		return StageBookAppointment
	}

	if slots.IsConfirmation(t.utterance) {
		if t.state.Appointment.StartTime != nil && t.state.Appointment.EndTime != nil {
			return StageBookAppointment
		}
		if len(t.state.CandidateSlots) > 0 {
			// The menu advertises "yes" as taking the first option.
			first := t.state.CandidateSlots[0]
			e.selectSlot(t.state, first)
			t.reply = selectionConfirmedMessage(1, first)
			return StageBookAppointment
		}
		t.reply = clarificationMessage()
		return StageEnd
	}

	// Unresolved reply: re-prompt with the same menu, state unchanged.
	t.reply = slotMenu(t.state.CandidateSlots, "")
	return StageEnd
}

func (e *Engine) stageBookAppointment(ctx context.Context, t *turn) Stage {
	a := &t.state.Appointment
	if a.StartTime == nil || a.EndTime == nil || a.Title == "" || a.SelectedSlot == nil {
		t.state.setError("booking attempted without a selected slot", CategoryUnknown)
		return StageHandleError
	}
	start, end := *a.StartTime, *a.EndTime

	var result calendar.EventResult
	slotGone := false
	policy := retry.Policy{
		MaxAttempts: e.bookingMaxRetries + 1,
		BaseDelay:   200 * time.Millisecond,
	}
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			// Reverify after a failed attempt so a race with another
			// booker cannot double-book the slot.
			busy, err := e.gateway.ListBusy(ctx, start.Add(-reverifyWindow), end.Add(reverifyWindow))
			if err != nil {
				return err
			}
			for _, b := range busy {
				if b.Overlaps(start, end) {
					slotGone = true
					return nil
				}
			}
		}
		res, err := e.gateway.CreateEvent(ctx, calendar.EventRequest{
			Title: a.Title,
			Start: start,
			End:   end,
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	if slotGone {
		e.metrics.ObserveBooking("conflict")
		e.logger.Warn("slot taken during booking", "session_id", t.state.SessionID, "start", start)
		t.state.CandidateSlots = nil
		t.reply = noAvailabilityMessage()
		return StageEnd
	}
	if err != nil {
		e.metrics.ObserveBooking("failed")
		e.logger.Error("booking failed after retries",
			"session_id", t.state.SessionID,
			"start", start,
			"error", err.Error(),
		)
		if calendar.IsAuthError(err) {
			t.state.setError(err.Error(), CategoryGatewayAuth)
			return StageHandleError
		}
		t.reply = bookingFailedMessage()
		return StageEnd
	}

	t.state.BookingConfirmed = true
	e.metrics.ObserveBooking("success")
	e.logger.Info("appointment booked",
		"session_id", t.state.SessionID,
		"event_id", result.EventID,
		"start", start,
	)
	t.reply = bookingConfirmedMessage(*a.SelectedSlot, result)
	return StageEnd
}

func (e *Engine) stageHandleError(_ context.Context, t *turn) Stage {
	e.logger.Error("turn routed to error handling",
		"session_id", t.state.SessionID,
		"category", string(t.state.ErrorCategory),
		"error", t.state.Error,
	)
	if t.state.ErrorCategory == CategoryValidation && t.state.Error != "" {
		t.reply = validationMessage(strings.Split(t.state.Error, "; "))
	} else {
		t.reply = errorMessage(t.state.ErrorCategory)
	}
	return StageEnd
}

// findSlots authenticates and queries availability, converting failures to
// a categorized state error. The second return is false when the caller
// should route to error handling.
func (e *Engine) findSlots(ctx context.Context, t *turn, pref dateparse.DatePreference) ([]slots.Slot, bool) {
	if err := e.gateway.Authenticate(ctx); err != nil {
		t.state.setError(err.Error(), CategoryGatewayAuth)
		return nil, false
	}
	found, err := e.finder.Suggest(ctx, pref)
	if err != nil {
		t.state.setError(err.Error(), categorize(err))
		return nil, false
	}
	return found, true
}

// currentPreference returns the preference parsed earlier this turn, or
// parses the utterance fresh when the collect stage was skipped.
func (t *turn) currentPreference(e *Engine) dateparse.DatePreference {
	if t.pref != nil {
		return *t.pref
	}
	pref := dateparse.Parse(t.utterance, e.now())
	t.pref = &pref
	return pref
}

// selectSlot commits a slot to the draft appointment. Start and end times
// are set together, and the title is derived from the parsed utterance.
func (e *Engine) selectSlot(state *ConversationState, sel slots.Slot) {
	cp := sel
	start, end := cp.Start, cp.End
	state.Appointment.SelectedSlot = &cp
	state.Appointment.StartTime = &start
	state.Appointment.EndTime = &end
	state.Appointment.StartHour = start.Hour()
	state.Appointment.DurationMinutes = cp.DurationMinutes

	source := state.Appointment.ParsedInput
	if source == "" {
		source = "Meeting"
	}
	state.Appointment.Title = "Appointment - " + source
}

func slotNumber(candidates []slots.Slot, sel slots.Slot) int {
	for i := range candidates {
		if candidates[i].Start.Equal(sel.Start) {
			return i + 1
		}
	}
	return 1
}

func contextDuration(ctx map[string]any) (int, bool) {
	switch v := ctx["duration"].(type) {
	case float64:
		if v >= 1 {
			return int(v), true
		}
	case int:
		if v >= 1 {
			return v, true
		}
	}
	return 0, false
}
