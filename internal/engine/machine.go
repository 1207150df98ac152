package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/slotwise/booking-assistant/internal/calendar"
	"github.com/slotwise/booking-assistant/internal/dateparse"
	"github.com/slotwise/booking-assistant/internal/intent"
	"github.com/slotwise/booking-assistant/internal/observability/metrics"
	"github.com/slotwise/booking-assistant/internal/slots"
	"github.com/slotwise/booking-assistant/pkg/logging"
)

// Options tune the engine beyond its required collaborators.
type Options struct {
	Metrics  *metrics.ConversationMetrics
	Logger   *logging.Logger
	Location *time.Location
	// Now overrides the clock, for tests.
	Now func() time.Time
	// BookingMaxRetries is how many extra create-event attempts follow
	// the first one.
	BookingMaxRetries int
}

// Engine walks one user utterance through the conversation graph. It is
// stateless between calls; all conversation data lives in the
// ConversationState the caller passes in and persists.
type Engine struct {
	gateway           calendar.Gateway
	finder            *slots.Finder
	classifier        *intent.Classifier
	metrics           *metrics.ConversationMetrics
	logger            *logging.Logger
	loc               *time.Location
	now               func() time.Time
	bookingMaxRetries int
}

func New(gateway calendar.Gateway, classifier *intent.Classifier, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().In(loc) }
	}
	retries := opts.BookingMaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Engine{
		gateway:           gateway,
		finder:            slots.NewFinder(gateway, logger),
		classifier:        classifier,
		metrics:           opts.Metrics,
		logger:            logger.Component("engine"),
		loc:               loc,
		now:               now,
		bookingMaxRetries: retries,
	}
}

// turn bundles the per-invocation scratch state. reply is the single
// pending assistant message; later stages overwrite earlier ones.
type turn struct {
	state     *ConversationState
	utterance string
	reply     string
	pref      *dateparse.DatePreference
	// offeredNow marks that this turn just presented a slot menu, so
	// the confirm stage must wait for the next utterance instead of
	// resolving the current one.
	offeredNow bool
}

// maxStageSteps bounds the acyclic traversal as a defect guard.
const maxStageSteps = 10

// ProcessTurn consumes exactly one user utterance and appends exactly one
// assistant message. No failure escapes: panics and stage errors are
// converted into a categorized error message on the state.
func (e *Engine) ProcessTurn(ctx context.Context, state *ConversationState, utterance string) {
	started := e.now()

	state.Error = ""
	state.ErrorCategory = CategoryNone
	if state.BookingConfirmed {
		// Previous cycle completed; start a fresh draft while keeping
		// the transcript and accumulated context.
		state.BookingConfirmed = false
		state.Appointment = Appointment{}
		state.CandidateSlots = nil
		state.Flags = Flags{}
	}

	state.Messages = append(state.Messages, Message{Role: RoleUser, Text: utterance})

	t := &turn{state: state, utterance: utterance}
	e.runStages(ctx, t)

	if t.reply == "" {
		t.reply = clarificationMessage()
	}
	state.Messages = append(state.Messages, Message{Role: RoleAssistant, Text: t.reply})

	e.metrics.ObserveTurn(string(state.Stage), e.now().Sub(started).Seconds())
}

func (e *Engine) runStages(ctx context.Context, t *turn) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("turn panicked", "session_id", t.state.SessionID, "panic", fmt.Sprint(r))
			t.state.setError(fmt.Sprintf("panic: %v", r), CategoryUnknown)
			t.state.Stage = StageHandleError
			t.reply = errorMessage(CategoryUnknown)
		}
	}()

	stage := e.entryStage(t.state)
	for steps := 0; stage != StageEnd && steps < maxStageSteps; steps++ {
		if t.state.Error != "" && stage != StageHandleError {
			stage = StageHandleError
		}
		t.state.Stage = stage
		stage = e.dispatch(ctx, stage, t)
	}
}

// entryStage recomputes where this turn starts from the persisted state: a
// pending slot menu routes the reply straight to selection handling.
func (e *Engine) entryStage(state *ConversationState) Stage {
	if state.awaitingSelection() {
		return StageConfirmBooking
	}
	return StageGreeting
}

func (e *Engine) dispatch(ctx context.Context, stage Stage, t *turn) Stage {
	switch stage {
	case StageGreeting:
		return e.stageGreeting(ctx, t)
	case StageUnderstandIntent:
		return e.stageUnderstandIntent(ctx, t)
	case StageCollectDetails:
		return e.stageCollectDetails(ctx, t)
	case StageCheckAvailability:
		return e.stageCheckAvailability(ctx, t)
	case StageSuggestSlots:
		return e.stageSuggestSlots(ctx, t)
	case StageConfirmBooking:
		return e.stageConfirmBooking(ctx, t)
	case StageBookAppointment:
		return e.stageBookAppointment(ctx, t)
	case StageHandleError:
		return e.stageHandleError(ctx, t)
	default:
		return StageEnd
	}
}
