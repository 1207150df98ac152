package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/slotwise/booking-assistant/internal/slots"
	"github.com/slotwise/booking-assistant/pkg/logging"
)

// GoogleGateway implements Gateway against the Google Calendar v3 API using
// service-account credentials.
type GoogleGateway struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	logger     *logging.Logger
}

// NewGoogleGateway builds the API client. The service is constructed
// eagerly but credentials are only proven by Authenticate.
func NewGoogleGateway(ctx context.Context, credentialsFile, calendarID string, loc *time.Location, logger *logging.Logger) (*GoogleGateway, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}

	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}

	return &GoogleGateway{
		svc:        svc,
		calendarID: calendarID,
		loc:        loc,
		logger:     logger.Component("calendar"),
	}, nil
}

// Authenticate proves the credentials by fetching the calendar metadata.
func (g *GoogleGateway) Authenticate(ctx context.Context) error {
	if _, err := g.svc.Calendars.Get(g.calendarID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: authenticate: %w", err)
	}
	return nil
}

// ListBusy returns the busy intervals of every event between start and end,
// expanded from recurring series and normalized to the configured timezone.
// Events with unparseable times are skipped, not fatal.
func (g *GoogleGateway) ListBusy(ctx context.Context, start, end time.Time) ([]slots.BusyInterval, error) {
	events, err := g.svc.Events.List(g.calendarID).
		TimeMin(formatRFC3339(start)).
		TimeMax(formatRFC3339(end)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}

	busy := make([]slots.BusyInterval, 0, len(events.Items))
	for _, ev := range events.Items {
		evStart, err := g.parseEventTime(ev.Start)
		if err != nil {
			g.logger.Warn("skipping event with unparseable start", "event_id", ev.Id, "error", err.Error())
			continue
		}
		evEnd, err := g.parseEventTime(ev.End)
		if err != nil {
			g.logger.Warn("skipping event with unparseable end", "event_id", ev.Id, "error", err.Error())
			continue
		}
		busy = append(busy, slots.BusyInterval{Start: evStart, End: evEnd})
	}
	return busy, nil
}

// CreateEvent inserts the appointment and returns its id and link.
func (g *GoogleGateway) CreateEvent(ctx context.Context, req EventRequest) (EventResult, error) {
	event := &gcal.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start: &gcal.EventDateTime{
			DateTime: formatRFC3339(req.Start),
			TimeZone: g.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: formatRFC3339(req.End),
			TimeZone: g.loc.String(),
		},
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return EventResult{Success: false, Error: err.Error()}, fmt.Errorf("calendar: insert event: %w", err)
	}

	g.logger.Info("event created",
		"event_id", created.Id,
		"start", req.Start,
		"title", req.Title,
	)
	return EventResult{
		Success:   true,
		EventID:   created.Id,
		EventLink: created.HtmlLink,
	}, nil
}

// parseEventTime handles both timed events (dateTime) and all-day events
// (date only, taken as midnight in the configured timezone).
func (g *GoogleGateway) parseEventTime(t *gcal.EventDateTime) (time.Time, error) {
	if t == nil {
		return time.Time{}, fmt.Errorf("calendar: event time missing")
	}
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("calendar: parse %q: %w", t.DateTime, err)
		}
		return parsed.In(g.loc), nil
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", t.Date, g.loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("calendar: parse %q: %w", t.Date, err)
		}
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("calendar: event time empty")
}

// formatRFC3339 renders the instant in UTC with a trailing Z, the single
// on-the-wire datetime form.
func formatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
