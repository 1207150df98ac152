// Package calendar is the booking gateway boundary: authentication, busy
// interval listing and event creation against the configured calendar.
package calendar

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/slotwise/booking-assistant/internal/slots"
)

// EventRequest describes the appointment to create.
type EventRequest struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// EventResult is the outcome of a create-event call. Error carries the
// provider's message when Success is false.
type EventResult struct {
	Success   bool   `json:"success"`
	EventID   string `json:"event_id,omitempty"`
	EventLink string `json:"event_link,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Gateway is the only I/O surface the conversation engine talks to.
// Authenticate must succeed before any other call. All datetimes crossing
// this boundary are timezone-aware.
type Gateway interface {
	Authenticate(ctx context.Context) error
	ListBusy(ctx context.Context, start, end time.Time) ([]slots.BusyInterval, error)
	CreateEvent(ctx context.Context, req EventRequest) (EventResult, error)
}

// IsAuthError reports whether the gateway rejected our credentials.
func IsAuthError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401 || apiErr.Code == 403
	}
	return false
}

// IsConflictError reports whether the provider refused the event because
// the slot was taken in the meantime.
func IsConflictError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 409
	}
	return false
}
