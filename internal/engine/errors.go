package engine

import (
	"github.com/slotwise/booking-assistant/internal/calendar"
)

// ErrorCategory buckets an internal failure for safe user-facing messaging.
// Raw error text never reaches the user.
type ErrorCategory string

const (
	CategoryNone            ErrorCategory = ""
	CategoryParse           ErrorCategory = "parse_error"
	CategoryGatewayAuth     ErrorCategory = "gateway_auth_error"
	CategoryGatewayConflict ErrorCategory = "gateway_conflict_error"
	CategoryValidation      ErrorCategory = "validation_error"
	CategoryUnknown         ErrorCategory = "unknown_error"
)

func categorize(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryNone
	case calendar.IsAuthError(err):
		return CategoryGatewayAuth
	case calendar.IsConflictError(err):
		return CategoryGatewayConflict
	default:
		return CategoryUnknown
	}
}

// setError records a failure on the state; the machine routes to the error
// stage on the next transition check.
func (s *ConversationState) setError(msg string, category ErrorCategory) {
	s.Error = msg
	s.ErrorCategory = category
}
