package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestConversationMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)
	m.ObserveTurn("book_appointment", 0.25)
	m.ObserveBooking("success")
	m.ObserveIntentSource("llm")
}

func TestConversationMetricsNilSafe(t *testing.T) {
	var m *ConversationMetrics
	m.ObserveTurn("handle_error", 0.1)
	m.ObserveBooking("failed")
	m.ObserveIntentSource("fallback")
}
