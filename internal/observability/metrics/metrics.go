package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the booking
// conversation flow. A nil receiver is a no-op so callers never need to
// guard metric emission.
type ConversationMetrics struct {
	turnsTotal    *prometheus.CounterVec
	bookingsTotal *prometheus.CounterVec
	intentSource  *prometheus.CounterVec
	turnLatency   *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed turns by terminal stage",
		}, []string{"stage"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "conversation",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"status"}),
		intentSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "conversation",
			Name:      "intent_source_total",
			Help:      "Intent classifications by source (prefilter, cache, llm, fallback)",
		}, []string{"source"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.bookingsTotal, m.intentSource, m.turnLatency)
	return m
}

func (m *ConversationMetrics) ObserveTurn(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(stage).Inc()
	m.turnLatency.WithLabelValues(stage).Observe(seconds)
}

func (m *ConversationMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveIntentSource(source string) {
	if m == nil {
		return
	}
	m.intentSource.WithLabelValues(source).Inc()
}
