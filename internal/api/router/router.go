// Package router wires the HTTP surface: the chat endpoint, health check
// and Prometheus metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slotwise/booking-assistant/internal/http/handlers"
)

// Config holds router configuration.
type Config struct {
	ChatHandler    *handlers.ChatHandler
	MetricsHandler http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", cfg.ChatHandler.HealthCheck)
	r.Post("/chat", cfg.ChatHandler.Chat)
	r.Delete("/chat/{sessionID}", cfg.ChatHandler.Reset)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
