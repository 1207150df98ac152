// Package session persists conversation state between turns, keyed by
// session id. Redis is the backing store; entries expire after a TTL so
// abandoned conversations clean themselves up.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/slotwise/booking-assistant/internal/engine"
)

const defaultTTL = 24 * time.Hour

// Store reads and writes ConversationState blobs.
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *Store {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("booking.internal.session")
	}
	return &Store{
		redis:  client,
		tracer: tracer,
		ttl:    ttl,
	}
}

// Save persists the state and refreshes its TTL.
func (s *Store) Save(ctx context.Context, state *engine.ConversationState) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	if state == nil || state.SessionID == "" {
		return fmt.Errorf("session: state with session id is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(state.SessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist state: %w", err)
	}
	return nil
}

// Load returns the stored state, or (nil, nil) when the session is unknown
// so the caller can start a fresh conversation.
func (s *Store) Load(ctx context.Context, sessionID string) (*engine.ConversationState, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load state: %w", err)
	}

	var state engine.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode state: %w", err)
	}
	return &state, nil
}

// Delete removes a session, e.g. when the user asks to start over.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to delete state: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
