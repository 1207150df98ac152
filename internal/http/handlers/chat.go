package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotwise/booking-assistant/internal/engine"
	"github.com/slotwise/booking-assistant/internal/session"
	"github.com/slotwise/booking-assistant/pkg/logging"
)

// ChatHandler is the conversational surface: one POST per user turn.
type ChatHandler struct {
	engine *engine.Engine
	store  *session.Store
	logger *logging.Logger
}

func NewChatHandler(eng *engine.Engine, store *session.Store, logger *logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{
		engine: eng,
		store:  store,
		logger: logger.Component("chat"),
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type chatResponse struct {
	SessionID        string `json:"session_id"`
	Reply            string `json:"reply"`
	Stage            string `json:"stage"`
	BookingConfirmed bool   `json:"booking_confirmed"`
	SlotsOffered     int    `json:"slots_offered,omitempty"`
}

// Chat handles POST /chat. A missing session id starts a new conversation.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	state, err := h.store.Load(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to load session", "session_id", sessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	if state == nil {
		state = engine.NewConversationState(sessionID)
	}

	h.engine.ProcessTurn(r.Context(), state, req.Text)

	if err := h.store.Save(r.Context(), state); err != nil {
		// The turn already happened; answer the user and log the loss.
		h.logger.Error("failed to persist session", "session_id", sessionID, "error", err.Error())
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:        sessionID,
		Reply:            lastAssistantText(state),
		Stage:            string(state.Stage),
		BookingConfirmed: state.BookingConfirmed,
		SlotsOffered:     len(state.CandidateSlots),
	})
}

// Reset handles DELETE /chat/{sessionID}: forget the conversation.
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	if err := h.store.Delete(r.Context(), sessionID); err != nil {
		h.logger.Error("failed to delete session", "session_id", sessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (h *ChatHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func lastAssistantText(state *engine.ConversationState) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == engine.RoleAssistant {
			return state.Messages[i].Text
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
