package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/helpline-ai/helpline/internal/agent"
	"github.com/helpline-ai/helpline/internal/provider"
	"github.com/helpline-ai/helpline/internal/session"
)

// MaxMessageLength bounds one chat message.
const MaxMessageLength = 8000

// Runner runs one agent turn, satisfied by *agent.Agent.
type Runner interface {
	Run(ctx context.Context, sessionID uuid.UUID, message string) (*agent.Result, error)
}

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	sessions SessionStore
	runner   Runner
	logger   *slog.Logger
}

func NewChatHandler(sessions SessionStore, runner Runner, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{sessions: sessions, runner: runner, logger: logger}
}

// RegisterRoutes registers the chat route on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.chat)
}

// ChatRequest is the request body for one chat turn. SessionID is optional;
// when empty a new session is created and returned in the response.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the outcome of one agent run.
type ChatResponse struct {
	SessionID  uuid.UUID            `json:"session_id"`
	Answer     string               `json:"answer"`
	Sources    []provider.SourceRef `json:"sources,omitempty"`
	Iterations int                  `json:"iterations"`
	State      agent.State          `json:"state"`
}

// chat runs one agent turn. A failed run (iteration limit, model outage)
// still answers 200 with state "failed" and a degraded answer; error codes
// are reserved for request and infrastructure problems.
func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil || h.runner == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "chat backend not configured")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if len(req.Message) > MaxMessageLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "message too long")
		return
	}

	sessionID, err := h.resolveSession(r.Context(), req)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if errors.Is(err, errBadSessionID) {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed session id")
			return
		}
		h.logger.Error("failed to resolve session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to resolve session")
		return
	}

	result, err := h.runner.Run(r.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("chat run failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "chat failed")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID:  sessionID,
		Answer:     result.Answer,
		Sources:    result.Sources,
		Iterations: result.Iterations,
		State:      result.State,
	})
}

var errBadSessionID = errors.New("malformed session id")

// resolveSession returns the requested session's ID, creating a new session
// titled after the first message when none was given.
func (h *ChatHandler) resolveSession(ctx context.Context, req ChatRequest) (uuid.UUID, error) {
	if req.SessionID == "" {
		sess, err := h.sessions.Create(ctx, sessionTitle(req.Message))
		if err != nil {
			return uuid.Nil, err
		}
		return sess.ID, nil
	}

	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return uuid.Nil, errBadSessionID
	}
	if _, err := h.sessions.Get(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// sessionTitle derives a session title from the opening message.
func sessionTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= MaxTitleLength {
		return message
	}
	return string(runes[:MaxTitleLength-3]) + "..."
}
