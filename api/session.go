package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/helpline-ai/helpline/internal/provider"
	"github.com/helpline-ai/helpline/internal/session"
)

// Request validation bounds.
const (
	MaxTitleLength   = 100
	DefaultListLimit = 100
	MaxListLimit     = 1000
	MaxListOffset    = 100000
)

// SessionStore is the session surface the API needs, satisfied by
// *session.Store.
type SessionStore interface {
	Create(ctx context.Context, title string) (*session.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	List(ctx context.Context, limit, offset int) ([]session.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	History(ctx context.Context, id uuid.UUID) ([]provider.Turn, error)
}

// SessionHandler serves the session CRUD endpoints.
type SessionHandler struct {
	store  SessionStore
	logger *slog.Logger
}

func NewSessionHandler(store SessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}/history", h.history)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
}

// list returns sessions ordered by most recent activity.
// Query parameters: limit (default 100, max 1000) and offset.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "session store not configured")
		return
	}

	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	sessions, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
		"limit":    limit,
		"offset":   offset,
	})
}

// CreateSessionRequest is the request body for creating a session.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// create creates a new empty session.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "session store not configured")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.Title) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "title too long (max 100 characters)")
		return
	}

	sess, err := h.store.Create(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// history returns every persisted turn of a session in order.
func (h *SessionHandler) history(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "session store not configured")
		return
	}

	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	// History of a missing session is empty, not an error; confirm the
	// session exists first so the client gets a 404.
	if _, err := h.store.Get(r.Context(), id); err != nil {
		h.sessionError(w, id, err)
		return
	}

	turns, err := h.store.History(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}
	if turns == nil {
		turns = []provider.Turn{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

// delete removes a session and its turns.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "session store not configured")
		return
	}

	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.sessionError(w, id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionError maps store errors to HTTP responses.
func (h *SessionHandler) sessionError(w http.ResponseWriter, id uuid.UUID, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	h.logger.Error("session operation failed", "session_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "session operation failed")
}

// sessionID parses the {id} path value, writing a 400 on malformed input.
func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed session id")
		return uuid.Nil, false
	}
	return id, true
}

// parseIntParam parses an integer query parameter with bounds clamping.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
