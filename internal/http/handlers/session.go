package handlers

import (
	"context"
	"net/http"

	"github.com/wolfman30/hsm-appointments/internal/session"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

type sessionService interface {
	Current() session.Session
	Login(ctx context.Context, form *session.Form) (string, error)
	Signup(ctx context.Context, form *session.Form) (string, error)
	Logout(ctx context.Context) error
	Activity() bool
}

// SessionHandler exposes login, signup, logout and activity heartbeats.
type SessionHandler struct {
	sessions sessionService
	logger   *logging.Logger
}

// SessionResponse describes the acting session.
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
	Role          string `json:"role,omitempty"`
}

func NewSessionHandler(sessions sessionService, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{sessions: sessions, logger: logger}
}

func toSessionResponse(s session.Session) SessionResponse {
	if !s.Authenticated() {
		return SessionResponse{}
	}
	return SessionResponse{Authenticated: true, Identity: s.Identity, Role: string(s.Role)}
}

// Get returns the current session.
// GET /session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.sessions.Current()))
}

// Login authenticates against the appointment service.
// POST /session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	form := &session.Form{}
	if !decodeJSON(w, r, form) {
		return
	}
	msg, err := h.sessions.Login(r.Context(), form)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"session": toSessionResponse(h.sessions.Current()),
	})
}

// Signup registers a new user. It does not log in.
// POST /session/signup
func (h *SessionHandler) Signup(w http.ResponseWriter, r *http.Request) {
	form := &session.Form{}
	if !decodeJSON(w, r, form) {
		return
	}
	msg, err := h.sessions.Signup(r.Context(), form)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": msg})
}

// Logout ends the session. Logging out twice is fine.
// POST /session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.Warn("logout left persisted session behind", "error", err)
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session.Session{}))
}

// Activity is a heartbeat for pointer and key input in the dashboard.
// POST /session/activity
func (h *SessionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	// The activity middleware has already touched the watchdog for this POST.
	if !h.sessions.Current().Authenticated() {
		jsonError(w, "not logged in", http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
