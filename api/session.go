package api

import (
	"net/http"
	"time"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/session"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	sessions *session.Manager
	logger   log.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions *session.Manager, logger log.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
}

// SessionInfo is the JSON shape of a session summary.
type SessionInfo struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     int       `json:"turns"`
}

func sessionInfo(s *session.Session) SessionInfo {
	return SessionInfo{
		ID:        s.ID().String(),
		CreatedAt: s.CreatedAt(),
		Turns:     s.Len(),
	}
}

// list returns all sessions, oldest first.
func (h *SessionHandler) list(w http.ResponseWriter, _ *http.Request) {
	sessions := h.sessions.List()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, sessionInfo(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": infos,
		"total":    len(infos),
	})
}

// create starts a new session.
func (h *SessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	s := h.sessions.Create()
	h.logger.Info("session created", "session_id", s.ID())
	writeJSON(w, http.StatusCreated, sessionInfo(s))
}

// get returns one session with its transcript.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID().String(),
		"created_at": s.CreatedAt(),
		"history":    s.History(),
	})
}
