package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionService "github.com/mkovach/nexus/backend/internal/service/session"
	"github.com/mkovach/nexus/backend/pkg/utils"
)

// Handler serves the read-only session API.
type Handler struct {
	sessions *sessionService.Service
}

// New creates the session API handler.
func New(sessions *sessionService.Service) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes registers the health and session listing routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/sessions", h.handleListSessions)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListSessions returns a point-in-time snapshot of the session store.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessions": h.sessions.Snapshot(r.Context()),
	})
}
