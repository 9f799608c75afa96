package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	sessionHandler "github.com/mkovach/nexus/backend/internal/handler/session"
	"github.com/mkovach/nexus/backend/internal/handler/ws"
	middlewarePkg "github.com/mkovach/nexus/backend/internal/middleware"
	aiService "github.com/mkovach/nexus/backend/internal/service/ai"
	sessionService "github.com/mkovach/nexus/backend/internal/service/session"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(sessions *sessionService.Service, nexus *aiService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	apiHandler := sessionHandler.New(sessions)
	wsHandler := ws.New(sessions, nexus)

	r.Route("/api", func(api chi.Router) {
		apiHandler.RegisterRoutes(api)
	})

	wsHandler.RegisterRoutes(r)

	return r
}
