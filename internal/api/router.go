package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// OAuth2 redirect target; the vendor sends the browser here.
	r.Get("/auth/{domain}/callback", s.handleAuthCallback)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (token query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/integrations", s.handleListIntegrations)

			r.Route("/flows", func(r chi.Router) {
				r.Get("/", s.handleListFlows)
				r.Post("/", s.handleStartFlow)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetFlow)
					r.Post("/", s.handleConfigureFlow)
					r.Delete("/", s.handleAbortFlow)
				})
			})

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", s.handleListEntries)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetEntry)
					r.Delete("/", s.handleDeleteEntry)
					r.Post("/reload", s.handleReloadEntry)
					r.Post("/reauth", s.handleReauthEntry)
				})
			})

			r.Route("/entities", func(r chi.Router) {
				r.Get("/", s.handleListEntities)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetEntity)
					r.Post("/services/{service}", s.handleCallService)
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"entries":  len(s.entries.List()),
		"entities": s.entities.Count(),
	})
}
