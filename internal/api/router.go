package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lindenpress/linden-access/internal/access"
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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Session entry points (no auth required)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		// Route guard: evaluates with whatever identity the caller
		// presents, including none.
		r.Group(func(r chi.Router) {
			r.Use(s.optionalAuthMiddleware)
			r.Post("/guard/evaluate", s.handleGuardEvaluate)
		})

		// WebSocket session-event feed (auth via token query parameter,
		// validated in the handler)
		r.Get("/session/events", s.handleSessionEvents)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)

			// Account administration
			r.Route("/users", func(r chi.Router) {
				r.Use(s.requirePermission(access.PermUserManage))
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Patch("/", s.handleUpdateUser)
					r.Delete("/", s.handleDeleteUser)
				})
			})

			// Audit trail
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(access.PermAuditView))
				r.Get("/audit", s.handleListAudit)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"session": string(s.machine.State()),
	})
}
