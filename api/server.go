/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the grid frontend

ROUTE GROUPS:
  /api/cases/*     Case-scoped calculation and version listing
  /api/versions/*  Version lifecycle and row replacement
  /api/items/*     Row status and wire fees

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public; this
  service is expected to sit behind the CRM's gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Case routes
		r.Route("/cases/{caseID}", func(r chi.Router) {
			r.Post("/calculate", h.Calculate)
			r.Get("/versions", h.ListVersions)
			r.Post("/versions", h.CreateVersion)
			r.Post("/invalidate", h.Invalidate)
		})

		// Version routes
		r.Route("/versions/{id}", func(r chi.Router) {
			r.Get("/", h.GetVersion)
			r.Post("/recalculate", h.Recalculate)
			r.Post("/activate", h.Activate)
			r.Post("/suspend", h.Suspend)
			r.Post("/primary", h.SetPrimary)
			r.Delete("/", h.DeleteVersion)
			r.Put("/items", h.SaveItems)
		})

		// Item routes
		r.Route("/items/{itemID}", func(r chi.Router) {
			r.Post("/status", h.UpdateItemStatus)
			r.Get("/wire-fees", h.ListWireFees)
			r.Post("/wire-fees", h.AddWireFee)
		})
	})

	return r
}
