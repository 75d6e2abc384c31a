/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Wires the chi router and middleware stack in front of the handlers.

MIDDLEWARE STACK:
  1. RequestID:  unique ID per request for tracing
  2. Logger:     request logging
  3. Recoverer:  panic recovery (500 instead of crash)
  4. CORS:       cross-origin requests for internal tools

SECURITY NOTE:
  Caller identity is taken from the request body; this service is meant
  to sit behind the workspace integration that already authenticated the
  user. Do not expose it directly.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/attendance", h.SubmitAttendance)
		r.Post("/attendance/precheck", h.PrecheckAttendance)
		r.Post("/attendance/span", h.SubmitSpan)
		r.Get("/members/{key}/balance", h.GetBalance)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/attendance", h.AdminAttendance)
			r.Post("/override", h.AdminOverride)
		})

		r.Get("/holidays", h.GetHolidays)
		r.Post("/holidays/refresh", h.RefreshHolidays)
	})

	return r
}
