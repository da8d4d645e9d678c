/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a browser frontend

ROUTE GROUPS:
  /api/persons/*        Roster
  /api/sessions/*       Lessons, recurring and batch operations
  /api/sessions.ics     Calendar feed
  /api/availability, /api/free-slots, /api/preferences
  /api/reports/*        Read-only summaries
  /api/reminders        Reminder job status
  /health               Liveness

SECURITY NOTE:
  No authentication middleware. Bind to localhost or put a proxy in front.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. allowedOrigins
// feeds the CORS middleware; empty means any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/persons", func(r chi.Router) {
			r.Get("/", h.ListPersons)
			r.Post("/", h.CreatePerson)
			r.Get("/by-name/{name}/sessions", h.PersonSessions)
			r.Get("/by-name/{name}/progress", h.PersonProgress)
			r.Get("/by-name/{name}/financial", h.PersonFinancial)
			r.Get("/by-name/{name}/schedule", h.PersonSchedule)
			r.Get("/{id}", h.GetPerson)
			r.Put("/{id}", h.UpdatePerson)
			r.Delete("/{id}", h.DeletePerson)
		})

		r.Get("/sessions.ics", h.ExportICS)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.QuerySessions)
			r.Post("/", h.BookSession)
			r.Post("/recurring", h.CreateRecurring)
			r.Post("/batch-update", h.BatchUpdate)
			r.Post("/batch-delete", h.BatchDelete)
			r.Get("/{id}", h.GetSession)
			r.Put("/{id}", h.UpdateSession)
			r.Delete("/{id}", h.DeleteSession)
		})

		r.Get("/availability", h.CheckAvailability)
		r.Get("/free-slots", h.FreeSlots)
		r.Get("/preferences", h.Preferences)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/financial", h.Financial)
			r.Get("/upcoming", h.Upcoming)
			r.Get("/absent", h.Absent)
			r.Get("/daily", h.Daily)
			r.Get("/summary", h.TeachingSummary)
			r.Get("/weekly", h.WeeklyOverview)
		})

		r.Get("/reminders", h.ReminderStatus)
	})

	return r
}
