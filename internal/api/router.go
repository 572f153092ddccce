package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/app"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(a *app.App, apiKey string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(a)
	sandboxH := NewSandboxHandler(a)
	eventsH := NewEventsHandler(a.Bus)

	// Unauthenticated routes
	r.Get("/health", healthH.Health)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Route("/api/sandbox", func(r chi.Router) {
			r.Post("/", sandboxH.Create)
			r.Get("/", sandboxH.Get)
			r.Delete("/", sandboxH.Delete)
			r.Get("/files", sandboxH.Files)
			r.Get("/logs", sandboxH.Logs)
			r.Get("/events", eventsH.Stream)
		})
	})

	return r
}
