package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/event-attendance/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Logger zerolog.Logger
	// AuthPerMinute limits /auth requests per client IP; 0 disables it.
	AuthPerMinute int
}

// NewRouter builds the full HTTP surface.
func NewRouter(h *EventHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(cfg.Logger))      // structured access log
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/auth", func(r chi.Router) {
		r.Use(RateLimit(cfg.AuthPerMinute))
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Route("/events", func(r chi.Router) {
		r.Use(Authenticate(h.identity))

		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(RequireActor)
			r.Post("/", h.CreateEvent)
			r.Patch("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Put("/{id}/attendance", h.SetAttendance)
			r.Get("/{id}/attendance", h.GetAttendance)
			r.Get("/{id}/attendees", h.ListAttendees)
		})
	})

	return r
}
