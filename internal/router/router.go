package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hdcoach-backend/internal/handlers"
	"hdcoach-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	relayHandler *handlers.RelayHandler,
	webhookHandler *handlers.WebhookHandler,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware. CORS runs before auth so preflights are answered
	// without credentials.
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Relay Route ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/relay", relayHandler.Send)
		})

		// ──── Webhook Directory Admin Routes ────
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", webhookHandler.List)
			r.Post("/", webhookHandler.Create)
			r.Put("/{id}", webhookHandler.Update)
			r.Put("/{id}/toggle", webhookHandler.Toggle)
			r.Delete("/{id}", webhookHandler.Delete)
		})
	})

	return r
}
