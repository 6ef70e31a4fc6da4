package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers the service routes and middleware stack.
// Centralizing routes here keeps acknowledgment and error behavior
// consistent across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/", handler.index)
	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Post("/webhooks/orders", handler.orderWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/access-check", handler.accessCheck)
	})

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(handler.serviceAuthMiddleware)
		r.Post("/login-fallback", handler.loginFallback)
		r.Post("/provision", handler.provision)
		r.Get("/attempts", handler.listAttempts)
	})

	return r
}
