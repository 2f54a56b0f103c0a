package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viralforge/roadworks/internal/application"
	"github.com/viralforge/roadworks/internal/domain"
)

// ReadinessCheck reports whether backing stores accept traffic.
type ReadinessCheck func(ctx context.Context) error

type HandlerOptions struct {
	// Debug echoes internal error details in 500 responses.
	Debug     bool
	Readiness ReadinessCheck
}

// Handler is the HTTP adapter entrypoint for report, auth and sync use-cases.
type Handler struct {
	service   *application.Service
	debug     bool
	readiness ReadinessCheck
}

func NewHandler(service *application.Service, opts HandlerOptions) *Handler {
	return &Handler{
		service:   service,
		debug:     opts.Debug,
		readiness: opts.Readiness,
	}
}

// NewRouter registers the public API, ops endpoints and the middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(loggingMiddleware)
	r.NotFound(handler.notFound)
	r.MethodNotAllowed(handler.methodNotAllowed)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
	})
	r.Get("/swagger/", handler.swaggerUI)
	r.Get("/swagger/openapi.yaml", handler.swaggerYAML)
	r.Get("/swagger/openapi.json", handler.swaggerJSON)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/logout", handler.logout)
			r.Get("/me", handler.me)
			r.Put("/me", handler.updateMe)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(domain.RoleManager))
				r.Post("/unblock/{userId}", handler.unblock)
				r.Get("/blocked-users", handler.blockedUsers)
			})
		})
	})

	r.Route("/api/sync", func(r chi.Router) {
		r.Use(handler.authMiddleware)
		r.Get("/status", handler.syncStatus)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(domain.RoleManager))
			r.Post("/", handler.syncAll)
			r.Post("/signalements", handler.syncSignalements)
			r.Post("/users", handler.syncUsers)
		})
	})

	r.Route("/api/signalements", func(r chi.Router) {
		r.Get("/", handler.listSignalements)
		r.Get("/stats", handler.stats)
		r.Get("/entreprises", handler.entreprises)
		r.Get("/{id}", handler.getSignalement)
		r.With(handler.optionalAuthMiddleware).Post("/", handler.createSignalement)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Use(requireRole(domain.RoleManager))
			r.Put("/{id}", handler.updateSignalement)
			r.Delete("/{id}", handler.deleteSignalement)
			r.Get("/admin/users", handler.adminUsers)
		})
	})

	return r
}
