package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xenwatch/identity-notify-service/internal/adapters/middleware"
	"github.com/xenwatch/identity-notify-service/internal/core/domain"
)

// RouterDeps bundles what NewRouter wires together.
type RouterDeps struct {
	Auth           *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string

	Health  *HealthHandler
	Profile *ProfileHandler
	Inbox   *InboxHandler
	Events  *EventHandler
	Metrics http.Handler
}

// NewRouter mounts every API route.
//
//	/health, /health/live, /health/ready, /metrics    unauthenticated
//	/me/profile, /notifications/*                      any authenticated user
//	/admin/users/{userID}/*                            system_admin
//	/internal/events                                   system_admin or service
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(deps.AllowedOrigins))

	r.Get("/health", deps.Health.Health)
	r.Get("/health/live", deps.Health.Health)
	r.Get("/health/ready", deps.Health.Ready)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware)
		}

		r.Get("/me/profile", deps.Profile.Me)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", deps.Inbox.List)
			r.Get("/unread-count", deps.Inbox.UnreadCount)
			r.Post("/read-all", deps.Inbox.MarkAllRead)
			r.Post("/{id}/read", deps.Inbox.MarkRead)
		})

		r.Route("/admin/users/{userID}", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleSystemAdmin))
			r.Get("/profile", deps.Profile.Profile)
			r.Post("/repair", deps.Profile.Repair)
		})

		r.With(middleware.RequireRole(domain.RoleSystemAdmin, middleware.RoleService)).
			Post("/internal/events", deps.Events.Publish)
	})

	return r
}
