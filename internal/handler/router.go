package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDeps bundles everything the router mounts.
type RouterDeps struct {
	Middleware *Middleware
	Auth       *AuthHandler
	Groups     *GroupHandler
	Tasks      *TaskHandler
	GDPR       *GDPRHandler
	Security   *SecurityHandler
	Health     http.HandlerFunc
}

// NewRouter builds the HTTP surface. IP blocking and IP rate limiting run
// on every route; the session gate guards everything except registration,
// login and health.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Device-ID", "X-Device-Fingerprint"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(deps.Middleware.BlockedIP)
	r.Use(deps.Middleware.RateLimitIP)

	r.Get("/health", deps.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", deps.Auth.Register)
		r.Post("/auth/login", deps.Auth.Login)
		r.Post("/auth/verify/request", deps.Auth.RequestVerification)
		r.Post("/auth/verify", deps.Auth.CompleteVerification)

		r.Group(func(r chi.Router) {
			r.Use(deps.Middleware.Authenticate)

			r.Post("/auth/logout", deps.Auth.Logout)
			r.Get("/auth/sessions", deps.Auth.Sessions)
			r.Get("/members/me", deps.Auth.Me)

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", deps.Groups.Create)
				r.Get("/", deps.Groups.ListMine)
				r.Route("/{groupID}", func(r chi.Router) {
					r.Get("/", deps.Groups.Get)
					r.Get("/members", deps.Groups.ListMembers)
					r.Post("/members", deps.Groups.AddMember)
					r.Put("/members/{memberID}", deps.Groups.UpdateRole)
					r.Delete("/members/{memberID}", deps.Groups.RemoveMember)

					r.Route("/tasks", func(r chi.Router) {
						r.Post("/", deps.Tasks.Create)
						r.Get("/", deps.Tasks.List)
						r.Get("/{taskID}", deps.Tasks.Get)
						r.Put("/{taskID}", deps.Tasks.Update)
						r.Delete("/{taskID}", deps.Tasks.Delete)
					})
				})
			})

			r.Route("/gdpr", func(r chi.Router) {
				r.Get("/consents", deps.GDPR.ListConsents)
				r.Put("/consents", deps.GDPR.UpdateConsent)
				r.Get("/export", deps.GDPR.Export)
				r.Delete("/data", deps.GDPR.Delete)
			})

			r.Route("/security", func(r chi.Router) {
				r.Get("/incidents", deps.Security.ListIncidents)
				r.Get("/incidents/search", deps.Security.SearchIncidents)
				r.Get("/incidents/{incidentID}", deps.Security.GetIncident)
				r.Put("/incidents/{incidentID}/status", deps.Security.TransitionIncident)
				r.Post("/sweeps", deps.Security.RunSweeps)
				r.Get("/members/{memberID}/anomalies", deps.Security.MemberAnomalies)
			})
		})
	})

	return r
}
