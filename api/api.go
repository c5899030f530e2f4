// Package api provides the REST handlers for the taskbox service.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/taskbox/auth"
	"github.com/jmcleod/taskbox/store"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	users       store.Users
	todos       store.Todos
	sessions    *auth.Manager
	rateLimiter *loginRateLimiter
	logger      *slog.Logger
	audit       *auditLogger
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for request and audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// New creates a new API instance.
func New(users store.Users, todos store.Todos, sessions *auth.Manager, opts ...Option) *API {
	a := &API{
		users:       users,
		todos:       todos,
		sessions:    sessions,
		rateLimiter: newLoginRateLimiter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.audit = newAuditLogger(a.logger)
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Post("/users", a.CreateUser)
	r.Post("/users/login", a.Login)
	r.With(a.RequireAuth).Get("/users/me", a.Me)
	r.With(a.RequireAuth).Delete("/users/me/token", a.Logout)
	r.With(a.RequireAuth).Put("/users/me/password", a.ChangePassword)

	r.Route("/todos", func(r chi.Router) {
		r.Use(a.RequireAuth)
		r.Post("/", a.CreateTodo)
		r.Get("/", a.ListTodos)
		r.Get("/{todoID}", a.GetTodo)
		r.Patch("/{todoID}", a.UpdateTodo)
		r.Delete("/{todoID}", a.DeleteTodo)
	})

	return r
}
