package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/hsm-appointments/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/hsm-appointments/internal/http/middleware"
	"github.com/wolfman30/hsm-appointments/internal/session"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

// SessionState is what the router needs to gate routes and feed the idle
// watchdog. *session.Manager satisfies it.
type SessionState interface {
	Current() session.Session
	Activity() bool
}

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	Sessions            SessionState
	SessionHandler      *handlers.SessionHandler
	AppointmentsHandler *handlers.AppointmentsHandler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// Per-client limit on login and signup attempts; zero disables it.
	AuthRateLimitRPS float64
	AuthRateBurst    int
}

// New creates the dashboard router.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	var touch func() bool
	if cfg.Sessions != nil {
		touch = cfg.Sessions.Activity
	}

	if h := cfg.SessionHandler; h != nil {
		r.Route("/session", func(s chi.Router) {
			s.Use(httpmiddleware.Activity(touch))
			s.Get("/", h.Get)
			s.Group(func(auth chi.Router) {
				if cfg.AuthRateLimitRPS > 0 {
					auth.Use(httpmiddleware.RateLimit(cfg.AuthRateLimitRPS, cfg.AuthRateBurst))
				}
				auth.Post("/login", h.Login)
				auth.Post("/signup", h.Signup)
			})
			s.Post("/logout", h.Logout)
			s.Post("/activity", h.Activity)
		})
	}

	if h := cfg.AppointmentsHandler; h != nil {
		r.Route("/appointments", func(a chi.Router) {
			a.Use(httpmiddleware.RequireSession(cfg.Sessions))
			a.With(httpmiddleware.MarkedActivity(touch)).Post("/refresh", h.Refresh)
			a.Group(func(u chi.Router) {
				u.Use(httpmiddleware.Activity(touch))
				u.Get("/", h.List)
				u.Post("/", h.Book)
				u.Post("/{id}/cancel", h.Cancel)
				u.Post("/{id}/notes", h.AddNote)
			})
		})
	}

	return r
}
