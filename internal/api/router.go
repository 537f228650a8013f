package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling/internal/appointment"
	"github.com/hackgods/provider-scheduling/internal/availability"
	"github.com/hackgods/provider-scheduling/internal/metrics"
	"github.com/hackgods/provider-scheduling/internal/slots"
)

type RouterConfig struct {
	Schedules *availability.Service
	Resolver  *slots.Resolver
	Engine    *appointment.Engine
	Auth      *Authenticator
	Metrics   *metrics.Collector
	Log       zerolog.Logger

	// Optional; nil dependencies are reported as disabled.
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Breaker BreakerState

	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(MetricsMiddleware(cfg.Metrics))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Breaker, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	h := &handlers{
		schedules: cfg.Schedules,
		resolver:  cfg.Resolver,
		engine:    cfg.Engine,
		log:       cfg.Log.With().Str("component", "api").Logger(),
	}

	r.Get("/grid", h.grid)

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)

		r.Route("/providers/{providerID}", func(r chi.Router) {
			r.Put("/schedule", h.setSchedule)
			r.Get("/schedule", h.getSchedule)
			r.Get("/slots", h.availableSlots)
			r.Get("/bookable", h.bookableSlots)
			r.Get("/appointments", h.listByProvider)
		})

		r.Get("/patients/{patientID}/appointments", h.listByPatient)

		r.Post("/appointments", h.reserve)
		r.Route("/appointments/{id}", func(r chi.Router) {
			r.Get("/", h.getAppointment)
			r.Post("/confirm", h.transition(h.confirm))
			r.Post("/complete", h.transition(h.complete))
			r.Post("/cancel", h.transition(h.cancel))
			r.Post("/reschedule", h.reschedule)
		})
	})

	return r
}
