package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/adapter/http/handler"
	"github.com/iho/splitledger/internal/adapter/http/middleware"
	"github.com/iho/splitledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ContextHandler *handler.ContextHandler
	EntryHandler   *handler.EntryHandler
	BalanceHandler *handler.BalanceHandler
	LedgerHandler  *handler.LedgerHandler
	HealthHandler  *handler.HealthHandler
	AuthHandler    *handler.AuthHandler

	// Authenticator enables bearer-token auth. Without it the X-User-ID
	// header is trusted.
	Authenticator middleware.Authenticator
	AuthFailures  *prometheus.CounterVec

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
	MetricsHandler   http.Handler
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Authenticator != nil {
			r.Use(middleware.AuthMiddleware(cfg.Authenticator, cfg.AuthFailures))
		} else {
			r.Use(middleware.HeaderAuth)
		}

		// Idempotency keys are scoped per user, so this runs after auth.
		if cfg.IdempotencyStore != nil {
			ttl := cfg.IdempotencyTTL
			if ttl == 0 {
				ttl = usecase.IdempotencyKeyTTL
			}
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, ttl, cfg.Logger).Wrap)
		}

		if cfg.AuthHandler != nil {
			r.Get("/me", cfg.AuthHandler.Me)
		}

		// Contexts
		r.Post("/contexts/friends", cfg.ContextHandler.CreateFriend)
		r.Post("/contexts/groups", cfg.ContextHandler.CreateGroup)
		r.Get("/contexts", cfg.ContextHandler.List)
		r.Get("/contexts/{id}", cfg.ContextHandler.Get)
		r.Get("/contexts/{id}/roster", cfg.ContextHandler.Roster)
		r.Post("/contexts/{id}/members", cfg.ContextHandler.AddMembers)

		// Entries
		r.Post("/contexts/{id}/entries", cfg.EntryHandler.Append)
		r.Get("/contexts/{id}/entries", cfg.EntryHandler.List)
		r.Get("/contexts/{id}/sections", cfg.EntryHandler.Sections)
		r.Get("/entries/{id}", cfg.EntryHandler.Get)

		// Balances
		r.Get("/contexts/{id}/balance", cfg.BalanceHandler.Net)
		r.Get("/contexts/{id}/breakdown", cfg.BalanceHandler.Breakdown)
		r.Get("/contexts/{id}/summary", cfg.BalanceHandler.Summary)
		r.Get("/contexts/{id}/consistency", cfg.LedgerHandler.CheckConsistency)
		r.Get("/dashboard", cfg.BalanceHandler.Dashboard)
		r.Get("/friends", cfg.BalanceHandler.Friends)
	})

	return r
}
