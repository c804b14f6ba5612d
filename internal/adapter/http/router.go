package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/wagerledger/internal/adapter/http/handler"
	"github.com/iho/wagerledger/internal/adapter/http/middleware"
	"github.com/iho/wagerledger/internal/infrastructure/metrics"
	"github.com/iho/wagerledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	WalletHandler  *handler.WalletHandler
	GameHandler    *handler.GameHandler
	RatesHandler   *handler.RatesHandler
	HealthHandler  *handler.HealthHandler
	AuthHandler    *handler.AuthHandler // optional, mounts the dev token endpoint
	Users          *middleware.UserResolver
	Realtime       http.Handler // optional websocket endpoint
	MetricsHandler http.Handler // optional /metrics endpoint

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/rates", cfg.RatesHandler.Get)
		if cfg.AuthHandler != nil {
			r.Post("/auth/token", cfg.AuthHandler.IssueToken)
		}

		r.Group(func(r chi.Router) {
			r.Use(cfg.Users.Require)

			// Runs after user resolution so keys are scoped per user.
			if cfg.IdempotencyStore != nil {
				r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
			}

			if cfg.AuthHandler != nil {
				r.Get("/auth/me", cfg.AuthHandler.Me)
			}

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/balance", cfg.WalletHandler.Balance)
				r.Post("/deposit", cfg.WalletHandler.Deposit)
				r.Post("/withdraw", cfg.WalletHandler.Withdraw)
				r.Get("/transactions", cfg.WalletHandler.Transactions)
			})

			r.Route("/games", func(r chi.Router) {
				r.Post("/bet", cfg.GameHandler.Bet)
				r.Post("/win", cfg.GameHandler.Win)
				r.Post("/play", cfg.GameHandler.Play)
				r.Get("/rounds", cfg.GameHandler.Rounds)
			})
		})
	})

	if cfg.Realtime != nil {
		r.With(cfg.Users.Require).Method(http.MethodGet, "/ws", cfg.Realtime)
	}

	return r
}
