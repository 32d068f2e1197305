// Package server assembles the HTTP API: routes, middleware and the
// WebSocket hub.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lasource18/options-price-calculator/internal/domain"
	"github.com/lasource18/options-price-calculator/internal/server/handler"
	"github.com/lasource18/options-price-calculator/internal/server/middleware"
	"github.com/lasource18/options-price-calculator/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // empty disables authentication
	RateLimit       int    // requests per RateLimitWindow per client; 0 disables
	RateLimitWindow time.Duration
	TrustedProxies  []string // peers whose forwarding headers name the client
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Pricing *handler.PricingHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers the routes and wraps them in middleware. wsHub and
// limiter are optional.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      Routes(cfg, handlers, wsHub, limiter, logger),
			ReadTimeout:  orDuration(cfg.ReadTimeout, 15*time.Second),
			WriteTimeout: orDuration(cfg.WriteTimeout, 60*time.Second),
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the handler tree. Middleware order, outermost first: CORS,
// logging, rate limit, auth.
func Routes(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("POST /api/price/analytic", handlers.Pricing.Analytic)
	mux.HandleFunc("POST /api/price/iv", handlers.Pricing.ImpliedVol)
	mux.HandleFunc("POST /api/price/greeks", handlers.Pricing.Greeks)
	mux.HandleFunc("POST /api/price/fdm", handlers.Pricing.FDM)
	mux.HandleFunc("POST /api/price/fdm/surface", handlers.Pricing.Surface)
	mux.HandleFunc("POST /api/price/montecarlo/{category}", handlers.Pricing.MonteCarlo)
	mux.HandleFunc("POST /api/valuation", handlers.Pricing.Valuation)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if limiter != nil && cfg.RateLimit > 0 {
		trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			logger.Warn("server: ignoring trusted proxies", slog.String("error", err.Error()))
			trusted = nil
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, orDuration(cfg.RateLimitWindow, time.Minute), trusted, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
