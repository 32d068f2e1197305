package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lasource18/options-price-calculator/internal/server"
	"github.com/lasource18/options-price-calculator/internal/server/handler"
	"github.com/lasource18/options-price-calculator/internal/server/ws"
	"github.com/lasource18/options-price-calculator/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may take once the
// context is cancelled.
const shutdownTimeout = 5 * time.Second

// Serve runs the HTTP server, and the WebSocket hub when a signal bus is
// wired, until ctx is cancelled.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	var pinger handler.Pinger
	if deps.Redis != nil {
		pinger = deps.Redis
	}
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(pinger, a.logger),
		Pricing: handler.NewPricingHandler(deps.Pricing, a.logger),
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, service.EventChannelPrefix+"*", a.logger.With(slog.String("component", "ws")))
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		TrustedProxies:  a.cfg.Server.TrustedProxies,
		ReadTimeout:     a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout:    a.cfg.Server.WriteTimeout.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger.With(slog.String("component", "http")))

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}
