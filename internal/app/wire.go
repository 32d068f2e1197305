package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lasource18/options-price-calculator/internal/cache/redis"
	"github.com/lasource18/options-price-calculator/internal/config"
	"github.com/lasource18/options-price-calculator/internal/daycount"
	"github.com/lasource18/options-price-calculator/internal/domain"
	"github.com/lasource18/options-price-calculator/internal/pricing/analytic"
	"github.com/lasource18/options-price-calculator/internal/pricing/fdm"
	"github.com/lasource18/options-price-calculator/internal/pricing/montecarlo"
	"github.com/lasource18/options-price-calculator/internal/service"
)

// Dependencies bundles what the server needs. The Redis-backed members are nil
// when Redis is disabled.
type Dependencies struct {
	Pricing *service.PricingService

	// Redis
	Redis       *redis.Client
	ResultCache domain.ResultCache
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus
}

// ServiceOptions translates the engine and day-count sections into pricing
// service options.
func ServiceOptions(cfg *config.Config) (service.Options, error) {
	conv, err := daycount.ParseConvention(cfg.DayCount.Convention)
	if err != nil {
		return service.Options{}, err
	}

	bisect := analytic.DefaultBisect
	bisect.Tolerance = cfg.Engine.IVTolerance
	bisect.MaxIter = cfg.Engine.IVMaxIterations

	opts := service.DefaultOptions()
	opts.FDMLimits = fdm.Limits{
		MaxAssetSteps: cfg.Engine.MaxAssetSteps,
		MaxTimeSteps:  cfg.Engine.MaxTimeSteps,
	}
	opts.MonteCarloLimits = montecarlo.Limits{MaxPathCells: cfg.Engine.MaxPathCells}
	opts.Bisect = bisect
	opts.DayCount = conv
	opts.DefaultAssetSteps = cfg.Engine.DefaultAssetSteps
	opts.DefaultTimesteps = cfg.Engine.DefaultTimesteps
	opts.DefaultSims = cfg.Engine.DefaultSims
	opts.DefaultSeed = cfg.Engine.DefaultSeed
	if cfg.Redis.CacheTTL.Duration > 0 {
		opts.CacheTTL = cfg.Redis.CacheTTL.Duration
	}
	return opts, nil
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.ResultCache = redis.NewResultCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- Pricing ---
	opts, err := ServiceOptions(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: pricing options: %w", err)
	}
	deps.Pricing = service.NewPricingService(
		opts,
		deps.ResultCache,
		deps.SignalBus,
		logger.With(slog.String("component", "pricing_service")),
	)

	return deps, cleanup, nil
}
