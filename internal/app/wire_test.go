package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasource18/options-price-calculator/internal/config"
	"github.com/lasource18/options-price-calculator/internal/daycount"
	"github.com/lasource18/options-price-calculator/internal/domain"
	"github.com/lasource18/options-price-calculator/internal/service"
)

func TestServiceOptions(t *testing.T) {
	t.Run("maps the engine section", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Engine.MaxAssetSteps = 100
		cfg.Engine.MaxPathCells = 5_000_000
		cfg.Engine.DefaultSeed = 99
		cfg.Engine.IVMaxIterations = 50
		cfg.DayCount.Convention = "calendar365"

		opts, err := ServiceOptions(&cfg)
		require.NoError(t, err)
		assert.Equal(t, 100, opts.FDMLimits.MaxAssetSteps)
		assert.Equal(t, 5_000_000, opts.MonteCarloLimits.MaxPathCells)
		assert.Equal(t, uint64(99), opts.DefaultSeed)
		assert.Equal(t, 50, opts.Bisect.MaxIter)
		assert.Equal(t, 500.0, opts.Bisect.High)
		assert.Equal(t, daycount.Calendar365, opts.DayCount)
		assert.Equal(t, 10*time.Minute, opts.CacheTTL)
	})

	t.Run("rejects an unknown convention", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.DayCount.Convention = "act360"
		_, err := ServiceOptions(&cfg)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestWireWithoutRedis(t *testing.T) {
	cfg := config.Defaults()
	cfg.Engine.MaxAssetSteps = 100

	deps, cleanup, err := Wire(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, deps.Redis)
	assert.Nil(t, deps.ResultCache)
	assert.Nil(t, deps.RateLimiter)
	assert.Nil(t, deps.SignalBus)
	require.NotNil(t, deps.Pricing)

	_, err = deps.Pricing.PriceFiniteDifference(context.Background(), service.FDMRequest{
		Strike: 100, Vol: 20, Rate: 5, DTE: 1, AssetSteps: 200,
	})
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)

	resp, err := deps.Pricing.PriceFiniteDifference(context.Background(), service.FDMRequest{
		Strike: 100, Vol: 20, Rate: 5, DTE: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 10.26, resp.CallPrice)
	assert.False(t, resp.Cached)
}
