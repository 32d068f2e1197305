// Package service exposes the pricing engines to the HTTP and CLI shells:
// it turns user-facing requests into engine parameters, enforces compute
// limits, and memoizes and announces results.
package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/lasource18/options-price-calculator/internal/daycount"
	"github.com/lasource18/options-price-calculator/internal/domain"
	"github.com/lasource18/options-price-calculator/internal/pricing/analytic"
	"github.com/lasource18/options-price-calculator/internal/pricing/fdm"
	"github.com/lasource18/options-price-calculator/internal/pricing/montecarlo"
	"github.com/lasource18/options-price-calculator/internal/valuation"
)

// EventChannelPrefix prefixes the bus channel of every engine's events.
const EventChannelPrefix = "pricing:"

// Engine names used in cache keys and event channels.
const (
	EngineAnalytic   = "analytic"
	EngineIV         = "iv"
	EngineGreeks     = "greeks"
	EngineFDM        = "fdm"
	EngineMonteCarlo = "montecarlo"
)

// Options configures a PricingService.
type Options struct {
	FDMLimits         fdm.Limits
	MonteCarloLimits  montecarlo.Limits
	Bisect            analytic.BisectConfig
	DayCount          daycount.Convention
	DefaultAssetSteps int
	DefaultTimesteps  int
	DefaultSims       int
	DefaultSeed       uint64
	CacheTTL          time.Duration
}

// DefaultOptions returns unlimited engines with the stock defaults.
func DefaultOptions() Options {
	return Options{
		Bisect:            analytic.DefaultBisect,
		DayCount:          daycount.Business252,
		DefaultAssetSteps: fdm.DefaultAssetSteps,
		DefaultTimesteps:  252,
		DefaultSims:       10000,
		DefaultSeed:       montecarlo.DefaultSeed,
		CacheTTL:          10 * time.Minute,
	}
}

// response is implemented by every cached engine response.
type response interface {
	summary() (domain.Side, float64)
}

// PricingService runs pricing requests. cache and bus may be nil, in which
// case results are neither memoized nor published.
type PricingService struct {
	opts   Options
	fdm    fdm.Solver
	mc     montecarlo.Engine
	cache  domain.ResultCache
	bus    domain.SignalBus
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// NewPricingService creates a PricingService.
func NewPricingService(
	opts Options,
	cache domain.ResultCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *PricingService {
	return &PricingService{
		opts:   opts,
		fdm:    fdm.Solver{Limits: opts.FDMLimits},
		mc:     montecarlo.Engine{Limits: opts.MonteCarloLimits},
		cache:  cache,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// PriceAnalytic prices both sides in closed form. An observed market price
// adds the implied volatility and a valuation; failure of the implied
// volatility search to converge is reported as a warning, not an error.
func (s *PricingService) PriceAnalytic(ctx context.Context, req AnalyticRequest) (AnalyticResponse, error) {
	spec, err := s.contract(req.ContractRequest)
	if err != nil {
		return AnalyticResponse{}, err
	}
	key := struct {
		Spec   domain.ContractSpec
		Market *float64
	}{spec, req.MarketPrice}

	resp, cached, err := run(ctx, s, EngineAnalytic, key, func(ctx context.Context) (AnalyticResponse, error) {
		res, err := analytic.Price(spec)
		if err != nil {
			return AnalyticResponse{}, err
		}
		out := AnalyticResponse{Result: res, Greeks: res.Greeks(spec.Side)}

		out.ImpliedVol, err = analytic.ImpliedVolWith(spec, req.MarketPrice, spec.Side, s.opts.Bisect)
		switch {
		case errors.Is(err, domain.ErrNonConvergence):
			out.Warnings = append(out.Warnings, err.Error())
		case err != nil:
			return AnalyticResponse{}, err
		}

		out.Assessment, err = assess(spec.Spot, spec.Strike, spec.Side, res.Price(spec.Side), req.MarketPrice)
		if err != nil {
			return AnalyticResponse{}, err
		}
		return out, nil
	})
	resp.Cached = cached
	return resp, err
}

// ImpliedVolatility solves for the volatility that reprices the requested side
// to req.MarketPrice. On ErrNonConvergence the response still carries the
// best midpoint.
func (s *PricingService) ImpliedVolatility(ctx context.Context, req AnalyticRequest) (IVResponse, error) {
	spec, err := s.contract(req.ContractRequest)
	if err != nil {
		return IVResponse{}, err
	}
	key := struct {
		Spec   domain.ContractSpec
		Market *float64
	}{spec, req.MarketPrice}

	resp, cached, err := run(ctx, s, EngineIV, key, func(ctx context.Context) (IVResponse, error) {
		iv, err := analytic.ImpliedVolWith(spec, req.MarketPrice, spec.Side, s.opts.Bisect)
		return IVResponse{Side: spec.Side, IVResult: iv}, err
	})
	resp.Cached = cached
	return resp, err
}

// GreeksCurve returns the requested side's Greeks across a spot window.
func (s *PricingService) GreeksCurve(ctx context.Context, req GreeksRequest) (GreeksResponse, error) {
	spec, err := s.contract(req.ContractRequest)
	if err != nil {
		return GreeksResponse{}, err
	}
	lower, upper := req.Lower, req.Upper
	if lower == 0 && upper == 0 {
		lower, upper = analytic.DefaultCurveWindow(spec.Spot)
	}
	key := struct {
		Spec         domain.ContractSpec
		Lower, Upper int
	}{spec, lower, upper}

	resp, cached, err := run(ctx, s, EngineGreeks, key, func(ctx context.Context) (GreeksResponse, error) {
		points, err := analytic.GreeksCurve(spec, lower, upper)
		if err != nil {
			return GreeksResponse{}, err
		}
		return GreeksResponse{Side: spec.Side, Points: points}, nil
	})
	resp.Cached = cached
	return resp, err
}

// PriceFiniteDifference prices both sides on the finite-difference grid.
func (s *PricingService) PriceFiniteDifference(ctx context.Context, req FDMRequest) (FDMResponse, error) {
	params, side, spot, err := s.fdmParams(req)
	if err != nil {
		return FDMResponse{}, err
	}
	key := struct {
		Params fdm.Params
		Side   domain.Side
		Spot   float64
		Market *float64
	}{params, side, spot, req.MarketPrice}

	resp, cached, err := run(ctx, s, EngineFDM, key, func(ctx context.Context) (FDMResponse, error) {
		res, err := s.fdm.Price(ctx, params)
		if err != nil {
			return FDMResponse{}, err
		}
		price := res.CallPrice
		if side == domain.SidePut {
			price = res.PutPrice
		}
		a, err := assess(spot, params.Strike, side, price, req.MarketPrice)
		if err != nil {
			return FDMResponse{}, err
		}
		return FDMResponse{Result: res, Assessment: a}, nil
	})
	resp.Cached = cached
	return resp, err
}

// Surface returns every node of the requested side's grid. Surfaces are not
// cached.
func (s *PricingService) Surface(ctx context.Context, req FDMRequest) ([]fdm.Point, error) {
	params, side, _, err := s.fdmParams(req)
	if err != nil {
		return nil, err
	}
	grid, err := s.fdm.SolveContext(ctx, params, fdm.FlagFor(side))
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "pricing_service: solved surface",
		slog.String("side", string(side)),
		slog.Int("asset_steps", grid.AssetSteps()),
		slog.Int("time_steps", grid.TimeSteps()),
	)
	return grid.Points(), nil
}

// PriceMonteCarlo prices both sides by simulation.
func (s *PricingService) PriceMonteCarlo(ctx context.Context, req MonteCarloRequest) (MonteCarloResponse, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return MonteCarloResponse{}, err
	}
	horizon := req.Horizon
	if req.HorizonDate != "" {
		if horizon, err = s.opts.DayCount.YearsUntil(req.HorizonDate, s.now()); err != nil {
			return MonteCarloResponse{}, err
		}
	}
	params := montecarlo.Params{
		Spot:      req.Spot,
		Strike:    req.Strike,
		Mu:        req.Mu,
		Sigma:     req.Sigma,
		Horizon:   horizon,
		Timesteps: orDefault(req.Timesteps, s.opts.DefaultTimesteps),
		Sims:      orDefault(req.Sims, s.opts.DefaultSims),
		Seed:      s.opts.DefaultSeed,
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}
	if req.Category != "" {
		if params.Category, err = domain.ParseCategory(req.Category); err != nil {
			return MonteCarloResponse{}, err
		}
	}
	key := struct {
		Params montecarlo.Params
		Side   domain.Side
		Market *float64
	}{params, side, req.MarketPrice}

	resp, cached, err := run(ctx, s, EngineMonteCarlo, key, func(ctx context.Context) (MonteCarloResponse, error) {
		res, err := s.mc.Price(ctx, params)
		if err != nil {
			return MonteCarloResponse{}, err
		}
		price := res.CallPrice
		if side == domain.SidePut {
			price = res.PutPrice
		}
		a, err := assess(params.Spot, params.Strike, side, price, req.MarketPrice)
		if err != nil {
			return MonteCarloResponse{}, err
		}
		return MonteCarloResponse{Result: res, Assessment: a}, nil
	})
	resp.Cached = cached
	return resp, err
}

// CompareValuation classifies a model price against a market price.
func (s *PricingService) CompareValuation(theoretical, market float64) (valuation.Valuation, error) {
	return valuation.Compare(theoretical, market)
}

func (s *PricingService) contract(req ContractRequest) (domain.ContractSpec, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return domain.ContractSpec{}, err
	}
	dte, err := s.yearsTo(req.Expiry, req.DTE)
	if err != nil {
		return domain.ContractSpec{}, err
	}
	return domain.ContractFromPercent(req.Spot, req.Strike, req.Rate, dte, req.Vol, req.Div, side)
}

func (s *PricingService) fdmParams(req FDMRequest) (fdm.Params, domain.Side, float64, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return fdm.Params{}, "", 0, err
	}
	dte, err := s.yearsTo(req.Expiry, req.DTE)
	if err != nil {
		return fdm.Params{}, "", 0, err
	}
	spot := req.Spot
	if spot == 0 {
		spot = req.Strike
	}
	return fdm.Params{
		Strike:     req.Strike,
		Vol:        req.Vol,
		Rate:       req.Rate,
		DTE:        dte,
		AssetSteps: orDefault(req.AssetSteps, s.opts.DefaultAssetSteps),
	}, side, spot, nil
}

func (s *PricingService) yearsTo(expiry string, dte float64) (float64, error) {
	if expiry == "" {
		return dte, nil
	}
	return s.opts.DayCount.YearsUntil(expiry, s.now())
}

// run serves a request from the cache when possible and otherwise computes
// it once per key across concurrent callers, then stores and announces the
// result. Cache and bus failures are logged and never fail the request.
func run[T response](
	ctx context.Context,
	s *PricingService,
	engine string,
	req any,
	compute func(context.Context) (T, error),
) (T, bool, error) {
	var zero T

	key, err := cacheKey(engine, req)
	if err != nil {
		return zero, false, err
	}

	if s.cache != nil {
		payload, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var hit T
			if err := json.Unmarshal(payload, &hit); err == nil {
				return hit, true, nil
			}
			s.logger.WarnContext(ctx, "pricing_service: discard undecodable cache entry",
				slog.String("engine", engine),
				slog.String("key", key),
			)
		case !errors.Is(err, domain.ErrNotFound):
			s.logger.WarnContext(ctx, "pricing_service: cache get failed",
				slog.String("engine", engine),
				slog.String("error", err.Error()),
			)
		}
	}

	// The shared computation must outlive any single caller, so it runs
	// detached from ctx. Each caller still stops waiting when its own ctx ends.
	ch := s.group.DoChan(key, func() (any, error) {
		cctx := context.WithoutCancel(ctx)
		start := time.Now()
		out, err := compute(cctx)
		if err != nil {
			return out, err
		}
		s.store(cctx, engine, key, out)
		s.publish(cctx, engine, out, time.Since(start))
		return out, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.DebugContext(ctx, "pricing_service: shared in-flight result",
				slog.String("engine", engine),
			)
		}
		out, _ := res.Val.(T)
		return out, false, res.Err
	case <-ctx.Done():
		return zero, false, fmt.Errorf("pricing_service: %s request abandoned: %w", engine, ctx.Err())
	}
}

func (s *PricingService) store(ctx context.Context, engine, key string, out any) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(out)
	if err != nil {
		s.logger.WarnContext(ctx, "pricing_service: marshal result failed",
			slog.String("engine", engine),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.opts.CacheTTL); err != nil {
		s.logger.WarnContext(ctx, "pricing_service: cache set failed",
			slog.String("engine", engine),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PricingService) publish(ctx context.Context, engine string, out response, elapsed time.Duration) {
	side, price := out.summary()
	s.logger.InfoContext(ctx, "pricing_service: priced",
		slog.String("engine", engine),
		slog.String("side", string(side)),
		slog.Float64("price", price),
		slog.Duration("elapsed", elapsed),
	)
	if s.bus == nil {
		return
	}

	evt, _ := json.Marshal(domain.PricingEvent{
		ID:        uuid.NewString(),
		Engine:    engine,
		Side:      side,
		Price:     price,
		Elapsed:   elapsed.String(),
		CreatedAt: s.now().UTC(),
	})
	if err := s.bus.Publish(ctx, EventChannelPrefix+engine, evt); err != nil {
		s.logger.WarnContext(ctx, "pricing_service: publish event failed",
			slog.String("engine", engine),
			slog.String("error", err.Error()),
		)
	}
}

// cacheKey hashes the engine name and the canonical JSON of the resolved
// request.
func cacheKey(engine string, req any) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("pricing_service: cache key for %s: %w", engine, err)
	}
	h := xxhash.New()
	_, _ = h.WriteString(engine)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(body)
	return engine + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

func assess(spot, strike float64, side domain.Side, price float64, market *float64) (Assessment, error) {
	breakdown, err := valuation.Decompose(spot, strike, side, price)
	if err != nil {
		return Assessment{}, err
	}
	a := Assessment{Side: side, Price: price, Breakdown: breakdown, MarketPrice: market}
	if market != nil {
		v, err := valuation.Compare(price, *market)
		if err != nil {
			return Assessment{}, err
		}
		a.Valuation = &v
	}
	return a, nil
}

func parseSide(s string) (domain.Side, error) {
	if strings.TrimSpace(s) == "" {
		return domain.SideCall, nil
	}
	return domain.ParseSide(s)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
