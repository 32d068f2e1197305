package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/lasource18/options-price-calculator/internal/domain"
	"github.com/lasource18/options-price-calculator/internal/pricing/fdm"
	"github.com/lasource18/options-price-calculator/internal/service"
	"github.com/lasource18/options-price-calculator/internal/valuation"
)

// PricingService defines the methods that the pricing handler requires from
// the service layer.
type PricingService interface {
	PriceAnalytic(ctx context.Context, req service.AnalyticRequest) (service.AnalyticResponse, error)
	ImpliedVolatility(ctx context.Context, req service.AnalyticRequest) (service.IVResponse, error)
	GreeksCurve(ctx context.Context, req service.GreeksRequest) (service.GreeksResponse, error)
	PriceFiniteDifference(ctx context.Context, req service.FDMRequest) (service.FDMResponse, error)
	Surface(ctx context.Context, req service.FDMRequest) ([]fdm.Point, error)
	PriceMonteCarlo(ctx context.Context, req service.MonteCarloRequest) (service.MonteCarloResponse, error)
	CompareValuation(theoretical, market float64) (valuation.Valuation, error)
}

// PricingHandler serves the pricing endpoints.
type PricingHandler struct {
	pricing PricingService
	logger  *slog.Logger
}

// NewPricingHandler creates a PricingHandler with the given service and logger.
func NewPricingHandler(pricing PricingService, logger *slog.Logger) *PricingHandler {
	return &PricingHandler{
		pricing: pricing,
		logger:  logger,
	}
}

// Analytic prices a contract in closed form.
// POST /api/price/analytic
func (h *PricingHandler) Analytic(w http.ResponseWriter, r *http.Request) {
	var req service.AnalyticRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.pricing.PriceAnalytic(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "price analytic", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ImpliedVol solves for the implied volatility of market_price. A search that
// does not converge answers 422 with the best midpoint in detail.
// POST /api/price/iv
func (h *PricingHandler) ImpliedVol(w http.ResponseWriter, r *http.Request) {
	var req service.AnalyticRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.pricing.ImpliedVolatility(r.Context(), req)
	if err != nil {
		var detail any
		if errors.Is(err, domain.ErrNonConvergence) {
			detail = resp
		}
		writeServiceError(w, r, h.logger, "implied volatility", err, detail)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Greeks returns the Greeks of one side across a spot window.
// POST /api/price/greeks
func (h *PricingHandler) Greeks(w http.ResponseWriter, r *http.Request) {
	var req service.GreeksRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.pricing.GreeksCurve(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "greeks curve", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// FDM prices a contract on the finite-difference grid.
// POST /api/price/fdm
func (h *PricingHandler) FDM(w http.ResponseWriter, r *http.Request) {
	var req service.FDMRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.pricing.PriceFiniteDifference(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "price fdm", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Surface returns the full grid of one side, as CSV when the client accepts
// text/csv or asks for ?format=csv.
// POST /api/price/fdm/surface
func (h *PricingHandler) Surface(w http.ResponseWriter, r *http.Request) {
	var req service.FDMRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := h.pricing.Surface(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "fdm surface", err, nil)
		return
	}

	if !wantsCSV(r) {
		writeJSON(w, http.StatusOK, map[string]any{"points": points})
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="surface.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := gocsv.Marshal(points, w); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: write surface csv failed",
			slog.String("error", err.Error()),
		)
	}
}

// MonteCarlo prices by simulation. The path category overrides the body.
// POST /api/price/montecarlo/{category}
func (h *PricingHandler) MonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req service.MonteCarloRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if category := pathParam(r, "category"); category != "" {
		req.Category = category
	}
	resp, err := h.pricing.PriceMonteCarlo(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "price monte carlo", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Valuation classifies a model price against a market price.
// POST /api/valuation
func (h *PricingHandler) Valuation(w http.ResponseWriter, r *http.Request) {
	var req service.ValuationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := h.pricing.CompareValuation(req.Theoretical, req.Market)
	if err != nil {
		writeServiceError(w, r, h.logger, "valuation", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

// Compile-time interface check.
var _ PricingService = (*service.PricingService)(nil)
