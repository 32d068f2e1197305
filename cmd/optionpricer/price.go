package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lasource18/options-price-calculator/internal/app"
	"github.com/lasource18/options-price-calculator/internal/domain"
	"github.com/lasource18/options-price-calculator/internal/service"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price a single contract locally and print the result",
}

var priceBSCmd = &cobra.Command{
	Use:   "bs",
	Short: "Black-Scholes-Merton price, Greeks and valuation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := localService(cmd)
		if err != nil {
			return err
		}
		req, err := contractFlags(cmd)
		if err != nil {
			return err
		}
		resp, err := svc.PriceAnalytic(cmd.Context(), service.AnalyticRequest{
			ContractRequest: req,
			MarketPrice:     marketFlag(cmd),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Side", "Price", "Delta", "Gamma", "Vega", "Theta", "Rho", "Div Sens"})
		for _, side := range []domain.Side{domain.SideCall, domain.SidePut} {
			g := resp.Result.Greeks(side)
			table.Append([]string{
				string(side), num(resp.Result.Price(side)),
				num(g.Delta), num(g.Gamma), num(g.Vega), num(g.Theta), num(g.Rho), num(g.DivSensitivity),
			})
		}
		table.Render()

		printAssessment(out, resp.Assessment)
		if resp.MarketPrice != nil {
			fmt.Fprintf(out, "implied vol (%s): %s%%\n", resp.Side, num(resp.ImpliedVol.Vol))
		}
		for _, w := range resp.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		return nil
	},
}

var priceIVCmd = &cobra.Command{
	Use:   "iv",
	Short: "Implied volatility of an observed price",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := localService(cmd)
		if err != nil {
			return err
		}
		req, err := contractFlags(cmd)
		if err != nil {
			return err
		}
		market := marketFlag(cmd)
		if market == nil {
			return fmt.Errorf("--market is required: %w", domain.ErrInvalidInput)
		}
		resp, err := svc.ImpliedVolatility(cmd.Context(), service.AnalyticRequest{
			ContractRequest: req,
			MarketPrice:     market,
		})
		// A non-converged search still reports its best midpoint.
		if resp.Iterations > 0 || err == nil {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Side", "Implied Vol %", "Iterations", "Converged"})
			table.Append([]string{
				string(resp.Side), num(resp.Vol), strconv.Itoa(resp.Iterations), strconv.FormatBool(resp.Converged),
			})
			table.Render()
		}
		return err
	},
}

var priceFDMCmd = &cobra.Command{
	Use:   "fdm",
	Short: "Explicit finite-difference grid price",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := localService(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		req := service.FDMRequest{MarketPrice: marketFlag(cmd)}
		req.Spot, _ = flags.GetFloat64("spot")
		req.Strike, _ = flags.GetFloat64("strike")
		req.Vol, _ = flags.GetFloat64("vol")
		req.Rate, _ = flags.GetFloat64("rate")
		req.DTE, _ = flags.GetFloat64("dte")
		req.Expiry, _ = flags.GetString("expiry")
		req.AssetSteps, _ = flags.GetInt("asset-steps")
		req.Side, _ = flags.GetString("side")

		resp, err := svc.PriceFiniteDifference(cmd.Context(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Call", "Put", "Asset Steps", "Time Steps"})
		table.Append([]string{
			num(resp.CallPrice), num(resp.PutPrice), strconv.Itoa(resp.AssetSteps), strconv.Itoa(resp.TimeSteps),
		})
		table.Render()
		printAssessment(out, resp.Assessment)

		path, _ := flags.GetString("surface")
		if path == "" {
			return nil
		}
		points, err := svc.Surface(cmd.Context(), req)
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create surface file: %w", err)
		}
		defer f.Close()
		if err := gocsv.MarshalFile(&points, f); err != nil {
			return fmt.Errorf("write surface file: %w", err)
		}
		fmt.Fprintf(out, "surface: %d points written to %s\n", len(points), path)
		return nil
	},
}

var priceMCCmd = &cobra.Command{
	Use:       "mc [european|asian|lookback]",
	Short:     "Monte Carlo price by geometric Brownian motion paths",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"european", "eu", "asian", "lookback"},
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := localService(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		req := service.MonteCarloRequest{MarketPrice: marketFlag(cmd)}
		if len(args) == 1 {
			req.Category = args[0]
		}
		req.Spot, _ = flags.GetFloat64("spot")
		req.Strike, _ = flags.GetFloat64("strike")
		req.Mu, _ = flags.GetFloat64("mu")
		req.Sigma, _ = flags.GetFloat64("sigma")
		req.Horizon, _ = flags.GetFloat64("horizon")
		req.HorizonDate, _ = flags.GetString("horizon-date")
		req.Timesteps, _ = flags.GetInt("timesteps")
		req.Sims, _ = flags.GetInt("sims")
		req.Side, _ = flags.GetString("side")
		if flags.Changed("seed") {
			seed, _ := flags.GetUint64("seed")
			req.Seed = &seed
		}

		resp, err := svc.PriceMonteCarlo(cmd.Context(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Category", "Call", "Call SE", "Put", "Put SE", "Steps", "Sims", "Seed"})
		table.Append([]string{
			string(resp.Category),
			num(resp.CallPrice), num(resp.CallStdErr),
			num(resp.PutPrice), num(resp.PutStdErr),
			strconv.Itoa(resp.Timesteps), strconv.Itoa(resp.Sims),
			strconv.FormatUint(resp.Seed, 10),
		})
		table.Render()
		printAssessment(out, resp.Assessment)
		return nil
	},
}

var priceCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Classify a model price against a market price",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := localService(cmd)
		if err != nil {
			return err
		}
		theoretical, _ := cmd.Flags().GetFloat64("theoretical")
		market, _ := cmd.Flags().GetFloat64("market")
		v, err := svc.CompareValuation(theoretical, market)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v.Message)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{priceBSCmd, priceIVCmd} {
		f := c.Flags()
		f.Float64("spot", 0, "underlying price")
		f.Float64("strike", 0, "strike price")
		f.Float64("rate", 0, "risk-free rate, percent")
		f.Float64("vol", 0, "volatility, percent")
		f.Float64("div", 0, "dividend yield, percent")
		f.Float64("dte", 0, "time to expiry in years")
		f.String("expiry", "", "expiry date (YYYY-MM-DD), overrides --dte")
		f.String("side", "call", "call or put")
		f.Float64("market", 0, "observed market price")
	}

	f := priceFDMCmd.Flags()
	f.Float64("spot", 0, "underlying price for the intrinsic value; defaults to the strike")
	f.Float64("strike", 0, "strike price")
	f.Float64("vol", 0, "volatility, percent")
	f.Float64("rate", 0, "risk-free rate, percent")
	f.Float64("dte", 0, "time to expiry in years")
	f.String("expiry", "", "expiry date (YYYY-MM-DD), overrides --dte")
	f.Int("asset-steps", 0, "asset intervals (even); 0 uses the configured default")
	f.String("side", "call", "call or put")
	f.Float64("market", 0, "observed market price")
	f.String("surface", "", "write the requested side's grid to this CSV file")

	f = priceMCCmd.Flags()
	f.Float64("spot", 0, "underlying price")
	f.Float64("strike", 0, "strike price")
	f.Float64("mu", 0, "drift and discount rate, percent")
	f.Float64("sigma", 0, "volatility, percent")
	f.Float64("horizon", 0, "horizon in years")
	f.String("horizon-date", "", "horizon date (YYYY-MM-DD), overrides --horizon")
	f.Int("timesteps", 0, "steps per path; 0 uses the configured default")
	f.Int("sims", 0, "number of paths; 0 uses the configured default")
	f.Uint64("seed", 0, "random seed; unset uses the configured default")
	f.String("side", "call", "call or put")
	f.Float64("market", 0, "observed market price")

	f = priceCompareCmd.Flags()
	f.Float64("theoretical", 0, "model price")
	f.Float64("market", 0, "market price")

	priceCmd.AddCommand(priceBSCmd, priceIVCmd, priceFDMCmd, priceMCCmd, priceCompareCmd)
}

// localService builds a pricing service from the configuration without Redis.
func localService(cmd *cobra.Command) (*service.PricingService, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := app.ServiceOptions(cfg)
	if err != nil {
		return nil, err
	}
	return service.NewPricingService(opts, nil, nil, newLogger(cmd.ErrOrStderr(), cfg.LogLevel)), nil
}

func contractFlags(cmd *cobra.Command) (service.ContractRequest, error) {
	var req service.ContractRequest
	f := cmd.Flags()
	for name, dst := range map[string]*float64{
		"spot": &req.Spot, "strike": &req.Strike, "rate": &req.Rate,
		"vol": &req.Vol, "div": &req.Div, "dte": &req.DTE,
	} {
		v, err := f.GetFloat64(name)
		if err != nil {
			return req, err
		}
		*dst = v
	}
	req.Expiry, _ = f.GetString("expiry")
	req.Side, _ = f.GetString("side")
	return req, nil
}

// marketFlag returns --market only when it was given.
func marketFlag(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("market") {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64("market")
	return &v
}

func printAssessment(w io.Writer, a service.Assessment) {
	fmt.Fprintf(w, "%s: price %s, intrinsic %s, time value %s\n",
		a.Side, num(a.Price), num(a.Breakdown.Intrinsic), num(a.Breakdown.TimeValue))
	if a.Valuation != nil {
		fmt.Fprintf(w, "market %s: %s\n", num(*a.MarketPrice), a.Valuation.Message)
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
