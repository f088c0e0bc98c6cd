package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deltastack/internal/greeks"
	"deltastack/internal/models"
)

func addGreeksCommands(rootCmd *cobra.Command, app func() *App) {
	greeksCmd := &cobra.Command{
		Use:   "greeks",
		Short: "Black-Scholes pricing, greeks and implied volatility",
	}

	greeksCmd.AddCommand(newGreeksComputeCmd(app))
	greeksCmd.AddCommand(newGreeksIVCmd(app))

	rootCmd.AddCommand(greeksCmd)
}

func parseOptionType(s string) (models.OptionType, error) {
	t := models.OptionType(strings.ToLower(s))
	if !t.Valid() {
		return "", fmt.Errorf("type must be call or put, got %q", s)
	}
	return t, nil
}

func newGreeksComputeCmd(app func() *App) *cobra.Command {
	var (
		spot, strike, days, sigma, rate float64
		optType                         string
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute option price and greeks",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)

			t, err := parseOptionType(optType)
			if err != nil {
				return err
			}
			r := rate
			if r < 0 {
				r = app().Config.Options.RiskFreeRate
			}

			g, err := greeks.Compute(spot, strike, days/365.0, r, sigma, t)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(g)
			}
			out.Bold("%s  S=%.2f K=%.2f  %.1f days  vol %.1f%%", t, spot, strike, days, sigma*100)
			out.Printf("  price: %.4f\n", g.Price)
			out.Printf("  delta: %.4f\n", g.Delta)
			out.Printf("  gamma: %.4f\n", g.Gamma)
			out.Printf("  theta: %.4f\n", g.Theta)
			out.Printf("  vega:  %.4f\n", g.Vega)
			return nil
		},
	}

	cmd.Flags().Float64Var(&spot, "spot", 0, "underlying price")
	cmd.Flags().Float64Var(&strike, "strike", 0, "strike price")
	cmd.Flags().Float64Var(&days, "days", 0, "days to expiry")
	cmd.Flags().Float64Var(&sigma, "vol", 0, "annualised volatility (e.g. 0.20)")
	cmd.Flags().Float64Var(&rate, "rate", -1, "risk-free rate (default from config)")
	cmd.Flags().StringVar(&optType, "type", "put", "option type (call or put)")
	cmd.MarkFlagRequired("spot")
	cmd.MarkFlagRequired("strike")
	cmd.MarkFlagRequired("days")
	cmd.MarkFlagRequired("vol")
	return cmd
}

func newGreeksIVCmd(app func() *App) *cobra.Command {
	var (
		price, spot, strike, days, rate float64
		optType                         string
	)

	cmd := &cobra.Command{
		Use:   "iv",
		Short: "Solve implied volatility from a market price",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)

			t, err := parseOptionType(optType)
			if err != nil {
				return err
			}
			r := rate
			if r < 0 {
				r = app().Config.Options.RiskFreeRate
			}

			iv, ok := greeks.ImpliedVol(price, spot, strike, days/365.0, r, t)
			if !ok {
				return fmt.Errorf("implied volatility did not converge for price %.4f", price)
			}

			if out.IsJSON() {
				return out.JSON(map[string]float64{"implied_vol": iv})
			}
			out.Printf("implied vol: %.2f%%\n", iv*100)
			return nil
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "observed option price")
	cmd.Flags().Float64Var(&spot, "spot", 0, "underlying price")
	cmd.Flags().Float64Var(&strike, "strike", 0, "strike price")
	cmd.Flags().Float64Var(&days, "days", 0, "days to expiry")
	cmd.Flags().Float64Var(&rate, "rate", -1, "risk-free rate (default from config)")
	cmd.Flags().StringVar(&optType, "type", "put", "option type (call or put)")
	cmd.MarkFlagRequired("price")
	cmd.MarkFlagRequired("spot")
	cmd.MarkFlagRequired("strike")
	cmd.MarkFlagRequired("days")
	return cmd
}
