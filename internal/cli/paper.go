package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deltastack/internal/models"
	"deltastack/internal/risk"
	"deltastack/pkg/utils"
)

func addPaperCommands(rootCmd *cobra.Command, app func() *App) {
	paperCmd := &cobra.Command{
		Use:   "paper",
		Short: "Paper broker orders, positions and account",
	}

	paperCmd.AddCommand(newPaperOrderCmd(app))
	paperCmd.AddCommand(newPaperPositionsCmd(app))
	paperCmd.AddCommand(newPaperAccountCmd(app))

	rootCmd.AddCommand(paperCmd)
}

func newPaperOrderCmd(app func() *App) *cobra.Command {
	var (
		ticker   string
		side     string
		qty      float64
		skipRisk bool
	)

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place a paper order at the last close",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			a := app()

			order := models.OrderRequest{
				Ticker: strings.ToUpper(ticker),
				Side:   models.OrderSide(strings.ToUpper(side)),
				Qty:    qty,
			}
			if order.Side != models.SideBuy && order.Side != models.SideSell {
				return fmt.Errorf("side must be buy or sell, got %q", side)
			}

			if !skipRisk {
				engine := risk.NewEngine(a.Config.Risk, a.Config.ZeroDTE, a.Config.Paper.InitialCash, a.Broker, a.Bars, a.Logger)
				verdict, err := engine.EvaluatePlan(cmd.Context(), []models.OrderRequest{order})
				if err != nil {
					return err
				}
				if !verdict.Accepted {
					if out.IsJSON() {
						return out.JSON(verdict)
					}
					out.Error("order blocked by risk checks:")
					for _, code := range verdict.ReasonCodes {
						out.Printf("  - %s\n", code)
					}
					return nil
				}
			}

			fill, err := a.Broker.PlaceOrder(cmd.Context(), order)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(fill)
			}
			if fill.Status == models.OrderRejected {
				out.Error("rejected: %s", fill.Message)
				return nil
			}
			out.Success("%s %s %.0f %s @ %.2f  (commission %.2f, order %s)",
				string(fill.Status), string(fill.Side), fill.Qty, fill.Ticker, fill.FillPrice, fill.Commission, fill.OrderID)
			return nil
		},
	}

	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker symbol")
	cmd.Flags().StringVar(&side, "side", "", "buy or sell")
	cmd.Flags().Float64Var(&qty, "qty", 0, "quantity in shares")
	cmd.Flags().BoolVar(&skipRisk, "skip-risk", false, "bypass the risk engine checks")
	cmd.MarkFlagRequired("ticker")
	cmd.MarkFlagRequired("side")
	cmd.MarkFlagRequired("qty")
	return cmd
}

func newPaperPositionsCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "List open paper positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			positions, err := app().Broker.GetPositions(cmd.Context())
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(positions)
			}
			if len(positions) == 0 {
				out.Println("no open positions")
				return nil
			}

			rows := make([][]string, 0, len(positions))
			for _, p := range positions {
				rows = append(rows, []string{
					p.Ticker,
					fmt.Sprintf("%.0f", p.Qty),
					fmt.Sprintf("%.2f", p.AvgPrice),
					fmt.Sprintf("%.2f", p.MarketPrice),
					out.PnL(p.UnrealizedPnL),
				})
			}
			out.Table([]string{"Ticker", "Qty", "Avg", "Last", "Unrealized"}, rows)
			return nil
		},
	}
}

func newPaperAccountCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the paper account summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			account, err := app().Broker.GetAccount(cmd.Context())
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(account)
			}
			out.Bold("Paper account")
			out.Printf("  cash:      %s\n", utils.FormatCurrency(account.Cash))
			out.Printf("  positions: %s (%d)\n", utils.FormatCurrency(account.PositionsValue), account.NumPositions)
			out.Printf("  equity:    %s\n", utils.FormatCurrency(account.Equity))
			return nil
		},
	}
}
