package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deltastack/internal/backtest"
	"deltastack/internal/models"
	"deltastack/internal/zerodte"
	"deltastack/pkg/utils"
)

func addBacktestCommands(rootCmd *cobra.Command, app func() *App) {
	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run backtests over stored market data",
	}

	backtestCmd.AddCommand(newZeroDTECmd(app))
	backtestCmd.AddCommand(newCreditSpreadCmd(app))
	backtestCmd.AddCommand(newSMACmd(app))
	backtestCmd.AddCommand(newBuyHoldCmd(app))
	backtestCmd.AddCommand(newPortfolioCmd(app))
	backtestCmd.AddCommand(newWalkForwardCmd(app))

	rootCmd.AddCommand(backtestCmd)
}

// strategyFlags are the zero-dte parameters shared by backtest, tick and
// replay commands.
type strategyFlags struct {
	underlying    string
	spreadType    string
	targetDelta   float64
	width         float64
	contracts     int
	minVolume     int64
	maxBidAskPct  float64
	entryStart    string
	entryEnd      string
	forceExit     string
	profitTakePct float64
	stopLossPct   float64
	interval      int
	maxPosMinutes int
}

func (f *strategyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.underlying, "underlying", "SPY", "underlying ticker")
	cmd.Flags().StringVar(&f.spreadType, "spread-type", "bull_put", "spread type (bull_put or bear_call)")
	cmd.Flags().Float64Var(&f.targetDelta, "delta", 0.20, "target absolute delta for the short leg")
	cmd.Flags().Float64Var(&f.width, "width", 2, "strike width in price units")
	cmd.Flags().IntVar(&f.contracts, "contracts", 1, "number of spreads")
	cmd.Flags().Int64Var(&f.minVolume, "min-volume", 100, "minimum contract volume")
	cmd.Flags().Float64Var(&f.maxBidAskPct, "max-spread-pct", 0.10, "maximum bid-ask width as fraction of mid")
	cmd.Flags().StringVar(&f.entryStart, "entry-start", "1000", "entry window start (HHMM)")
	cmd.Flags().StringVar(&f.entryEnd, "entry-end", "1430", "entry window end (HHMM)")
	cmd.Flags().StringVar(&f.forceExit, "force-exit", "1545", "forced exit time (HHMM)")
	cmd.Flags().Float64Var(&f.profitTakePct, "profit-take", 0.50, "profit target as fraction of credit")
	cmd.Flags().Float64Var(&f.stopLossPct, "stop-loss", 1.00, "stop loss as fraction of credit")
	cmd.Flags().IntVar(&f.interval, "interval", 5, "snapshot interval in minutes")
	cmd.Flags().IntVar(&f.maxPosMinutes, "max-position-minutes", 0, "time stop in minutes (0 uses the configured cap)")
}

func (f *strategyFlags) params(app *App) zerodte.StrategyParams {
	maxPos := f.maxPosMinutes
	if maxPos <= 0 {
		maxPos = app.Config.ZeroDTE.MaxPositionMinutes
	}
	return zerodte.StrategyParams{
		Underlying:         strings.ToUpper(f.underlying),
		SpreadType:         models.SpreadType(f.spreadType),
		TargetDeltaAbs:     f.targetDelta,
		Width:              f.width,
		Contracts:          f.contracts,
		Multiplier:         app.Config.Options.ContractMultiplier,
		MinVolume:          f.minVolume,
		MaxBidAskPct:       f.maxBidAskPct,
		EntryStart:         f.entryStart,
		EntryEnd:           f.entryEnd,
		ForceExit:          f.forceExit,
		ProfitTakePct:      f.profitTakePct,
		StopLossPct:        f.stopLossPct,
		SlippagePct:        app.Config.Options.SlippagePct,
		StrikeTolerance:    app.Config.Options.StrikeTolerance,
		IntervalMinutes:    f.interval,
		MaxPositionMinutes: maxPos,
	}
}

func newZeroDTECmd(app func() *App) *cobra.Command {
	var (
		date  string
		flags strategyFlags
	)

	cmd := &cobra.Command{
		Use:   "zero-dte",
		Short: "Backtest the 0DTE credit spread strategy on one trading day",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			a := app()

			if !utils.ValidDate(date) {
				return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
			}

			bt := zerodte.NewBacktester(a.Snapshots, a.Store, a.Store, a.Logger)
			result, err := bt.Run(cmd.Context(), date, flags.params(a))
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(result)
			}

			out.Bold("0DTE backtest  %s  %s  run %s", result.Underlying, result.Date, result.RunID)
			out.Printf("  total pnl:    %s\n", out.PnL(result.Metrics.TotalPnL))
			out.Printf("  trades:       %d\n", result.Metrics.NumTrades)
			out.Printf("  win rate:     %.0f%%\n", result.Metrics.WinRate*100)
			out.Printf("  mae / mfe:    %.2f / %.2f\n", result.Metrics.MAE, result.Metrics.MFE)
			out.Printf("  avg hold:     %.0f min\n", result.Metrics.AvgHoldMinutes)

			if len(result.Trades) > 0 {
				rows := make([][]string, 0, len(result.Trades))
				for _, t := range result.Trades {
					rows = append(rows, []string{
						t.EntryTime, t.ExitTime,
						fmt.Sprintf("%.1f/%.1f", t.ShortStrike, t.LongStrike),
						fmt.Sprintf("%.2f", t.Credit),
						out.PnL(t.PnL),
						string(t.ExitReason),
						fmt.Sprintf("%d", t.MinutesHeld),
					})
				}
				out.Println()
				out.Table([]string{"Entry", "Exit", "Strikes", "Credit", "PnL", "Reason", "Held"}, rows)
			}

			if len(result.Skips) > 0 {
				out.Dim("%d snapshots skipped", len(result.Skips))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "trading date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("date")
	flags.register(cmd)
	return cmd
}

func newCreditSpreadCmd(app func() *App) *cobra.Command {
	var (
		date, underlying, spreadType string
		dte, dteClose                int
		width, targetDelta           float64
		contracts                    int
		minVolume                    int64
		maxBidAskPct                 float64
		profitTakePct, stopLossPct   float64
	)

	cmd := &cobra.Command{
		Use:   "credit-spread",
		Short: "Price a multi-day credit spread entry at a target DTE",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			a := app()

			engine := backtest.NewCreditSpreadEngine(a.Snapshots, a.Store, a.Store, a.Logger)
			result, skip, err := engine.Run(cmd.Context(), backtest.CreditSpreadParams{
				Underlying:      strings.ToUpper(underlying),
				Date:            date,
				SpreadType:      models.SpreadType(spreadType),
				TargetDTE:       dte,
				Width:           width,
				TargetDeltaAbs:  targetDelta,
				MinVolume:       minVolume,
				MaxBidAskPct:    maxBidAskPct,
				Contracts:       contracts,
				Multiplier:      a.Config.Options.ContractMultiplier,
				SlippagePct:     a.Config.Options.SlippagePct,
				StrikeTolerance: a.Config.Options.StrikeTolerance,
				ProfitTakePct:   profitTakePct,
				StopLossPct:     stopLossPct,
				CloseDTE:        dteClose,
			})
			if err != nil {
				return err
			}
			if skip != "" {
				if out.IsJSON() {
					return out.JSON(map[string]string{"skip": string(skip)})
				}
				out.Dim("no entry: %s", skip)
				return nil
			}
			if out.IsJSON() {
				return out.JSON(result)
			}

			out.Bold("credit spread  %s %s  exp %s (%d dte)  run %s",
				result.Underlying, string(result.SpreadType), result.Expiration, result.DTE, result.RunID)
			out.Printf("  strikes:      %.1f / %.1f\n", result.ShortStrike, result.LongStrike)
			out.Printf("  credit:       %s  (%.4f/share)\n", utils.FormatCurrency(result.TotalCredit), result.Credit)
			out.Printf("  max loss:     %s  (%.4f/share)\n", utils.FormatCurrency(result.TotalMaxLoss), result.MaxLoss)
			out.Printf("  breakeven:    %.2f\n", result.Breakeven)
			out.Printf("  risk/reward:  %.2f\n", result.RiskReward)
			out.Printf("  exit plan:    take %.0f%% of credit, stop %.0f%%, close at %d dte\n",
				result.ExitPlan.ProfitTakePct*100, result.ExitPlan.StopLossPct*100, result.ExitPlan.CloseDTE)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "as-of date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&underlying, "underlying", "SPY", "underlying ticker")
	cmd.Flags().StringVar(&spreadType, "spread-type", "bull_put", "spread type (bull_put or bear_call)")
	cmd.Flags().IntVar(&dte, "dte", 30, "target days to expiry")
	cmd.Flags().Float64Var(&width, "width", 5, "strike width in price units")
	cmd.Flags().Float64Var(&targetDelta, "delta", 0.20, "target absolute delta for the short leg")
	cmd.Flags().IntVar(&contracts, "contracts", 1, "number of spreads")
	cmd.Flags().Int64Var(&minVolume, "min-volume", 50, "minimum contract volume")
	cmd.Flags().Float64Var(&maxBidAskPct, "max-spread-pct", 0.25, "maximum bid-ask width as fraction of mid")
	cmd.Flags().Float64Var(&profitTakePct, "profit-take", 0.50, "profit target as fraction of credit")
	cmd.Flags().Float64Var(&stopLossPct, "stop-loss", 2.00, "stop loss as fraction of credit")
	cmd.Flags().IntVar(&dteClose, "dte-close", 5, "close the position this many days before expiry")
	cmd.MarkFlagRequired("date")
	return cmd
}

func newSMACmd(app func() *App) *cobra.Command {
	var (
		ticker, start, end string
		fast, slow         int
	)

	cmd := &cobra.Command{
		Use:   "sma",
		Short: "Backtest an SMA crossover strategy on daily bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			result, err := app().backtestEngine().RunSMA(backtest.SMAParams{
				Ticker: strings.ToUpper(ticker),
				Start:  start,
				End:    end,
				Fast:   fast,
				Slow:   slow,
			})
			if err != nil {
				return err
			}
			if out.IsJSON() {
				return out.JSON(result)
			}
			printBarResult(out, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker symbol")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&fast, "fast", 20, "fast SMA period")
	cmd.Flags().IntVar(&slow, "slow", 50, "slow SMA period")
	cmd.MarkFlagRequired("ticker")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func newBuyHoldCmd(app func() *App) *cobra.Command {
	var ticker, start, end string

	cmd := &cobra.Command{
		Use:   "buy-hold",
		Short: "Backtest buy-and-hold as a benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			result, err := app().backtestEngine().RunBuyHold(strings.ToUpper(ticker), start, end)
			if err != nil {
				return err
			}
			if out.IsJSON() {
				return out.JSON(result)
			}
			printBarResult(out, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker symbol")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("ticker")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func printBarResult(out *Output, r *backtest.Result) {
	out.Bold("%s  %s  %s..%s", r.Strategy, r.Ticker, r.Start, r.End)
	out.Printf("  total return: %s\n", utils.FormatPercent(r.TotalReturn))
	out.Printf("  cagr:         %s\n", utils.FormatPercent(r.CAGR))
	out.Printf("  max drawdown: %s\n", utils.FormatPercent(r.MaxDrawdown))
	out.Printf("  trades:       %d\n", r.NumTrades)
	out.Printf("  win rate:     %.0f%%\n", r.WinRate*100)
	out.Printf("  sharpe:       %.2f\n", r.SharpeLike)
}

func newPortfolioCmd(app func() *App) *cobra.Command {
	var (
		tickers            []string
		start, end         string
		fast, slow         int
		cash, riskPerTrade float64
		maxPositions       int
	)

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Backtest the SMA strategy across a portfolio of tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			a := app()
			result, err := a.backtestEngine().RunPortfolio(backtest.PortfolioParams{
				Tickers:      upperAll(tickers),
				Start:        start,
				End:          end,
				Fast:         fast,
				Slow:         slow,
				InitialCash:  cash,
				MaxPositions: maxPositions,
				RiskPerTrade: riskPerTrade,
				Commission:   a.Config.Paper.Commission,
				SlippageBps:  a.Config.Paper.SlippageBps,
			})
			if err != nil {
				return err
			}
			if out.IsJSON() {
				return out.JSON(result)
			}

			out.Bold("portfolio_sma  %s  %s..%s", strings.Join(result.Tickers, ","), result.Start, result.End)
			out.Printf("  final equity: %s\n", utils.FormatCurrency(result.FinalEquity))
			out.Printf("  total return: %s\n", utils.FormatPercent(result.TotalReturn))
			out.Printf("  cagr:         %s\n", utils.FormatPercent(result.CAGR))
			out.Printf("  max drawdown: %s\n", utils.FormatPercent(result.MaxDrawdown))
			out.Printf("  trades:       %d\n", result.NumTrades)
			out.Printf("  win rate:     %.0f%%\n", result.WinRate*100)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tickers, "tickers", nil, "comma-separated tickers")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&fast, "fast", 20, "fast SMA period")
	cmd.Flags().IntVar(&slow, "slow", 50, "slow SMA period")
	cmd.Flags().Float64Var(&cash, "cash", 100_000, "initial cash")
	cmd.Flags().Float64Var(&riskPerTrade, "risk-per-trade", 0.02, "equity fraction per position")
	cmd.Flags().IntVar(&maxPositions, "max-positions", 3, "maximum concurrent positions")
	cmd.MarkFlagRequired("tickers")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func newWalkForwardCmd(app func() *App) *cobra.Command {
	var (
		ticker, start, end  string
		trainDays, testDays int
		workers             int
	)

	cmd := &cobra.Command{
		Use:   "walk-forward",
		Short: "Walk-forward validate SMA parameters over rolling folds",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			result, err := app().backtestEngine().RunWalkForward(backtest.WalkForwardParams{
				Ticker:    strings.ToUpper(ticker),
				Start:     start,
				End:       end,
				TrainDays: trainDays,
				TestDays:  testDays,
				Workers:   workers,
			})
			if err != nil {
				return err
			}
			if out.IsJSON() {
				return out.JSON(result)
			}

			out.Bold("walk-forward  %s  %d folds", result.Ticker, result.NumFolds)
			out.Printf("  avg train sharpe: %.2f\n", result.AvgTrainSharpe)
			out.Printf("  avg test sharpe:  %.2f\n", result.AvgTestSharpe)
			out.Printf("  train/test ratio: %.2f\n", result.TrainTestRatio)

			rows := make([][]string, 0, len(result.Folds))
			for _, f := range result.Folds {
				rows = append(rows, []string{
					fmt.Sprintf("%d", f.FoldNum),
					f.TestStart + ".." + f.TestEnd,
					fmt.Sprintf("%d/%d", f.ChosenFast, f.ChosenSlow),
					fmt.Sprintf("%.2f", f.TrainSharpe),
					fmt.Sprintf("%.2f", f.TestSharpe),
				})
			}
			out.Println()
			out.Table([]string{"Fold", "Test window", "Fast/Slow", "Train", "Test"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker symbol")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&trainDays, "train-days", 252, "training window length in bars")
	cmd.Flags().IntVar(&testDays, "test-days", 63, "test window length in bars")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallel grid-search workers")
	cmd.MarkFlagRequired("ticker")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func upperAll(ss []string) []string {
	up := make([]string, len(ss))
	for i, s := range ss {
		up[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return up
}
