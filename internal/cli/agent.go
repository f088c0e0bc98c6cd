package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"deltastack/internal/models"
	"deltastack/internal/zerodte"
	"deltastack/pkg/utils"
)

func addAgentCommands(rootCmd *cobra.Command, app func() *App) {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Evaluate and replay 0DTE agent decisions",
	}

	agentCmd.AddCommand(newTickCmd(app))
	agentCmd.AddCommand(newReplayCmd(app))

	rootCmd.AddCommand(agentCmd)
}

func newTickCmd(app func() *App) *cobra.Command {
	var (
		date, tickTime string
		flags          strategyFlags
	)

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Evaluate a single tick against the nearest snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			a := app()

			if !utils.ValidDate(date) {
				return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
			}

			eval := zerodte.NewTickEvaluator(a.Snapshots, a.Logger)
			decision, err := eval.Evaluate(date, tickTime, flags.params(a))
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(decision)
			}
			printDecision(out, decision)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "trading date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&tickTime, "time", "", "tick time (HHMM)")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("time")
	flags.register(cmd)
	return cmd
}

func newReplayCmd(app func() *App) *cobra.Command {
	var (
		agent, date        string
		startTime, endTime string
		flags              strategyFlags
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an agent tick-by-tick over a historical day",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			a := app()

			if !utils.ValidDate(date) {
				return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
			}
			if m, err := utils.MinutesBetween(startTime, endTime); err != nil {
				return err
			} else if m < 0 {
				return fmt.Errorf("--to %s precedes --from %s", endTime, startTime)
			}

			replayer := zerodte.NewReplayer(a.Snapshots, a.Store, a.Logger)
			result, err := replayer.Run(cmd.Context(), agent, date, startTime, endTime, flags.params(a))
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(result)
			}

			out.Bold("replay %s  %s  %d ticks  id %s", result.Agent, result.Date, len(result.Ticks), result.ReplayID)
			for _, d := range result.Timeline {
				printDecision(out, &d)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "zero-dte", "agent name recorded with the replay")
	cmd.Flags().StringVar(&date, "date", "", "trading date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&startTime, "from", "1000", "first tick (HHMM)")
	cmd.Flags().StringVar(&endTime, "to", "1545", "last tick (HHMM)")
	cmd.MarkFlagRequired("date")
	flags.register(cmd)
	return cmd
}

func printDecision(out *Output, d *models.Decision) {
	if d.Decision == models.DecisionBuy {
		out.Success("%s  BUY  %s %.1f/%.1f  credit %.2f  max loss %.2f",
			d.TickTime, d.Underlying, d.ShortStrike, d.LongStrike, d.Credit, d.MaxLoss)
		if d.SnapshotTime != "" && d.SnapshotTime != d.TickTime {
			out.Dim("      using snapshot %s", d.SnapshotTime)
		}
		return
	}
	out.Dim("%s  skip  %s", d.TickTime, d.Reason)
}
