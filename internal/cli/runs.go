package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func addRunsCommands(rootCmd *cobra.Command, app func() *App) {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded backtest runs",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			runs, err := app().Store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(runs)
			}
			if len(runs) == 0 {
				out.Println("no runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					shortID(r.RunID),
					r.Date,
					r.Underlying,
					r.Strategy,
					out.PnL(r.TotalPnL),
					fmt.Sprintf("%d", r.NumTrades),
					fmt.Sprintf("%.0f%%", r.WinRate*100),
				})
			}
			out.Table([]string{"Run", "Date", "Underlying", "Strategy", "PnL", "Trades", "Win"}, rows)
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	runsCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runsCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
