package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"deltastack/internal/backtest"
	"deltastack/internal/bars"
	"deltastack/internal/broker"
	"deltastack/internal/config"
	"deltastack/internal/logging"
	"deltastack/internal/snapshot"
	"deltastack/internal/store"
)

// Version is set at build time.
var Version = "dev"

// App holds application-wide dependencies shared by all commands.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Snapshots snapshot.Source
	Bars      *bars.Store
	Store     *store.SQLiteStore
	Broker    broker.Broker
}

// NewApp builds the dependency graph from configuration.
func NewApp(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	st, err := store.NewSQLiteStore(cfg.Data.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	barStore := bars.NewStore(cfg.Data.BarsDir())

	return &App{
		Config:    cfg,
		Logger:    logger,
		Snapshots: snapshot.NewFileSource(cfg.Data.IntradaySnapshotsDir()),
		Bars:      barStore,
		Store:     st,
		Broker:    broker.NewPaperBroker(cfg.Paper, cfg.Market, barStore, st, logger),
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// backtestEngine builds the daily-bar backtest engine.
func (a *App) backtestEngine() *backtest.Engine {
	return backtest.NewEngine(a.Bars, a.Logger)
}

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	var (
		configDir string
		debug     bool
		app       *App
	)

	rootCmd := &cobra.Command{
		Use:   "deltastack",
		Short: "Paper-trading research platform for 0DTE credit spreads",
		Long: `deltastack is a snapshot-driven research platform for zero-days-to-expiry
option credit spreads: intraday backtests, tick-by-tick agent replays,
daily-bar strategy backtests, and a persistent paper broker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				logging.SetDebugLevel()
			}

			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}

			app, err = NewApp(cfg, logging.NewLogger())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app != nil {
				return app.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.config/deltastack)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	appRef := func() *App { return app }

	addBacktestCommands(rootCmd, appRef)
	addAgentCommands(rootCmd, appRef)
	addPaperCommands(rootCmd, appRef)
	addGreeksCommands(rootCmd, appRef)
	addRunsCommands(rootCmd, appRef)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(appRef, &configDir))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := NewOutput(cmd)
			if out.IsJSON() {
				out.JSON(map[string]string{"version": Version})
				return
			}
			out.Printf("deltastack %s\n", Version)
		},
	}
}

func newConfigCmd(app func() *App, configDir *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			cfg := app().Config
			if out.IsJSON() {
				return out.JSON(cfg)
			}
			out.Bold("Data")
			out.Printf("  dir:       %s\n", cfg.Data.Dir)
			out.Printf("  bars:      %s\n", cfg.Data.BarsDir())
			out.Printf("  snapshots: %s\n", cfg.Data.IntradaySnapshotsDir())
			out.Printf("  database:  %s\n", cfg.Data.DBPath())
			out.Bold("Options")
			out.Printf("  slippage_pct:     %.4f\n", cfg.Options.SlippagePct)
			out.Printf("  multiplier:       %d\n", cfg.Options.ContractMultiplier)
			out.Printf("  strike_tolerance: %.2f\n", cfg.Options.StrikeTolerance)
			out.Bold("Paper")
			out.Printf("  initial_cash: %.2f\n", cfg.Paper.InitialCash)
			out.Printf("  commission:   %.2f\n", cfg.Paper.Commission)
			out.Printf("  slippage_bps: %.1f\n", cfg.Paper.SlippageBps)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			out := NewOutput(cmd)
			dir := *configDir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			out.Println(filepath.Join(dir, "config.toml"))
		},
	})

	return configCmd
}
