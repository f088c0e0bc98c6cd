// Package config provides configuration management for the research platform.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Options OptionsConfig `mapstructure:"options"`
	ZeroDTE ZeroDTEConfig `mapstructure:"zero_dte"`
	Paper   PaperConfig   `mapstructure:"paper"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Market  MarketConfig  `mapstructure:"market"`
}

// DataConfig holds data directory layout configuration.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// BarsDir returns the daily-bar directory.
func (d DataConfig) BarsDir() string {
	return filepath.Join(d.Dir, "bars", "day")
}

// SnapshotsDir returns the end-of-day options snapshot directory.
func (d DataConfig) SnapshotsDir() string {
	return filepath.Join(d.Dir, "options", "snapshots")
}

// IntradaySnapshotsDir returns the intraday options snapshot directory.
func (d DataConfig) IntradaySnapshotsDir() string {
	return filepath.Join(d.Dir, "options", "snapshots_intraday")
}

// DBPath returns the SQLite database path.
func (d DataConfig) DBPath() string {
	return filepath.Join(d.Dir, "deltastack.db")
}

// OptionsConfig holds options trading defaults.
type OptionsConfig struct {
	SlippagePct        float64 `mapstructure:"slippage_pct"`        // fraction of mid lost to slippage
	ContractMultiplier int     `mapstructure:"contract_multiplier"` // shares per contract
	StrikeTolerance    float64 `mapstructure:"strike_tolerance"`    // strike matching tolerance, price units
	RiskFreeRate       float64 `mapstructure:"risk_free_rate"`      // annualised, for greeks
}

// ZeroDTEConfig holds hard caps for 0DTE agents. These cannot be bypassed
// by agent strategy parameters.
type ZeroDTEConfig struct {
	MaxTradesPerDay    int     `mapstructure:"max_trades_per_day"`
	MaxNotionalPerDay  float64 `mapstructure:"max_notional_per_day"`
	MaxDailyLoss       float64 `mapstructure:"max_daily_loss"`
	MaxPositionMinutes int     `mapstructure:"max_position_minutes"`
}

// PaperConfig holds paper broker defaults.
type PaperConfig struct {
	InitialCash float64 `mapstructure:"initial_cash"`
	Commission  float64 `mapstructure:"commission"`
	SlippageBps float64 `mapstructure:"slippage_bps"`
}

// RiskConfig holds portfolio risk engine limits, as fractions of equity.
type RiskConfig struct {
	MaxGrossExposurePct        float64 `mapstructure:"max_gross_exposure_pct"`
	MaxNetExposurePct          float64 `mapstructure:"max_net_exposure_pct"`
	MaxSingleTickerExposurePct float64 `mapstructure:"max_single_ticker_exposure_pct"`
}

// MarketConfig holds exchange session configuration.
type MarketConfig struct {
	Timezone string `mapstructure:"timezone"`
	Open     string `mapstructure:"open"`  // "HHMM"
	Close    string `mapstructure:"close"` // "HHMM"
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/deltastack"
	}
	return filepath.Join(home, ".config", "deltastack")
}

// Default returns the built-in configuration, used when no config file
// exists.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Data: DataConfig{Dir: filepath.Join(home, ".local", "share", "deltastack")},
		Options: OptionsConfig{
			SlippagePct:        0.01,
			ContractMultiplier: 100,
			StrikeTolerance:    1.0,
			RiskFreeRate:       0.05,
		},
		ZeroDTE: ZeroDTEConfig{
			MaxTradesPerDay:    5,
			MaxNotionalPerDay:  20_000,
			MaxDailyLoss:       1_500,
			MaxPositionMinutes: 45,
		},
		Paper: PaperConfig{
			InitialCash: 100_000,
			Commission:  1.0,
			SlippageBps: 2.0,
		},
		Risk: RiskConfig{
			MaxGrossExposurePct:        1.0,
			MaxNetExposurePct:          0.6,
			MaxSingleTickerExposurePct: 0.2,
		},
		Market: MarketConfig{
			Timezone: "America/New_York",
			Open:     "0930",
			Close:    "1600",
		},
	}
}

// Load loads configuration from the specified directory. If configDir is
// empty, the default config directory is used. A missing config file is
// not an error; built-in defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DELTASTACK_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("DELTASTACK_SLIPPAGE_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Options.SlippagePct = f
		}
	}
	if v := os.Getenv("DELTASTACK_PAPER_CASH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Paper.InitialCash = f
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Options.SlippagePct < 0 || c.Options.SlippagePct >= 1 {
		return fmt.Errorf("options.slippage_pct must be in [0, 1)")
	}
	if c.Options.ContractMultiplier <= 0 {
		return fmt.Errorf("options.contract_multiplier must be positive")
	}
	if c.Options.StrikeTolerance <= 0 {
		return fmt.Errorf("options.strike_tolerance must be positive")
	}
	if c.ZeroDTE.MaxPositionMinutes <= 0 {
		return fmt.Errorf("zero_dte.max_position_minutes must be positive")
	}
	if c.Paper.InitialCash <= 0 {
		return fmt.Errorf("paper.initial_cash must be positive")
	}
	if c.Risk.MaxGrossExposurePct <= 0 || c.Risk.MaxNetExposurePct <= 0 || c.Risk.MaxSingleTickerExposurePct <= 0 {
		return fmt.Errorf("risk exposure limits must be positive")
	}
	return nil
}
