package zerodte

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"deltastack/internal/errors"
	"deltastack/internal/logging"
	"deltastack/internal/models"
	"deltastack/internal/snapshot"
	"deltastack/internal/store"
)

// SkipRecord is one skipped entry attempt with its reason.
type SkipRecord struct {
	Time   string            `json:"time"`
	Reason models.SkipReason `json:"reason"`
}

// Metrics are the derived summary statistics of a backtest run.
type Metrics struct {
	TotalPnL       float64 `json:"total_pnl"`
	NumTrades      int     `json:"num_trades"`
	WinRate        float64 `json:"win_rate"`
	MAE            float64 `json:"mae"`
	MFE            float64 `json:"mfe"`
	AvgHoldMinutes float64 `json:"avg_hold_minutes"`
}

// Result is the complete outcome of one backtest run.
type Result struct {
	RunID      string               `json:"run_id"`
	Underlying string               `json:"underlying"`
	Date       string               `json:"date"`
	Trades     []models.ClosedTrade `json:"trades"`
	PnLCurve   []models.PnLPoint    `json:"pnl_curve"`
	Skips      []SkipRecord         `json:"skips,omitempty"`
	Metrics    Metrics              `json:"metrics"`
}

// Backtester replays one day of intraday option-chain snapshots through
// a position lifecycle. Sinks are optional; persistence failures are
// logged and never abort a run.
type Backtester struct {
	source   snapshot.Source
	trades   store.TradeLogSink
	runs     store.RunSink
	logger   zerolog.Logger
	strategy string
}

// NewBacktester creates a backtest driver. trades and runs may be nil to
// disable persistence.
func NewBacktester(source snapshot.Source, trades store.TradeLogSink, runs store.RunSink, logger zerolog.Logger) *Backtester {
	return &Backtester{
		source:   source,
		trades:   trades,
		runs:     runs,
		logger:   logger,
		strategy: "zero_dte_credit_spread",
	}
}

// Run executes a full backtest of one underlying on one date. Snapshot
// times are visited in ascending order within [entry_start, force_exit];
// a time with no readable snapshot is skipped, never fatal. Entry and
// exit are never evaluated at the same snapshot: the snapshot that opens
// a position is not also allowed to close it.
func (b *Backtester) Run(ctx context.Context, date string, params StrategyParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logging.WithRun(logging.WithUnderlying(b.logger, params.Underlying), runID)

	times, err := b.source.ListTimes(params.Underlying, date)
	if err != nil {
		return nil, errors.Wrapf(err, "listing snapshot times for %s %s", params.Underlying, date)
	}
	if len(times) == 0 {
		return nil, errors.NewDataError("snapshot", fmt.Sprintf("%s/%s", params.Underlying, date),
			"no intraday snapshots for date", errors.ErrSnapshotNotFound)
	}

	var window []string
	for _, t := range times {
		if t >= params.EntryStart && t <= params.ForceExit {
			window = append(window, t)
		}
	}

	result := &Result{RunID: runID, Underlying: params.Underlying, Date: date}
	lc := NewLifecycle(&params)

	for _, t := range window {
		snap, err := b.source.Get(params.Underlying, date, t)
		if err != nil {
			// Data errors degrade to a missing snapshot for this slot.
			snap = nil
		}

		if lc.State() == StateFlat {
			if skip := lc.TryEnter(snap, t); skip != "" {
				result.Skips = append(result.Skips, SkipRecord{Time: t, Reason: skip})
				log.Debug().Str("time", t).Str("reason", string(skip)).Msg("entry skipped")
			} else {
				pos := lc.Position()
				log.Info().
					Str("time", t).
					Float64("short_strike", pos.ShortStrike).
					Float64("long_strike", pos.LongStrike).
					Float64("credit", pos.Credit).
					Msg("position opened")
			}
			continue
		}

		point, closed := lc.Mark(snap, t)
		result.PnLCurve = append(result.PnLCurve, point)
		b.persistPoint(ctx, log, runID, point)
		if closed != nil {
			result.Trades = append(result.Trades, *closed)
			b.persistTrade(ctx, log, runID, *closed)
			logging.LogTrade(log, runID, closed.ShortStrike, closed.LongStrike, closed.PnL, string(closed.ExitReason))
		}
	}

	if lc.State() == StateOpen {
		trade := lc.CloseEndOfData(window[len(window)-1])
		result.Trades = append(result.Trades, *trade)
		b.persistTrade(ctx, log, runID, *trade)
		logging.LogTrade(log, runID, trade.ShortStrike, trade.LongStrike, trade.PnL, string(trade.ExitReason))
	}

	result.Metrics = computeMetrics(result.Trades, result.PnLCurve)
	b.persistRun(ctx, log, date, params, result)

	log.Info().
		Int("num_trades", result.Metrics.NumTrades).
		Float64("total_pnl", result.Metrics.TotalPnL).
		Float64("win_rate", result.Metrics.WinRate).
		Msg("backtest complete")

	return result, nil
}

func computeMetrics(trades []models.ClosedTrade, curve []models.PnLPoint) Metrics {
	var m Metrics
	m.NumTrades = len(trades)

	wins := 0
	holdSum := 0
	for _, t := range trades {
		m.TotalPnL += t.PnL
		holdSum += t.MinutesHeld
		if t.PnL > 0 {
			wins++
		}
	}
	if m.NumTrades > 0 {
		m.WinRate = float64(wins) / float64(m.NumTrades)
		m.AvgHoldMinutes = float64(holdSum) / float64(m.NumTrades)
	}

	// MAE/MFE are taken over the full run's curve, spanning every
	// position held during the day.
	if len(curve) > 0 {
		pnls := make([]float64, len(curve))
		for i, p := range curve {
			pnls[i] = p.PnL
		}
		m.MAE, _ = stats.Min(pnls)
		m.MFE, _ = stats.Max(pnls)
	}
	return m
}

func (b *Backtester) persistPoint(ctx context.Context, log zerolog.Logger, runID string, point models.PnLPoint) {
	if b.trades == nil {
		return
	}
	if err := b.trades.AppendPnLPoint(ctx, runID, point); err != nil {
		log.Warn().Err(err).Str("time", point.Time).Msg("failed to persist pnl point")
	}
}

func (b *Backtester) persistTrade(ctx context.Context, log zerolog.Logger, runID string, trade models.ClosedTrade) {
	if b.trades == nil {
		return
	}
	if err := b.trades.AppendTrade(ctx, runID, trade); err != nil {
		log.Warn().Err(err).Str("exit_time", trade.ExitTime).Msg("failed to persist trade")
	}
}

func (b *Backtester) persistRun(ctx context.Context, log zerolog.Logger, date string, params StrategyParams, result *Result) {
	if b.runs == nil {
		return
	}
	paramsJSON, _ := json.Marshal(params)
	err := b.runs.RecordRun(ctx, store.RunRecord{
		RunID:          result.RunID,
		Strategy:       b.strategy,
		Underlying:     params.Underlying,
		Date:           date,
		ParamsJSON:     string(paramsJSON),
		TotalPnL:       result.Metrics.TotalPnL,
		NumTrades:      result.Metrics.NumTrades,
		WinRate:        result.Metrics.WinRate,
		MAE:            result.Metrics.MAE,
		MFE:            result.Metrics.MFE,
		AvgHoldMinutes: result.Metrics.AvgHoldMinutes,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to record run")
	}
}
