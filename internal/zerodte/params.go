// Package zerodte implements the intraday same-day-expiry credit spread
// engine: a snapshot-driven position lifecycle, an offline backtest
// driver, a stateless per-tick evaluator and a replay driver.
package zerodte

import (
	"deltastack/internal/errors"
	"deltastack/internal/models"
	"deltastack/internal/spread"
	"deltastack/pkg/utils"
)

// StrategyParams configures one same-day credit spread strategy. The
// same parameter set drives backtests, single-tick evaluation and
// replays.
type StrategyParams struct {
	Underlying     string            `json:"underlying"`
	SpreadType     models.SpreadType `json:"spread_type"`
	TargetDeltaAbs float64           `json:"target_delta_abs"`
	Width          float64           `json:"width"`
	Contracts      int               `json:"contracts"`
	Multiplier     int               `json:"multiplier"`

	MinVolume    int64   `json:"min_volume"`
	MaxBidAskPct float64 `json:"max_bid_ask_pct"`

	EntryStart string `json:"entry_start"` // "HHMM", inclusive
	EntryEnd   string `json:"entry_end"`   // "HHMM", inclusive
	ForceExit  string `json:"force_exit"`  // "HHMM"

	ProfitTakePct float64 `json:"profit_take_pct"` // fraction of total credit
	StopLossPct   float64 `json:"stop_loss_pct"`   // fraction of total credit

	SlippagePct     float64 `json:"slippage_pct"`
	StrikeTolerance float64 `json:"strike_tolerance"`

	IntervalMinutes    int `json:"interval_minutes"`
	MaxPositionMinutes int `json:"max_position_minutes"`
}

// Validate checks the parameter set before any snapshot iteration
// begins. Invalid parameters abort a run; they are never converted into
// skips.
func (p *StrategyParams) Validate() error {
	if p.Underlying == "" {
		return errors.NewValidationError("underlying", p.Underlying, "must not be empty")
	}
	if !p.SpreadType.Valid() {
		return errors.NewValidationError("spread_type", string(p.SpreadType), "must be bull_put or bear_call")
	}
	if p.TargetDeltaAbs <= 0 || p.TargetDeltaAbs >= 1 {
		return errors.NewValidationError("target_delta_abs", p.TargetDeltaAbs, "must be in (0, 1)")
	}
	if p.Width <= 0 {
		return errors.NewValidationError("width", p.Width, "must be positive")
	}
	if p.Contracts <= 0 {
		return errors.NewValidationError("contracts", p.Contracts, "must be positive")
	}
	if p.Multiplier <= 0 {
		return errors.NewValidationError("multiplier", p.Multiplier, "must be positive")
	}
	if !utils.ValidClock(p.EntryStart) {
		return errors.NewValidationError("entry_start", p.EntryStart, "must be a 4-digit HHMM time")
	}
	if !utils.ValidClock(p.EntryEnd) {
		return errors.NewValidationError("entry_end", p.EntryEnd, "must be a 4-digit HHMM time")
	}
	if !utils.ValidClock(p.ForceExit) {
		return errors.NewValidationError("force_exit", p.ForceExit, "must be a 4-digit HHMM time")
	}
	if p.EntryStart > p.EntryEnd {
		return errors.NewValidationError("entry_end", p.EntryEnd, "must not precede entry_start")
	}
	if p.ProfitTakePct <= 0 {
		return errors.NewValidationError("profit_take_pct", p.ProfitTakePct, "must be positive")
	}
	if p.StopLossPct <= 0 {
		return errors.NewValidationError("stop_loss_pct", p.StopLossPct, "must be positive")
	}
	if p.SlippagePct < 0 || p.SlippagePct >= 1 {
		return errors.NewValidationError("slippage_pct", p.SlippagePct, "must be in [0, 1)")
	}
	if p.IntervalMinutes <= 0 {
		return errors.NewValidationError("interval_minutes", p.IntervalMinutes, "must be positive")
	}
	if p.MaxPositionMinutes <= 0 {
		return errors.NewValidationError("max_position_minutes", p.MaxPositionMinutes, "must be positive")
	}
	return nil
}

func (p *StrategyParams) tolerance() float64 {
	if p.StrikeTolerance > 0 {
		return p.StrikeTolerance
	}
	return spread.DefaultStrikeTolerance
}

// entryPlan is a fully-priced candidate entry at one snapshot.
type entryPlan struct {
	Short models.SpreadLeg
	Long  models.SpreadLeg
	Quote spread.Quote
}

// planEntry runs selection and pricing against one snapshot and returns
// either a plan or the skip reason that blocked it. An empty reason
// means the plan is viable (credit > 0 included).
func planEntry(snap *models.ChainSnapshot, p *StrategyParams) (*entryPlan, models.SkipReason) {
	optType := p.SpreadType.OptionType()
	sel, skip := spread.Select(snap, spread.SelectParams{
		OptionType:     optType,
		Expiry:         spread.SameDayExpiry(snap.Date),
		TargetDeltaAbs: p.TargetDeltaAbs,
		MinVolume:      p.MinVolume,
		MaxBidAskPct:   p.MaxBidAskPct,
	})
	if skip != "" {
		return nil, skip
	}

	long, ok := spread.LongLeg(sel.Pool, sel.Short.Contract.Strike, p.Width, optType, p.tolerance())
	if !ok {
		return nil, models.SkipNoLongLeg
	}

	quote := spread.Price(sel.Short.Leg(), long, p.SlippagePct)
	if quote.Credit <= 0 {
		return nil, models.SkipNoCredit
	}

	return &entryPlan{Short: sel.Short.Leg(), Long: long, Quote: quote}, ""
}
