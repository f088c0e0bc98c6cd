package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deltastack/internal/errors"
	"deltastack/internal/logging"
	"deltastack/internal/models"
	"deltastack/internal/snapshot"
	"deltastack/internal/spread"
	"deltastack/internal/store"
	"deltastack/pkg/utils"
)

// CreditSpreadParams configures a single multi-day credit spread entry
// study on a stored option-chain snapshot.
type CreditSpreadParams struct {
	Underlying      string            `json:"underlying"`
	Date            string            `json:"date"` // as-of date, "2006-01-02"
	SpreadType      models.SpreadType `json:"spread_type"`
	TargetDTE       int               `json:"target_dte"`
	Width           float64           `json:"width"`
	TargetDeltaAbs  float64           `json:"target_delta_abs"`
	MinVolume       int64             `json:"min_volume"`
	MaxBidAskPct    float64           `json:"max_bid_ask_pct"`
	Contracts       int               `json:"contracts"`
	Multiplier      int               `json:"multiplier"`
	SlippagePct     float64           `json:"slippage_pct"`
	StrikeTolerance float64           `json:"strike_tolerance"`

	ProfitTakePct float64 `json:"profit_take_pct"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	CloseDTE      int     `json:"close_dte"`
}

// Validate checks the parameter set before the chain is loaded. Invalid
// parameters abort the run; they are never converted into skips.
func (p *CreditSpreadParams) Validate() error {
	if p.Underlying == "" {
		return errors.NewValidationError("underlying", p.Underlying, "must not be empty")
	}
	if !utils.ValidDate(p.Date) {
		return errors.NewValidationError("date", p.Date, "must be a YYYY-MM-DD date")
	}
	if !p.SpreadType.Valid() {
		return errors.NewValidationError("spread_type", string(p.SpreadType), "must be bull_put or bear_call")
	}
	if p.TargetDTE <= 0 {
		return errors.NewValidationError("target_dte", p.TargetDTE, "must be positive")
	}
	if p.Width <= 0 {
		return errors.NewValidationError("width", p.Width, "must be positive")
	}
	if p.TargetDeltaAbs <= 0 || p.TargetDeltaAbs >= 1 {
		return errors.NewValidationError("target_delta_abs", p.TargetDeltaAbs, "must be in (0, 1)")
	}
	if p.Contracts <= 0 {
		return errors.NewValidationError("contracts", p.Contracts, "must be positive")
	}
	if p.Multiplier <= 0 {
		return errors.NewValidationError("multiplier", p.Multiplier, "must be positive")
	}
	if p.SlippagePct < 0 || p.SlippagePct >= 1 {
		return errors.NewValidationError("slippage_pct", p.SlippagePct, "must be in [0, 1)")
	}
	return nil
}

// ExitPlan is the rule set an open entry would be managed under. The
// study prices entry economics only; actual exits need later snapshots.
type ExitPlan struct {
	ProfitTakePct float64 `json:"profit_take_pct"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	CloseDTE      int     `json:"close_dte"`
}

// CreditSpreadResult describes the entry economics of one selected
// spread: credit, worst case, breakeven and the risk-reward ratio.
type CreditSpreadResult struct {
	RunID        string            `json:"run_id"`
	Underlying   string            `json:"underlying"`
	Date         string            `json:"date"`
	SnapshotTime string            `json:"snapshot_time"`
	SpreadType   models.SpreadType `json:"spread_type"`
	Expiration   string            `json:"expiration"`
	DTE          int               `json:"dte"`
	ShortStrike  float64           `json:"short_strike"`
	LongStrike   float64           `json:"long_strike"`
	ShortMid     float64           `json:"short_mid"`
	LongMid      float64           `json:"long_mid"`
	Credit       float64           `json:"credit_per_share"`
	MaxLoss      float64           `json:"max_loss_per_share"`
	TotalCredit  float64           `json:"total_credit"`
	TotalMaxLoss float64           `json:"total_max_loss"`
	RiskReward   float64           `json:"risk_reward_ratio"`
	Breakeven    float64           `json:"breakeven"`
	Contracts    int               `json:"contracts"`
	Multiplier   int               `json:"multiplier"`
	ExitPlan     ExitPlan          `json:"exit_plan"`
}

// CreditSpreadEngine prices spread entries at expirations out to a
// target DTE, using the latest stored snapshot of the as-of day as the
// end-of-day chain. Sinks may be nil to disable persistence.
type CreditSpreadEngine struct {
	source snapshot.Source
	trades store.TradeLogSink
	runs   store.RunSink
	logger zerolog.Logger
}

// NewCreditSpreadEngine creates a multi-day credit spread entry engine.
func NewCreditSpreadEngine(source snapshot.Source, trades store.TradeLogSink, runs store.RunSink, logger zerolog.Logger) *CreditSpreadEngine {
	return &CreditSpreadEngine{source: source, trades: trades, runs: runs, logger: logger}
}

// Run selects and prices one credit spread on the as-of day's chain. A
// chain that offers no viable spread returns a skip reason, not an
// error; the run persists only on success, with the trade recorded as
// still open.
func (e *CreditSpreadEngine) Run(ctx context.Context, params CreditSpreadParams) (*CreditSpreadResult, models.SkipReason, error) {
	if err := params.Validate(); err != nil {
		return nil, "", err
	}

	runID := uuid.NewString()
	log := logging.WithRun(logging.WithUnderlying(e.logger, params.Underlying), runID)

	times, err := e.source.ListTimes(params.Underlying, params.Date)
	if err != nil {
		return nil, "", errors.Wrapf(err, "listing snapshot times for %s %s", params.Underlying, params.Date)
	}
	if len(times) == 0 {
		return nil, "", errors.NewDataError("snapshot", fmt.Sprintf("%s/%s", params.Underlying, params.Date),
			"no snapshots for date", errors.ErrSnapshotNotFound)
	}

	// The day's last snapshot stands in for the end-of-day chain.
	snapTime := times[len(times)-1]
	snap, err := e.source.Get(params.Underlying, params.Date, snapTime)
	if err != nil {
		return nil, "", errors.Wrapf(err, "loading snapshot %s %s %s", params.Underlying, params.Date, snapTime)
	}

	optType := params.SpreadType.OptionType()
	sel, skip := spread.Select(snap, spread.SelectParams{
		OptionType:     optType,
		Expiry:         spread.NearestDTE(params.Date, params.TargetDTE),
		TargetDeltaAbs: params.TargetDeltaAbs,
		MinVolume:      params.MinVolume,
		MaxBidAskPct:   params.MaxBidAskPct,
	})
	if skip != "" {
		return nil, skip, nil
	}

	long, ok := spread.LongLeg(sel.Pool, sel.Short.Contract.Strike, params.Width, optType, params.StrikeTolerance)
	if !ok {
		// No strike within tolerance of the target width: fall back to
		// the nearest protective strike beyond the short leg.
		long, ok = nearestProtective(sel.Pool, sel.Short.Contract.Strike, params.Width, optType)
	}
	if !ok {
		return nil, models.SkipNoLongLeg, nil
	}

	quote := spread.Price(sel.Short.Leg(), long, params.SlippagePct)
	if quote.Credit <= 0 {
		return nil, models.SkipNoCredit, nil
	}

	expiration := sel.Short.Contract.Expiration
	size := float64(params.Multiplier) * float64(params.Contracts)
	breakeven := sel.Short.Contract.Strike - quote.Credit
	if optType == models.OptionCall {
		breakeven = sel.Short.Contract.Strike + quote.Credit
	}

	result := &CreditSpreadResult{
		RunID:        runID,
		Underlying:   params.Underlying,
		Date:         params.Date,
		SnapshotTime: snapTime,
		SpreadType:   params.SpreadType,
		Expiration:   expiration,
		DTE:          daysToExpiry(params.Date, expiration),
		ShortStrike:  sel.Short.Contract.Strike,
		LongStrike:   long.Strike,
		ShortMid:     utils.Round(sel.Short.Mid, 4),
		LongMid:      utils.Round(long.Mid, 4),
		Credit:       utils.Round(quote.Credit, 4),
		MaxLoss:      utils.Round(quote.MaxLoss, 4),
		TotalCredit:  utils.Round(quote.Credit*size, 2),
		TotalMaxLoss: utils.Round(quote.MaxLoss*size, 2),
		RiskReward:   utils.Round(quote.MaxLoss/quote.Credit, 2),
		Breakeven:    utils.Round(breakeven, 2),
		Contracts:    params.Contracts,
		Multiplier:   params.Multiplier,
		ExitPlan: ExitPlan{
			ProfitTakePct: params.ProfitTakePct,
			StopLossPct:   params.StopLossPct,
			CloseDTE:      params.CloseDTE,
		},
	}

	e.persist(ctx, log, params, result)

	log.Info().
		Str("expiration", expiration).
		Float64("short_strike", result.ShortStrike).
		Float64("long_strike", result.LongStrike).
		Float64("total_credit", result.TotalCredit).
		Float64("total_max_loss", result.TotalMaxLoss).
		Msg("credit spread priced")
	return result, "", nil
}

// nearestProtective picks the closest strike strictly beyond the short
// leg on the protective side.
func nearestProtective(pool []spread.Candidate, shortStrike, width float64, optType models.OptionType) (models.SpreadLeg, bool) {
	target := shortStrike - width
	if optType == models.OptionCall {
		target = shortStrike + width
	}
	best := -1
	bestDist := math.Inf(1)
	for i, c := range pool {
		strike := c.Contract.Strike
		if optType == models.OptionPut && strike >= shortStrike {
			continue
		}
		if optType == models.OptionCall && strike <= shortStrike {
			continue
		}
		if d := math.Abs(strike - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 {
		return models.SpreadLeg{}, false
	}
	return pool[best].Leg(), true
}

func daysToExpiry(asOf, expiration string) int {
	a, errA := time.Parse("2006-01-02", asOf)
	b, errB := time.Parse("2006-01-02", expiration)
	if errA != nil || errB != nil {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}

func (e *CreditSpreadEngine) persist(ctx context.Context, log zerolog.Logger, params CreditSpreadParams, r *CreditSpreadResult) {
	if e.runs != nil {
		paramsJSON, _ := json.Marshal(params)
		err := e.runs.RecordRun(ctx, store.RunRecord{
			RunID:      r.RunID,
			Strategy:   "credit_spread_" + string(params.SpreadType),
			Underlying: params.Underlying,
			Date:       params.Date,
			ParamsJSON: string(paramsJSON),
			NumTrades:  1,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to record run")
		}
	}
	if e.trades != nil {
		err := e.trades.AppendTrade(ctx, r.RunID, models.ClosedTrade{
			EntryTime:   r.SnapshotTime,
			ShortStrike: r.ShortStrike,
			LongStrike:  r.LongStrike,
			Credit:      r.Credit,
			ExitReason:  models.ExitOpen,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to persist trade")
		}
	}
}
