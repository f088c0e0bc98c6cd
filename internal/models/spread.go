package models

// SpreadLeg is one side of a vertical spread: a strike and the mid price
// it was selected at.
type SpreadLeg struct {
	Strike float64
	Mid    float64
}

// OpenPosition is the mutable state of a held spread position. Exactly one
// open position exists per lifecycle instance; the system tracks a single
// spread, not a multi-leg book.
type OpenPosition struct {
	EntryTime   string  // "HHMM"
	ShortStrike float64
	LongStrike  float64
	Credit      float64 // per-share, post-slippage
	MaxLoss     float64 // per-share
	Contracts   int
	Multiplier  int
}

// TotalCredit returns the dollar credit received at entry.
func (p *OpenPosition) TotalCredit() float64 {
	return p.Credit * float64(p.Multiplier) * float64(p.Contracts)
}

// ExitReason names why a position was closed.
type ExitReason string

const (
	ExitProfitTarget ExitReason = "profit_target"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitForced       ExitReason = "forced_exit"
	ExitTimeStop     ExitReason = "time_stop"
	ExitEndOfData    ExitReason = "end_of_data"
	// ExitOpen marks a recorded trade that is still open: multi-day
	// entries are logged before any exit snapshot exists.
	ExitOpen ExitReason = "open"
)

// SkipReason names why an entry was not taken at a snapshot. Skips are
// expected business outcomes, not errors.
type SkipReason string

const (
	SkipNoSnapshot    SkipReason = "no_snapshot_available"
	SkipOutsideWindow SkipReason = "outside_entry_window"
	SkipEmptyChain    SkipReason = "no_0dte_contracts"
	SkipNoLiquidity   SkipReason = "no_contracts_pass_filters"
	SkipNoLongLeg     SkipReason = "no_long_leg"
	SkipNoCredit      SkipReason = "no_credit"
)

// ClosedTrade is the immutable record of one completed spread position.
type ClosedTrade struct {
	EntryTime   string     `json:"entry_time"`
	ExitTime    string     `json:"exit_time"`
	ShortStrike float64    `json:"short_strike"`
	LongStrike  float64    `json:"long_strike"`
	Credit      float64    `json:"credit"`
	PnL         float64    `json:"pnl"`
	ExitReason  ExitReason `json:"exit_reason"`
	MinutesHeld int        `json:"minutes_held"`
}

// PnLPoint is one mark-to-market observation on the intraday PnL curve.
type PnLPoint struct {
	Time string  `json:"time"`
	PnL  float64 `json:"pnl"`
}

// Decision is the full outcome of evaluating one tick. Skip decisions
// carry a Reason; BUY decisions carry the selected spread.
type Decision struct {
	TickTime     string     `json:"tick_time"`
	SnapshotTime string     `json:"snapshot_time,omitempty"`
	Decision     string     `json:"decision"` // "BUY" or "skip"
	Signal       string     `json:"signal,omitempty"`
	Reason       SkipReason `json:"reason,omitempty"`
	Underlying   string     `json:"underlying,omitempty"`
	ShortStrike  float64    `json:"short_strike,omitempty"`
	LongStrike   float64    `json:"long_strike,omitempty"`
	Credit       float64    `json:"credit,omitempty"`
	MaxLoss      float64    `json:"max_loss,omitempty"`
	ShortMid     float64    `json:"short_mid,omitempty"`
	LongMid      float64    `json:"long_mid,omitempty"`
}

const (
	// DecisionBuy marks a tick that recommends opening a spread.
	DecisionBuy = "BUY"
	// DecisionSkip marks a tick with no actionable entry.
	DecisionSkip = "skip"
	// SignalOpenSpread is the signal attached to BUY decisions.
	SignalOpenSpread = "OPEN_SPREAD"
)

// IsBuy reports whether the decision recommends opening a spread.
func (d *Decision) IsBuy() bool {
	return d.Decision == DecisionBuy
}
