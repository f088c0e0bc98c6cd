package zerodte

import (
	"deltastack/internal/models"
	"deltastack/internal/spread"
)

// State is the lifecycle state of a single-spread book.
type State int

const (
	// StateFlat means no position is held.
	StateFlat State = iota
	// StateOpen means exactly one spread position is held.
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "OPEN"
	}
	return "FLAT"
}

// Lifecycle is the FLAT -> OPEN -> FLAT state machine for at most one
// open spread. Entry is attempted while FLAT, mark-to-market and exit
// checks run while OPEN. A close returns the machine to FLAT; the
// driver may then open a fresh position later in the day.
//
// Lifecycle is not safe for concurrent use; each run owns its own
// instance.
type Lifecycle struct {
	params *StrategyParams
	state  State
	pos    *models.OpenPosition

	marks   int     // snapshots observed since entry
	lastPnL float64 // most recent mark-to-market pnl, dollars
}

// NewLifecycle creates a FLAT lifecycle for the given strategy. Params
// must already be validated.
func NewLifecycle(params *StrategyParams) *Lifecycle {
	return &Lifecycle{params: params, state: StateFlat}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	return l.state
}

// Position returns the open position, or nil while FLAT.
func (l *Lifecycle) Position() *models.OpenPosition {
	return l.pos
}

// TryEnter attempts the FLAT -> OPEN transition at one snapshot. It
// returns an empty skip reason on success. snap may be nil when the
// store had no readable snapshot for this slot.
func (l *Lifecycle) TryEnter(snap *models.ChainSnapshot, timeOfDay string) models.SkipReason {
	if l.state != StateFlat {
		return models.SkipOutsideWindow
	}
	if timeOfDay < l.params.EntryStart || timeOfDay > l.params.EntryEnd {
		return models.SkipOutsideWindow
	}
	if snap == nil {
		return models.SkipNoSnapshot
	}

	plan, skip := planEntry(snap, l.params)
	if skip != "" {
		return skip
	}

	l.pos = &models.OpenPosition{
		EntryTime:   timeOfDay,
		ShortStrike: plan.Short.Strike,
		LongStrike:  plan.Long.Strike,
		Credit:      plan.Quote.Credit,
		MaxLoss:     plan.Quote.MaxLoss,
		Contracts:   l.params.Contracts,
		Multiplier:  l.params.Multiplier,
	}
	l.state = StateOpen
	l.marks = 0
	l.lastPnL = 0
	return ""
}

// Mark revalues the open position against the current snapshot and then
// tests the exit rules in strict priority order: profit_target,
// stop_loss, forced_exit, time_stop. It returns the recorded curve point
// and, when an exit fired, the closed trade (the machine is FLAT again).
//
// When either leg is no longer quotable in snap (or snap is nil), the
// spread is held at its entry credit for this mark, so pnl does not
// move.
func (l *Lifecycle) Mark(snap *models.ChainSnapshot, timeOfDay string) (models.PnLPoint, *models.ClosedTrade) {
	if l.state != StateOpen {
		return models.PnLPoint{Time: timeOfDay}, nil
	}

	l.marks++

	value := l.pos.Credit
	if snap != nil {
		if v, ok := spread.MarkSpread(snap, l.params.SpreadType.OptionType(),
			l.pos.ShortStrike, l.pos.LongStrike, l.params.tolerance()); ok {
			value = v
		}
	}

	pnl := (l.pos.Credit - value) * float64(l.pos.Multiplier) * float64(l.pos.Contracts)
	l.lastPnL = pnl
	point := models.PnLPoint{Time: timeOfDay, PnL: pnl}

	totalCredit := l.pos.TotalCredit()
	var reason models.ExitReason
	switch {
	case pnl >= totalCredit*l.params.ProfitTakePct:
		reason = models.ExitProfitTarget
	case pnl <= -totalCredit*l.params.StopLossPct:
		reason = models.ExitStopLoss
	case timeOfDay >= l.params.ForceExit:
		reason = models.ExitForced
	case l.marks*l.params.IntervalMinutes >= l.params.MaxPositionMinutes:
		reason = models.ExitTimeStop
	default:
		return point, nil
	}

	return point, l.close(timeOfDay, pnl, reason)
}

// CloseEndOfData force-closes a still-open position at the last
// available snapshot time. Realized pnl is the last computed mark; the
// position is not re-priced again.
func (l *Lifecycle) CloseEndOfData(timeOfDay string) *models.ClosedTrade {
	if l.state != StateOpen {
		return nil
	}
	return l.close(timeOfDay, l.lastPnL, models.ExitEndOfData)
}

func (l *Lifecycle) close(timeOfDay string, pnl float64, reason models.ExitReason) *models.ClosedTrade {
	trade := &models.ClosedTrade{
		EntryTime:   l.pos.EntryTime,
		ExitTime:    timeOfDay,
		ShortStrike: l.pos.ShortStrike,
		LongStrike:  l.pos.LongStrike,
		Credit:      l.pos.Credit,
		PnL:         pnl,
		ExitReason:  reason,
		MinutesHeld: l.marks * l.params.IntervalMinutes,
	}
	l.state = StateFlat
	l.pos = nil
	l.marks = 0
	l.lastPnL = 0
	return trade
}
