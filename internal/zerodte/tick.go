package zerodte

import (
	"github.com/rs/zerolog"

	"deltastack/internal/logging"
	"deltastack/internal/models"
	"deltastack/internal/snapshot"
)

// TickEvaluator produces a fresh plan-only recommendation for a single
// tick. It holds no state between calls: every tick independently
// re-runs selection and pricing from scratch, so the output is a
// recommendation to enter now, not the tracking of an already-open
// position.
type TickEvaluator struct {
	source snapshot.Source
	logger zerolog.Logger
}

// NewTickEvaluator creates a stateless per-tick evaluator.
func NewTickEvaluator(source snapshot.Source, logger zerolog.Logger) *TickEvaluator {
	return &TickEvaluator{source: source, logger: logger}
}

// Evaluate decides whether a spread entry is recommended at tickTime.
// When no snapshot exists exactly at the tick, the latest snapshot at or
// before it is used; with none at or before, the tick is skipped with
// no_snapshot_available. Skips are ordinary decisions, never errors.
func (e *TickEvaluator) Evaluate(date, tickTime string, params StrategyParams) (*models.Decision, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	d := &models.Decision{
		TickTime:   tickTime,
		Decision:   models.DecisionSkip,
		Underlying: params.Underlying,
	}

	if tickTime < params.EntryStart || tickTime > params.EntryEnd {
		d.Reason = models.SkipOutsideWindow
		e.logDecision(d)
		return d, nil
	}

	snapTime, ok := e.nearestAtOrBefore(params.Underlying, date, tickTime)
	if !ok {
		d.Reason = models.SkipNoSnapshot
		e.logDecision(d)
		return d, nil
	}
	d.SnapshotTime = snapTime

	snap, err := e.source.Get(params.Underlying, date, snapTime)
	if err != nil {
		// Unreadable snapshot degrades to not-found for this slot.
		d.Reason = models.SkipNoSnapshot
		e.logDecision(d)
		return d, nil
	}

	plan, skip := planEntry(snap, &params)
	if skip != "" {
		d.Reason = skip
		e.logDecision(d)
		return d, nil
	}

	d.Decision = models.DecisionBuy
	d.Signal = models.SignalOpenSpread
	d.ShortStrike = plan.Short.Strike
	d.LongStrike = plan.Long.Strike
	d.Credit = plan.Quote.Credit
	d.MaxLoss = plan.Quote.MaxLoss
	d.ShortMid = plan.Short.Mid
	d.LongMid = plan.Long.Mid
	e.logDecision(d)
	return d, nil
}

// nearestAtOrBefore returns the latest available snapshot time label at
// or before tickTime.
func (e *TickEvaluator) nearestAtOrBefore(underlying, date, tickTime string) (string, bool) {
	times, err := e.source.ListTimes(underlying, date)
	if err != nil || len(times) == 0 {
		return "", false
	}
	for i := len(times) - 1; i >= 0; i-- {
		if times[i] <= tickTime {
			return times[i], true
		}
	}
	return "", false
}

func (e *TickEvaluator) logDecision(d *models.Decision) {
	logging.LogDecision(e.logger, d.TickTime, d.Decision, d.Signal, string(d.Reason))
}
