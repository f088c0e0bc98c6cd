package zerodte

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deltastack/internal/errors"
	"deltastack/internal/logging"
	"deltastack/internal/models"
	"deltastack/internal/snapshot"
	"deltastack/internal/store"
	"deltastack/pkg/utils"
)

// ReplayResult is the ordered decision timeline of one replay session.
type ReplayResult struct {
	ReplayID string            `json:"replay_id"`
	Agent    string            `json:"agent"`
	Date     string            `json:"date"`
	Ticks    []string          `json:"ticks"`
	Timeline []models.Decision `json:"timeline"`
}

// Replayer steps a tick evaluator over historical snapshot times,
// thinning them to a minimum spacing. It is a pure read path over the
// snapshot store; broker state is never touched. Each decision is
// persisted for later inspection when a sink is configured.
type Replayer struct {
	evaluator *TickEvaluator
	decisions store.DecisionSink
	logger    zerolog.Logger
}

// NewReplayer creates a replay driver. decisions may be nil to disable
// persistence.
func NewReplayer(source snapshot.Source, decisions store.DecisionSink, logger zerolog.Logger) *Replayer {
	return &Replayer{
		evaluator: NewTickEvaluator(source, logger),
		decisions: decisions,
		logger:    logger,
	}
}

// Run replays agent's strategy over [startTime, endTime] on date,
// evaluating one tick per kept snapshot time.
func (r *Replayer) Run(ctx context.Context, agent, date, startTime, endTime string, params StrategyParams) (*ReplayResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !utils.ValidClock(startTime) {
		return nil, errors.NewValidationError("start_time", startTime, "must be a 4-digit HHMM time")
	}
	if !utils.ValidClock(endTime) {
		return nil, errors.NewValidationError("end_time", endTime, "must be a 4-digit HHMM time")
	}
	if startTime > endTime {
		return nil, errors.NewValidationError("end_time", endTime, "must not precede start_time")
	}

	replayID := uuid.NewString()
	log := logging.WithAgent(logging.WithRun(r.logger, replayID), agent)

	all, err := r.evaluator.source.ListTimes(params.Underlying, date)
	if err != nil {
		return nil, errors.Wrapf(err, "listing snapshot times for %s %s", params.Underlying, date)
	}

	var inRange []string
	for _, t := range all {
		if t >= startTime && t <= endTime {
			inRange = append(inRange, t)
		}
	}
	ticks := ThinTimes(inRange, params.IntervalMinutes)

	result := &ReplayResult{ReplayID: replayID, Agent: agent, Date: date, Ticks: ticks}
	for _, t := range ticks {
		d, err := r.evaluator.Evaluate(date, t, params)
		if err != nil {
			return nil, err
		}
		result.Timeline = append(result.Timeline, *d)
		if r.decisions != nil {
			if err := r.decisions.AppendDecision(ctx, replayID, *d); err != nil {
				log.Warn().Err(err).Str("tick", t).Msg("failed to persist decision")
			}
		}
	}

	buys := 0
	for i := range result.Timeline {
		if result.Timeline[i].IsBuy() {
			buys++
		}
	}
	log.Info().Int("ticks", len(ticks)).Int("buy_signals", buys).Msg("replay complete")

	return result, nil
}

// ThinTimes greedily thins an ascending list of "HHMM" labels so kept
// entries are at least intervalMinutes apart. The first label is always
// kept. Labels that fail to parse are dropped.
func ThinTimes(times []string, intervalMinutes int) []string {
	var kept []string
	lastKept := -1
	for _, t := range times {
		mins, err := utils.ClockMinutes(t)
		if err != nil {
			continue
		}
		if lastKept < 0 || mins-lastKept >= intervalMinutes {
			kept = append(kept, t)
			lastKept = mins
		}
	}
	return kept
}
