// Package store provides data persistence implementations.
package store

import (
	"context"

	"deltastack/internal/models"
)

// TradeLogSink receives closed trades and mark-to-market points from a
// backtest run. Implementations must be append-only.
type TradeLogSink interface {
	AppendTrade(ctx context.Context, runID string, trade models.ClosedTrade) error
	AppendPnLPoint(ctx context.Context, runID string, point models.PnLPoint) error
}

// RunSink records backtest run metadata alongside its summary metrics.
type RunSink interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// DecisionSink receives per-tick agent decisions from replay sessions.
type DecisionSink interface {
	AppendDecision(ctx context.Context, replayID string, decision models.Decision) error
}

// PaperSink records simulated order fills and account snapshots.
type PaperSink interface {
	AppendFill(ctx context.Context, fill models.OrderResult) error
	SaveAccount(ctx context.Context, account models.Account) error
	LoadAccount(ctx context.Context) (*models.Account, error)
	LoadPositions(ctx context.Context) ([]models.Position, error)
	SavePosition(ctx context.Context, position models.Position) error
}

// RunRecord is a persisted summary of a single backtest run.
type RunRecord struct {
	RunID          string  `json:"run_id"`
	Strategy       string  `json:"strategy"`
	Underlying     string  `json:"underlying"`
	Date           string  `json:"date"`
	ParamsJSON     string  `json:"params_json"`
	TotalPnL       float64 `json:"total_pnl"`
	NumTrades      int     `json:"num_trades"`
	WinRate        float64 `json:"win_rate"`
	MAE            float64 `json:"mae"`
	MFE            float64 `json:"mfe"`
	AvgHoldMinutes float64 `json:"avg_hold_minutes"`
}
