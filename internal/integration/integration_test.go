// Package integration exercises the full read path: partitioned CSV
// snapshots through the backtest engine into the SQLite store.
package integration

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"deltastack/internal/models"
	"deltastack/internal/snapshot"
	"deltastack/internal/store"
	"deltastack/internal/zerodte"
)

const (
	testDate       = "2025-06-20"
	snapshotHeader = "symbol,strike,type,expiration,bid,ask,last,volume,open_interest,delta,iv\n"
)

type contractRow struct {
	strike   float64
	bid, ask float64
	delta    float64
}

func writeSnapshot(t *testing.T, root, timeOfDay string, rows []contractRow) {
	t.Helper()
	dir := filepath.Join(root, "underlying=SPY", "date="+testDate, "time="+timeOfDay)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	csv := snapshotHeader
	for _, r := range rows {
		csv += fmt.Sprintf("SPY%v,%v,put,%s,%v,%v,%v,500,1000,%v,0.18\n",
			r.strike, r.strike, testDate, r.bid, r.ask, (r.bid+r.ask)/2, r.delta)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testParams() zerodte.StrategyParams {
	return zerodte.StrategyParams{
		Underlying:         "SPY",
		SpreadType:         models.BullPut,
		TargetDeltaAbs:     0.20,
		Width:              2,
		Contracts:          1,
		Multiplier:         100,
		MinVolume:          100,
		MaxBidAskPct:       0.50,
		EntryStart:         "1000",
		EntryEnd:           "1430",
		ForceExit:          "1545",
		ProfitTakePct:      0.50,
		StopLossPct:        1.00,
		IntervalMinutes:    5,
		MaxPositionMinutes: 45,
	}
}

func TestBacktestOverFileSnapshotsPersistsToStore(t *testing.T) {
	snapDir := t.TempDir()

	// Entry chain: the 580 put sits on the delta target, the 578 put is
	// the matching long leg two points below. Credit 1.50 - 0.85 = 0.65.
	writeSnapshot(t, snapDir, "1000", []contractRow{
		{strike: 580, bid: 1.45, ask: 1.55, delta: -0.20},
		{strike: 578, bid: 0.80, ask: 0.90, delta: -0.10},
	})
	// The spread decays to 0.30: pnl +35 clears the 32.50 profit target.
	writeSnapshot(t, snapDir, "1005", []contractRow{
		{strike: 580, bid: 0.40, ask: 0.50, delta: -0.12},
		{strike: 578, bid: 0.10, ask: 0.20, delta: -0.05},
	})

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	source := snapshot.NewFileSource(snapDir)
	bt := zerodte.NewBacktester(source, st, st, zerolog.Nop())

	result, err := bt.Run(context.Background(), testDate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %+v, want one", result.Trades)
	}
	trade := result.Trades[0]
	if trade.ExitReason != models.ExitProfitTarget {
		t.Fatalf("exit reason = %s, want profit_target", trade.ExitReason)
	}
	if math.Abs(trade.PnL-35) > 1e-9 {
		t.Fatalf("pnl = %v, want 35", trade.PnL)
	}
	if trade.ShortStrike != 580 || trade.LongStrike != 578 {
		t.Fatalf("strikes = %v/%v, want 580/578", trade.ShortStrike, trade.LongStrike)
	}

	runs, err := st.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	run := runs[0]
	if run.RunID != result.RunID {
		t.Fatalf("run id %s, want %s", run.RunID, result.RunID)
	}
	if math.Abs(run.TotalPnL-35) > 1e-9 || run.NumTrades != 1 || run.WinRate != 1 {
		t.Fatalf("persisted run = %+v, want pnl 35, 1 winning trade", run)
	}
}

func TestReplayOverFileSnapshotsRecordsDecisions(t *testing.T) {
	snapDir := t.TempDir()
	writeSnapshot(t, snapDir, "1000", []contractRow{
		{strike: 580, bid: 1.45, ask: 1.55, delta: -0.20},
		{strike: 578, bid: 0.80, ask: 0.90, delta: -0.10},
	})

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	replayer := zerodte.NewReplayer(snapshot.NewFileSource(snapDir), st, zerolog.Nop())
	result, err := replayer.Run(context.Background(), "it-agent", testDate, "1000", "1010", testParams())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Timeline) != 1 {
		t.Fatalf("timeline = %+v, want one thinned tick", result.Timeline)
	}
	if result.Timeline[0].Decision != models.DecisionBuy {
		t.Fatalf("decision = %s, want BUY", result.Timeline[0].Decision)
	}
}

func TestCorruptSnapshotDegradesToSkip(t *testing.T) {
	snapDir := t.TempDir()
	writeSnapshot(t, snapDir, "1000", []contractRow{
		{strike: 580, bid: 1.45, ask: 1.55, delta: -0.20},
		{strike: 578, bid: 0.80, ask: 0.90, delta: -0.10},
	})

	// Unparseable slot at 1005.
	dir := filepath.Join(snapDir, "underlying=SPY", "date="+testDate, "time=1005")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.csv"), []byte("strike,,,\ngarbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	bt := zerodte.NewBacktester(snapshot.NewFileSource(snapDir), nil, nil, zerolog.Nop())
	result, err := bt.Run(context.Background(), testDate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	// The position opens at 1000, the corrupt 1005 slot yields no mark,
	// and the run closes it at end of data.
	if len(result.Trades) != 1 {
		t.Fatalf("trades = %+v, want one", result.Trades)
	}
	if result.Trades[0].ExitReason != models.ExitEndOfData {
		t.Fatalf("exit reason = %s, want end_of_data", result.Trades[0].ExitReason)
	}
}
