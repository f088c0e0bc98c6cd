package backtest

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"deltastack/internal/bars"
	"deltastack/internal/errors"
)

// vShape falls 15 to 10, rises back to 15 and falls to 10 again, one bar
// per weekday-agnostic calendar day from 2025-01-01. With fast=2 slow=3
// it produces exactly one round trip: entry at 12, exit at 13.
var vShape = []float64{15, 14, 13, 12, 11, 10, 11, 12, 13, 14, 15, 14, 13, 12, 11, 10}

func writeCloses(t *testing.T, dir, ticker string, closes []float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,open,high,low,close,volume\n")
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,1000\n",
			day.AddDate(0, 0, i).Format("2006-01-02"), c, c, c, c)
	}
	if err := os.WriteFile(filepath.Join(dir, ticker+".csv"), []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testEngine(t *testing.T, closes []float64) *Engine {
	t.Helper()
	dir := t.TempDir()
	writeCloses(t, dir, "SPY", closes)
	return NewEngine(bars.NewStore(dir), zerolog.Nop())
}

func TestRunSMA_SingleRoundTrip(t *testing.T) {
	e := testEngine(t, vShape)

	res, err := e.RunSMA(SMAParams{Ticker: "SPY", Start: "2025-01-01", End: "2025-12-31", Fast: 2, Slow: 3})
	if err != nil {
		t.Fatal(err)
	}

	if res.NumTrades != 1 {
		t.Fatalf("trades = %d, want 1: %+v", res.NumTrades, res.Trades)
	}
	tr := res.Trades[0]
	if tr.EntryPrice != 12 || tr.ExitPrice != 13 {
		t.Fatalf("trade %.2f -> %.2f, want 12 -> 13", tr.EntryPrice, tr.ExitPrice)
	}
	if tr.OpenAtEnd {
		t.Fatal("round trip marked open at end")
	}
	if math.Abs(res.TotalReturn-1.0/12) > 1e-9 {
		t.Fatalf("total return = %v, want 1/12", res.TotalReturn)
	}
	if res.WinRate != 1 {
		t.Fatalf("win rate = %v, want 1", res.WinRate)
	}
}

func TestRunSMA_OpenPositionClosesAtEnd(t *testing.T) {
	// Decline then rally into the final bar keeps the position open.
	e := testEngine(t, []float64{15, 14, 13, 12, 11, 10, 11, 12, 13, 14, 15})

	res, err := e.RunSMA(SMAParams{Ticker: "SPY", Start: "", End: "", Fast: 2, Slow: 3})
	if err != nil {
		t.Fatal(err)
	}
	if res.NumTrades != 1 || !res.Trades[0].OpenAtEnd {
		t.Fatalf("trades = %+v, want one open at end", res.Trades)
	}
	if res.Trades[0].ExitPrice != 15 {
		t.Fatalf("exit price = %v, want final close 15", res.Trades[0].ExitPrice)
	}
}

func TestRunSMA_ValidatesPeriods(t *testing.T) {
	e := testEngine(t, vShape)

	for _, tc := range []struct{ fast, slow int }{{0, 3}, {3, 3}, {5, 3}} {
		if _, err := e.RunSMA(SMAParams{Ticker: "SPY", Fast: tc.fast, Slow: tc.slow}); err == nil {
			t.Fatalf("fast=%d slow=%d accepted", tc.fast, tc.slow)
		}
	}
}

func TestRunSMA_MissingTicker(t *testing.T) {
	e := testEngine(t, vShape)

	_, err := e.RunSMA(SMAParams{Ticker: "ZZZ", Fast: 2, Slow: 3})
	if !errors.Is(err, errors.ErrDataNotFound) {
		t.Fatalf("err = %v, want ErrDataNotFound", err)
	}
}

func TestRunBuyHold(t *testing.T) {
	e := testEngine(t, vShape)

	res, err := e.RunBuyHold("SPY", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.TotalReturn-(10.0/15-1)) > 1e-9 {
		t.Fatalf("total return = %v, want -1/3", res.TotalReturn)
	}
	if res.NumTrades != 1 || res.WinRate != 0 {
		t.Fatalf("trades/win = %d/%v, want 1 losing trade", res.NumTrades, res.WinRate)
	}
	if res.MaxDrawdown >= 0 {
		t.Fatalf("max drawdown = %v, want negative", res.MaxDrawdown)
	}
}

func TestRunBuyHold_NeedsTwoBars(t *testing.T) {
	e := testEngine(t, []float64{100})

	if _, err := e.RunBuyHold("SPY", "", ""); err == nil {
		t.Fatal("expected error on single bar")
	}
}

func TestRunPortfolio_SharedCashAccount(t *testing.T) {
	dir := t.TempDir()
	writeCloses(t, dir, "AAA", vShape)
	writeCloses(t, dir, "BBB", vShape)
	e := NewEngine(bars.NewStore(dir), zerolog.Nop())

	res, err := e.RunPortfolio(PortfolioParams{
		Tickers:      []string{"AAA", "BBB", "MISSING"},
		Fast:         2,
		Slow:         3,
		InitialCash:  10_000,
		RiskPerTrade: 0.10,
	})
	if err != nil {
		t.Fatal(err)
	}

	// MISSING is skipped, both real tickers complete the same round trip.
	if len(res.Tickers) != 2 {
		t.Fatalf("tickers = %v, want AAA and BBB", res.Tickers)
	}
	if res.NumTrades != 2 {
		t.Fatalf("trades = %d, want 2: %+v", res.NumTrades, res.Trades)
	}
	if res.WinRate != 1 {
		t.Fatalf("win rate = %v, want 1", res.WinRate)
	}
	if res.FinalEquity <= 10_000 {
		t.Fatalf("final equity = %v, want gain over initial cash", res.FinalEquity)
	}
	if len(res.EquityCurve) != len(vShape) {
		t.Fatalf("curve length = %d, want %d", len(res.EquityCurve), len(vShape))
	}
}

func TestRunPortfolio_MaxPositionsCap(t *testing.T) {
	dir := t.TempDir()
	for _, ticker := range []string{"AAA", "BBB", "CCC"} {
		writeCloses(t, dir, ticker, vShape)
	}
	e := NewEngine(bars.NewStore(dir), zerolog.Nop())

	res, err := e.RunPortfolio(PortfolioParams{
		Tickers:      []string{"AAA", "BBB", "CCC"},
		Fast:         2,
		Slow:         3,
		InitialCash:  10_000,
		MaxPositions: 1,
		RiskPerTrade: 0.10,
	})
	if err != nil {
		t.Fatal(err)
	}
	// All three cross on the same day; only one entry fits the cap.
	if res.NumTrades != 1 {
		t.Fatalf("trades = %d, want 1: %+v", res.NumTrades, res.Trades)
	}
}

func TestRunPortfolio_NoUsableTickers(t *testing.T) {
	e := NewEngine(bars.NewStore(t.TempDir()), zerolog.Nop())

	_, err := e.RunPortfolio(PortfolioParams{Tickers: []string{"AAA"}, Fast: 2, Slow: 3, InitialCash: 1000})
	var dataErr *errors.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("err = %v, want DataError", err)
	}
}

func TestRunWalkForward_FoldsAndChosenParams(t *testing.T) {
	// Two copies of the V shape give 32 bars: train 16, test 8 yields
	// two complete folds.
	series := append(append([]float64{}, vShape...), vShape...)
	e := testEngine(t, series)

	res, err := e.RunWalkForward(WalkForwardParams{
		Ticker:    "SPY",
		TrainDays: 16,
		TestDays:  8,
		FastGrid:  []int{2},
		SlowGrid:  []int{3},
		Workers:   2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.NumFolds != 2 {
		t.Fatalf("folds = %d, want 2", res.NumFolds)
	}
	for _, f := range res.Folds {
		if f.ChosenFast != 2 || f.ChosenSlow != 3 {
			t.Fatalf("fold %d chose %d/%d, want 2/3", f.FoldNum, f.ChosenFast, f.ChosenSlow)
		}
		if f.TrainStart >= f.TestStart {
			t.Fatalf("fold %d train %s not before test %s", f.FoldNum, f.TrainStart, f.TestStart)
		}
	}
}

func TestRunWalkForward_NotEnoughBars(t *testing.T) {
	e := testEngine(t, vShape)

	_, err := e.RunWalkForward(WalkForwardParams{Ticker: "SPY", TrainDays: 100, TestDays: 50})
	var dataErr *errors.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("err = %v, want DataError", err)
	}
}

func TestComputeCAGR(t *testing.T) {
	// Doubling over exactly two years is ~41.4% annualised.
	got := computeCAGR(2.0, 730)
	if math.Abs(got-(math.Sqrt2-1)) > 1e-3 {
		t.Fatalf("cagr = %v, want ~0.414", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	got := maxDrawdown([]float64{1.0, 1.2, 0.9, 1.1})
	if math.Abs(got-(-0.25)) > 1e-9 {
		t.Fatalf("drawdown = %v, want -0.25", got)
	}
	if dd := maxDrawdown([]float64{1, 2, 3}); dd != 0 {
		t.Fatalf("monotonic curve drawdown = %v, want 0", dd)
	}
}
