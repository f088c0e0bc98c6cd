package broker

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"deltastack/internal/bars"
	"deltastack/internal/config"
	"deltastack/internal/errors"
	"deltastack/internal/models"
)

func writeBars(t *testing.T, dir, ticker, csv string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ticker+".csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testBroker(t *testing.T, cfg config.PaperConfig) *PaperBroker {
	t.Helper()
	dir := t.TempDir()
	writeBars(t, dir, "SPY", "date,open,high,low,close,volume\n2025-06-19,578,581,577,579,1000\n2025-06-20,579,582,578,580,1200\n")
	// Zero-value market config leaves the session gate off.
	return NewPaperBroker(cfg, config.MarketConfig{}, bars.NewStore(dir), nil, zerolog.Nop())
}

func fc(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPlaceOrder_BuyFillsWithSlippageAndCommission(t *testing.T) {
	b := testBroker(t, config.PaperConfig{InitialCash: 10_000, Commission: 1, SlippageBps: 100})
	ctx := context.Background()

	fill, err := b.PlaceOrder(ctx, models.OrderRequest{Ticker: "spy", Side: models.SideBuy, Qty: 10})
	if err != nil {
		t.Fatal(err)
	}
	if fill.Status != models.OrderFilled {
		t.Fatalf("status %s: %s", fill.Status, fill.Message)
	}
	// 100 bps on a 580 close.
	fc(t, fill.FillPrice, 580*1.01)

	acc, err := b.GetAccount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	fc(t, acc.Cash, 10_000-10*580*1.01-1)
	if acc.NumPositions != 1 {
		t.Fatalf("positions = %d, want 1", acc.NumPositions)
	}
}

func TestPlaceOrder_SellDiscountsFill(t *testing.T) {
	b := testBroker(t, config.PaperConfig{InitialCash: 10_000, Commission: 1, SlippageBps: 100})
	ctx := context.Background()

	fill, err := b.PlaceOrder(ctx, models.OrderRequest{Ticker: "SPY", Side: models.SideSell, Qty: 5})
	if err != nil {
		t.Fatal(err)
	}
	fc(t, fill.FillPrice, 580*0.99)

	positions, err := b.GetPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 1 || positions[0].Qty != -5 {
		t.Fatalf("positions = %+v, want one short 5", positions)
	}
}

func TestPlaceOrder_Rejections(t *testing.T) {
	b := testBroker(t, config.PaperConfig{InitialCash: 100, Commission: 1})
	ctx := context.Background()

	cases := []struct {
		name  string
		order models.OrderRequest
	}{
		{"zero qty", models.OrderRequest{Ticker: "SPY", Side: models.SideBuy, Qty: 0}},
		{"unknown ticker", models.OrderRequest{Ticker: "ZZZ", Side: models.SideBuy, Qty: 1}},
		{"insufficient cash", models.OrderRequest{Ticker: "SPY", Side: models.SideBuy, Qty: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fill, err := b.PlaceOrder(ctx, tc.order)
			if err != nil {
				t.Fatal(err)
			}
			if fill.Status != models.OrderRejected {
				t.Fatalf("status = %s, want rejection", fill.Status)
			}
			if fill.Message == "" {
				t.Fatal("rejection carries no message")
			}
		})
	}

	// Rejections must not touch cash.
	acc, _ := b.GetAccount(ctx)
	fc(t, acc.Cash, 100)
}

func TestPlaceOrder_UnknownSideIsOrderError(t *testing.T) {
	b := testBroker(t, config.PaperConfig{InitialCash: 100})

	_, err := b.PlaceOrder(context.Background(), models.OrderRequest{Ticker: "SPY", Side: "HOLD", Qty: 1})
	var oerr *errors.OrderError
	if !errors.As(err, &oerr) {
		t.Fatalf("err = %v, want OrderError", err)
	}
}

func TestPlaceOrder_MarketHoursGate(t *testing.T) {
	dir := t.TempDir()
	writeBars(t, dir, "SPY", "date,open,high,low,close,volume\n2025-06-20,579,582,578,580,1200\n")
	market := config.MarketConfig{Timezone: "UTC", Open: "0930", Close: "1600"}
	b := NewPaperBroker(config.PaperConfig{InitialCash: 100_000}, market, bars.NewStore(dir), nil, zerolog.Nop())
	ctx := context.Background()
	order := models.OrderRequest{Ticker: "SPY", Side: models.SideBuy, Qty: 1}

	// Saturday.
	b.now = func() time.Time { return time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC) }
	fill, err := b.PlaceOrder(ctx, order)
	if err != nil {
		t.Fatal(err)
	}
	if fill.Status != models.OrderRejected {
		t.Fatalf("status = %s, want rejection on a weekend", fill.Status)
	}

	// In session on a Friday.
	b.now = func() time.Time { return time.Date(2025, 6, 20, 14, 30, 0, 0, time.UTC) }
	fill, err = b.PlaceOrder(ctx, order)
	if err != nil {
		t.Fatal(err)
	}
	if fill.Status != models.OrderFilled {
		t.Fatalf("status = %s: %s", fill.Status, fill.Message)
	}
}

func TestApplyFill_WeightedAverage(t *testing.T) {
	b := testBroker(t, config.PaperConfig{InitialCash: 1_000_000})
	ctx := context.Background()

	b.PlaceOrder(ctx, models.OrderRequest{Ticker: "SPY", Side: models.SideBuy, Qty: 10})
	b.PlaceOrder(ctx, models.OrderRequest{Ticker: "SPY", Side: models.SideBuy, Qty: 30})

	positions, _ := b.GetPositions(ctx)
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	fc(t, positions[0].Qty, 40)
	// Both lots fill at 580 with zero slippage.
	fc(t, positions[0].AvgPrice, 580)
}

func TestApplyFill_CloseRemovesPosition(t *testing.T) {
	b := testBroker(t, config.PaperConfig{InitialCash: 1_000_000})
	ctx := context.Background()

	b.PlaceOrder(ctx, models.OrderRequest{Ticker: "SPY", Side: models.SideBuy, Qty: 10})
	b.PlaceOrder(ctx, models.OrderRequest{Ticker: "SPY", Side: models.SideSell, Qty: 10})

	positions, _ := b.GetPositions(ctx)
	if len(positions) != 0 {
		t.Fatalf("positions = %+v, want none", positions)
	}
}

func TestApplyFill_FlipThroughZeroTakesFreshBasis(t *testing.T) {
	b := testBroker(t, config.PaperConfig{InitialCash: 1_000_000})
	ctx := context.Background()

	b.PlaceOrder(ctx, models.OrderRequest{Ticker: "SPY", Side: models.SideBuy, Qty: 10})
	b.PlaceOrder(ctx, models.OrderRequest{Ticker: "SPY", Side: models.SideSell, Qty: 25})

	positions, _ := b.GetPositions(ctx)
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	fc(t, positions[0].Qty, -15)
	fc(t, positions[0].AvgPrice, 580)
}

func TestGetPositions_MarksUnrealizedPnL(t *testing.T) {
	dir := t.TempDir()
	writeBars(t, dir, "SPY", "date,open,high,low,close,volume\n2025-06-20,579,582,578,580,1200\n")
	b := NewPaperBroker(config.PaperConfig{InitialCash: 1_000_000}, config.MarketConfig{}, bars.NewStore(dir), nil, zerolog.Nop())
	ctx := context.Background()

	b.PlaceOrder(ctx, models.OrderRequest{Ticker: "SPY", Side: models.SideBuy, Qty: 10})

	// A new close moves the mark.
	writeBars(t, dir, "SPY", "date,open,high,low,close,volume\n2025-06-20,579,582,578,580,1200\n2025-06-23,580,586,580,585,900\n")

	positions, _ := b.GetPositions(ctx)
	fc(t, positions[0].MarketPrice, 585)
	fc(t, positions[0].UnrealizedPnL, 50)
}
