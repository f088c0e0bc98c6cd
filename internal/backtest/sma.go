package backtest

import (
	"github.com/rs/zerolog"

	"deltastack/internal/bars"
	"deltastack/internal/errors"
	"deltastack/internal/indicators"
)

// Engine runs daily-bar strategies against a bar store.
type Engine struct {
	bars   *bars.Store
	logger zerolog.Logger
}

// NewEngine creates a bar strategy engine.
func NewEngine(store *bars.Store, logger zerolog.Logger) *Engine {
	return &Engine{bars: store, logger: logger}
}

// SMAParams configure a long-only SMA crossover backtest. The strategy
// buys when the fast average crosses above the slow one and sells on the
// reverse cross, executing at the signal day's close, fully invested or
// fully flat.
type SMAParams struct {
	Ticker string `json:"ticker"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Fast   int    `json:"fast"`
	Slow   int    `json:"slow"`
}

// RunSMA executes an SMA crossover backtest on stored daily bars.
func (e *Engine) RunSMA(p SMAParams) (*Result, error) {
	if p.Fast <= 0 || p.Slow <= 0 || p.Fast >= p.Slow {
		return nil, errors.NewValidationError("fast/slow", p.Fast, "fast must be positive and < slow")
	}

	candles, err := e.bars.Load(p.Ticker, p.Start, p.End)
	if err != nil {
		return nil, err
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	fast := indicators.SMA(closes, p.Fast)
	slow := indicators.SMA(closes, p.Slow)

	// Trim warmup rows where the slow average is undefined.
	first := p.Slow - 1
	if len(candles)-first < 2 {
		return nil, errors.NewDataError("bars", p.Ticker, "not enough bars after SMA warmup", errors.ErrDataNotFound)
	}
	candles, closes, fast, slow = candles[first:], closes[first:], fast[first:], slow[first:]

	signal := make([]int, len(candles))
	for i := range candles {
		if fast[i] > slow[i] {
			signal[i] = 1
		} else {
			signal[i] = -1
		}
	}

	var (
		trades     []BarTrade
		open       bool
		entryPrice float64
		entryDate  string
		cash       = 1.0
		shares     = 0.0
		equity     []float64
	)
	for i := range candles {
		price := closes[i]
		cross := 0
		if i > 0 {
			cross = signal[i] - signal[i-1]
		}

		switch {
		case cross > 0 && !open:
			shares = cash / price
			entryPrice = price
			entryDate = candles[i].Date
			cash = 0
			open = true
		case cross < 0 && open:
			cash = shares * price
			trades = append(trades, BarTrade{
				EntryDate:  entryDate,
				ExitDate:   candles[i].Date,
				EntryPrice: entryPrice,
				ExitPrice:  price,
				Return:     (price - entryPrice) / entryPrice,
			})
			shares = 0
			open = false
		}

		equity = append(equity, cash+shares*price)
	}

	last := candles[len(candles)-1]
	if open {
		cash = shares * last.Close
		trades = append(trades, BarTrade{
			EntryDate:  entryDate,
			ExitDate:   last.Date,
			EntryPrice: entryPrice,
			ExitPrice:  last.Close,
			Return:     (last.Close - entryPrice) / entryPrice,
			OpenAtEnd:  true,
		})
		shares = 0
	}
	finalEquity := cash

	days := daysBetween(candles[0].Date, last.Date)
	cagr := computeCAGR(finalEquity, days)

	wins := 0
	for _, t := range trades {
		if t.Return > 0 {
			wins++
		}
	}
	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(wins) / float64(len(trades))
	}

	res := &Result{
		Strategy:    "sma_cross",
		Ticker:      p.Ticker,
		Start:       candles[0].Date,
		End:         last.Date,
		FastPeriod:  p.Fast,
		SlowPeriod:  p.Slow,
		TotalReturn: finalEquity - 1,
		CAGR:        cagr,
		MaxDrawdown: maxDrawdown(equity),
		NumTrades:   len(trades),
		WinRate:     winRate,
		SharpeLike:  sharpeLike(cagr, equity),
		Trades:      trades,
	}
	e.logger.Info().
		Str("ticker", p.Ticker).
		Int("fast", p.Fast).Int("slow", p.Slow).
		Float64("total_return", res.TotalReturn).
		Int("num_trades", res.NumTrades).
		Msg("sma backtest complete")
	return res, nil
}
