package backtest

import (
	"deltastack/internal/errors"
)

// RunBuyHold runs the simplest benchmark: buy at the first bar's close,
// hold until the last bar's close.
func (e *Engine) RunBuyHold(ticker, start, end string) (*Result, error) {
	candles, err := e.bars.Load(ticker, start, end)
	if err != nil {
		return nil, err
	}
	if len(candles) < 2 {
		return nil, errors.NewDataError("bars", ticker, "need at least 2 bars for buy-and-hold", errors.ErrDataNotFound)
	}

	entry := candles[0].Close
	exit := candles[len(candles)-1].Close
	totalReturn := (exit - entry) / entry

	equity := make([]float64, len(candles))
	for i, c := range candles {
		equity[i] = c.Close / entry
	}

	days := daysBetween(candles[0].Date, candles[len(candles)-1].Date)
	cagr := computeCAGR(1+totalReturn, days)

	winRate := 0.0
	if totalReturn > 0 {
		winRate = 1.0
	}

	res := &Result{
		Strategy:    "buy_hold",
		Ticker:      ticker,
		Start:       candles[0].Date,
		End:         candles[len(candles)-1].Date,
		TotalReturn: totalReturn,
		CAGR:        cagr,
		MaxDrawdown: maxDrawdown(equity),
		NumTrades:   1,
		WinRate:     winRate,
		SharpeLike:  sharpeLike(cagr, equity),
		Trades: []BarTrade{{
			EntryDate:  candles[0].Date,
			ExitDate:   candles[len(candles)-1].Date,
			EntryPrice: entry,
			ExitPrice:  exit,
			Return:     totalReturn,
		}},
	}
	e.logger.Info().
		Str("ticker", ticker).
		Float64("total_return", totalReturn).
		Msg("buy-hold backtest complete")
	return res, nil
}
