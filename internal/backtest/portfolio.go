package backtest

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"deltastack/internal/errors"
	"deltastack/internal/indicators"
	"deltastack/internal/models"
)

// PortfolioParams configure a multi-ticker SMA crossover simulation with
// cash management, position sizing, commission and slippage.
type PortfolioParams struct {
	Tickers      []string `json:"tickers"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Fast         int      `json:"fast"`
	Slow         int      `json:"slow"`
	InitialCash  float64  `json:"initial_cash"`
	MaxPositions int      `json:"max_positions"`
	RiskPerTrade float64  `json:"risk_per_trade"` // fraction of equity deployed per entry
	Commission   float64  `json:"commission"`
	SlippageBps  float64  `json:"slippage_bps"`
}

// EquityPoint is one daily portfolio equity observation.
type EquityPoint struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

// PortfolioResult is the outcome of a multi-ticker simulation.
type PortfolioResult struct {
	RunID       string        `json:"run_id"`
	Tickers     []string      `json:"tickers"`
	Start       string        `json:"start"`
	End         string        `json:"end"`
	FinalEquity float64       `json:"final_equity"`
	TotalReturn float64       `json:"total_return"`
	CAGR        float64       `json:"cagr"`
	MaxDrawdown float64       `json:"max_drawdown"`
	NumTrades   int           `json:"num_trades"`
	WinRate     float64       `json:"win_rate"`
	Trades      []BarTrade    `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
}

type tickerSeries struct {
	byDate map[string]int
	bars   []models.Candle
	fast   []float64
	slow   []float64
}

type holding struct {
	qty        float64
	entryPrice float64
	entryDate  string
}

// RunPortfolio simulates the SMA crossover across several tickers
// sharing one cash account. Entries size to risk_per_trade of current
// equity, capped by max_positions; fills pay slippage and commission.
// Tickers with no usable data are skipped, not fatal.
func (e *Engine) RunPortfolio(p PortfolioParams) (*PortfolioResult, error) {
	if p.Fast <= 0 || p.Slow <= 0 || p.Fast >= p.Slow {
		return nil, errors.NewValidationError("fast/slow", p.Fast, "fast must be positive and < slow")
	}
	if p.InitialCash <= 0 {
		return nil, errors.NewValidationError("initial_cash", p.InitialCash, "must be positive")
	}
	if p.MaxPositions <= 0 {
		p.MaxPositions = 3
	}
	if p.RiskPerTrade <= 0 {
		p.RiskPerTrade = 0.02
	}

	runID := uuid.NewString()
	series := make(map[string]*tickerSeries)
	dateSet := make(map[string]bool)
	var tickers []string

	for _, ticker := range p.Tickers {
		candles, err := e.bars.Load(ticker, p.Start, p.End)
		if err != nil || len(candles) < p.Slow+1 {
			e.logger.Warn().Str("ticker", ticker).Msg("no usable bars, skipping")
			continue
		}
		closes := make([]float64, len(candles))
		byDate := make(map[string]int, len(candles))
		for i, c := range candles {
			closes[i] = c.Close
			byDate[c.Date] = i
			dateSet[c.Date] = true
		}
		series[ticker] = &tickerSeries{
			byDate: byDate,
			bars:   candles,
			fast:   indicators.SMA(closes, p.Fast),
			slow:   indicators.SMA(closes, p.Slow),
		}
		tickers = append(tickers, ticker)
	}
	if len(series) == 0 {
		return nil, errors.NewDataError("bars", "portfolio", "no usable data for any ticker", errors.ErrDataNotFound)
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	cash := p.InitialCash
	positions := make(map[string]holding)
	slipUp := 1 + p.SlippageBps/10_000
	slipDown := 1 - p.SlippageBps/10_000

	var trades []BarTrade
	var curve []EquityPoint

	markEquity := func(date string) float64 {
		eq := cash
		for t, h := range positions {
			price := h.entryPrice
			if ts := series[t]; ts != nil {
				if i, ok := ts.byDate[date]; ok {
					price = ts.bars[i].Close
				}
			}
			eq += h.qty * price
		}
		return eq
	}

	for _, date := range dates {
		for _, ticker := range tickers {
			ts := series[ticker]
			i, ok := ts.byDate[date]
			if !ok || i == 0 {
				continue
			}
			if math.IsNaN(ts.fast[i]) || math.IsNaN(ts.slow[i]) ||
				math.IsNaN(ts.fast[i-1]) || math.IsNaN(ts.slow[i-1]) {
				continue
			}
			price := ts.bars[i].Close
			bullCross := ts.fast[i-1] <= ts.slow[i-1] && ts.fast[i] > ts.slow[i]
			bearCross := ts.fast[i-1] >= ts.slow[i-1] && ts.fast[i] < ts.slow[i]

			if bullCross {
				if _, held := positions[ticker]; held || len(positions) >= p.MaxPositions {
					continue
				}
				equity := markEquity(date)
				fill := price * slipUp
				if fill <= 0 {
					continue
				}
				qty := equity * p.RiskPerTrade / fill
				cost := qty*fill + p.Commission
				if cost > cash || qty <= 0 {
					continue
				}
				cash -= cost
				positions[ticker] = holding{qty: qty, entryPrice: fill, entryDate: date}
			} else if bearCross {
				h, held := positions[ticker]
				if !held {
					continue
				}
				fill := price * slipDown
				cash += h.qty*fill - p.Commission
				trades = append(trades, BarTrade{
					Ticker:     ticker,
					EntryDate:  h.entryDate,
					ExitDate:   date,
					EntryPrice: h.entryPrice,
					ExitPrice:  fill,
					Return:     (fill - h.entryPrice) / h.entryPrice,
				})
				delete(positions, ticker)
			}
		}
		curve = append(curve, EquityPoint{Date: date, Equity: markEquity(date)})
	}

	// Mark remaining holdings to the final close.
	lastDate := dates[len(dates)-1]
	for ticker, h := range positions {
		price := h.entryPrice
		if ts := series[ticker]; ts != nil {
			price = ts.bars[len(ts.bars)-1].Close
		}
		cash += h.qty * price
		trades = append(trades, BarTrade{
			Ticker:     ticker,
			EntryDate:  h.entryDate,
			ExitDate:   lastDate,
			EntryPrice: h.entryPrice,
			ExitPrice:  price,
			Return:     (price - h.entryPrice) / h.entryPrice,
			OpenAtEnd:  true,
		})
	}
	positions = nil
	finalEquity := cash

	equityOnly := make([]float64, len(curve))
	for i, pt := range curve {
		equityOnly[i] = pt.Equity
	}
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

	res := &PortfolioResult{
		RunID:       runID,
		Tickers:     tickers,
		Start:       dates[0],
		End:         lastDate,
		FinalEquity: finalEquity,
		TotalReturn: finalEquity/p.InitialCash - 1,
		CAGR:        computeCAGR(finalEquity/p.InitialCash, daysBetween(dates[0], lastDate)),
		MaxDrawdown: maxDrawdown(equityOnly),
		NumTrades:   len(trades),
		WinRate:     winRate,
		Trades:      trades,
		EquityCurve: curve,
	}
	e.logger.Info().
		Str("run_id", runID).
		Strs("tickers", tickers).
		Float64("total_return", res.TotalReturn).
		Int("num_trades", res.NumTrades).
		Msg("portfolio backtest complete")
	return res, nil
}
