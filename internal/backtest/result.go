// Package backtest implements daily-bar strategy engines: SMA crossover,
// buy-and-hold, a multi-ticker portfolio simulation and walk-forward
// validation.
package backtest

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

// BarTrade is one round trip on daily bars. Return is fractional
// (0.05 = +5%).
type BarTrade struct {
	Ticker     string  `json:"ticker,omitempty"`
	EntryDate  string  `json:"entry_date"`
	ExitDate   string  `json:"exit_date"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Return     float64 `json:"return"`
	OpenAtEnd  bool    `json:"open_at_end,omitempty"`
}

// Result is the outcome of a single-ticker bar strategy run.
type Result struct {
	Strategy    string     `json:"strategy"`
	Ticker      string     `json:"ticker"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	FastPeriod  int        `json:"fast_period,omitempty"`
	SlowPeriod  int        `json:"slow_period,omitempty"`
	TotalReturn float64    `json:"total_return"`
	CAGR        float64    `json:"cagr"`
	MaxDrawdown float64    `json:"max_drawdown"`
	NumTrades   int        `json:"num_trades"`
	WinRate     float64    `json:"win_rate"`
	SharpeLike  float64    `json:"sharpe_like"`
	Trades      []BarTrade `json:"trades"`
}

// computeCAGR annualises a final equity multiple over a span of calendar
// days. Equity is normalised to 1.0 at the start.
func computeCAGR(finalEquity float64, days int) float64 {
	years := float64(days) / 365.25
	if years < 0.01 {
		years = 0.01
	}
	if finalEquity <= 0 {
		return -1
	}
	return math.Pow(finalEquity, 1/years) - 1
}

// maxDrawdown returns the worst peak-to-trough fraction of an equity
// curve, as a non-positive number.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (e - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpeLike is a simplified ratio: annualised return over annualised
// volatility of daily equity changes. Not a true Sharpe (no risk-free
// leg), but stable enough to rank parameter sets.
func sharpeLike(cagr float64, equity []float64) float64 {
	if len(equity) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			rets = append(rets, equity[i]/equity[i-1]-1)
		}
	}
	sd, err := stats.StandardDeviationSample(rets)
	if err != nil {
		return 0
	}
	annVol := sd * math.Sqrt(252)
	if annVol <= 0 {
		return 0
	}
	return cagr / annVol
}

// daysBetween returns calendar days between two "2006-01-02" dates.
func daysBetween(start, end string) int {
	s, err1 := time.Parse("2006-01-02", start)
	e, err2 := time.Parse("2006-01-02", end)
	if err1 != nil || err2 != nil {
		return 1
	}
	return int(e.Sub(s).Hours() / 24)
}
