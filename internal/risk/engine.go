// Package risk evaluates proposed orders against portfolio exposure
// limits and hard caps for same-day option strategies.
package risk

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"deltastack/internal/bars"
	"deltastack/internal/broker"
	"deltastack/internal/config"
	"deltastack/internal/errors"
	"deltastack/internal/models"
)

// Verdict is the outcome of a risk evaluation. Rejections are ordinary
// results that carry human-readable reason codes; the engine never
// errors on a breach.
type Verdict struct {
	Accepted      bool     `json:"accepted"`
	Equity        float64  `json:"equity"`
	GrossExposure float64  `json:"current_gross_exposure"`
	NetExposure   float64  `json:"current_net_exposure"`
	ReasonCodes   []string `json:"reason_codes,omitempty"`
}

// Engine checks exposure limits against live broker state.
type Engine struct {
	limits   config.RiskConfig
	zeroDTE  config.ZeroDTEConfig
	fallback float64 // equity assumed when the broker reports none
	broker   broker.Broker
	bars     *bars.Store
	logger   zerolog.Logger
}

// NewEngine creates a risk engine. fallbackCash stands in for equity
// when no account state exists yet.
func NewEngine(limits config.RiskConfig, zeroDTE config.ZeroDTEConfig, fallbackCash float64, b broker.Broker, barStore *bars.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		limits:   limits,
		zeroDTE:  zeroDTE,
		fallback: fallbackCash,
		broker:   b,
		bars:     barStore,
		logger:   logger,
	}
}

// EvaluatePlan checks a batch of proposed orders against single-ticker,
// gross and net exposure limits, accumulating exposure across the batch.
func (e *Engine) EvaluatePlan(ctx context.Context, orders []models.OrderRequest) (*Verdict, error) {
	equity := e.fallback
	var positions []models.Position
	if e.broker != nil {
		if acc, err := e.broker.GetAccount(ctx); err == nil && acc.Equity > 0 {
			equity = acc.Equity
		}
		if pos, err := e.broker.GetPositions(ctx); err == nil {
			positions = pos
		}
	}
	// Exposure limits are fractions of equity; without positive equity
	// there is nothing to size against.
	if equity <= 0 {
		return nil, errors.NewRiskError("equity", equity, 0, "exposure limits need positive equity")
	}

	gross := 0.0
	net := 0.0
	perTicker := make(map[string]float64)
	for _, p := range positions {
		notional := p.Qty * p.MarketPrice
		gross += math.Abs(notional)
		net += notional
		perTicker[p.Ticker] += math.Abs(notional)
	}

	v := &Verdict{
		Accepted:      true,
		Equity:        equity,
		GrossExposure: gross,
		NetExposure:   net,
	}

	for _, order := range orders {
		ticker := strings.ToUpper(order.Ticker)
		price, err := e.bars.LastClose(ticker)
		if err != nil || price <= 0 {
			v.ReasonCodes = append(v.ReasonCodes, fmt.Sprintf("%s: no price data for risk check", ticker))
			continue
		}

		notional := order.Qty * price
		sign := 1.0
		if order.Side == models.SideSell {
			sign = -1
		}

		perTicker[ticker] += notional
		if limit := equity * e.limits.MaxSingleTickerExposurePct; perTicker[ticker] > limit {
			v.ReasonCodes = append(v.ReasonCodes,
				fmt.Sprintf("%s: single ticker exposure %.0f > limit %.0f", ticker, perTicker[ticker], limit))
			v.Accepted = false
		}

		gross += notional
		if limit := equity * e.limits.MaxGrossExposurePct; gross > limit {
			v.ReasonCodes = append(v.ReasonCodes,
				fmt.Sprintf("gross exposure %.0f > limit %.0f", gross, limit))
			v.Accepted = false
		}

		net += sign * notional
		if limit := equity * e.limits.MaxNetExposurePct; math.Abs(net) > limit {
			v.ReasonCodes = append(v.ReasonCodes,
				fmt.Sprintf("net exposure %.0f > limit %.0f", math.Abs(net), limit))
			v.Accepted = false
		}
	}

	if !v.Accepted {
		e.logger.Warn().Strs("reasons", v.ReasonCodes).Msg("risk plan rejected")
	}
	return v, nil
}

// DayState summarises a 0DTE agent's activity so far today.
type DayState struct {
	TradesToday   int
	NotionalToday float64
	RealizedPnL   float64
}

// CheckZeroDTE enforces the hard per-day caps for same-day option
// strategies: trade count, notional and realized loss. proposedNotional
// is the dollar max loss of the spread about to be opened.
func (e *Engine) CheckZeroDTE(state DayState, proposedNotional float64) *Verdict {
	v := &Verdict{Accepted: true}
	if state.TradesToday >= e.zeroDTE.MaxTradesPerDay {
		v.ReasonCodes = append(v.ReasonCodes,
			fmt.Sprintf("trades today %d >= cap %d", state.TradesToday, e.zeroDTE.MaxTradesPerDay))
		v.Accepted = false
	}
	if state.NotionalToday+proposedNotional > e.zeroDTE.MaxNotionalPerDay {
		v.ReasonCodes = append(v.ReasonCodes,
			fmt.Sprintf("notional today %.0f > cap %.0f", state.NotionalToday+proposedNotional, e.zeroDTE.MaxNotionalPerDay))
		v.Accepted = false
	}
	if state.RealizedPnL <= -e.zeroDTE.MaxDailyLoss {
		v.ReasonCodes = append(v.ReasonCodes,
			fmt.Sprintf("daily loss %.0f beyond cap %.0f", -state.RealizedPnL, e.zeroDTE.MaxDailyLoss))
		v.Accepted = false
	}
	return v
}
