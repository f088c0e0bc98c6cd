package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deltastack/internal/bars"
	"deltastack/internal/config"
	"deltastack/internal/errors"
	"deltastack/internal/models"
	"deltastack/internal/store"
	"deltastack/pkg/utils"
)

// PaperBroker simulates fills at the last stored close plus slippage.
// Positions and cash are persisted through the sink so the account
// survives restarts; a nil sink keeps state in memory only.
type PaperBroker struct {
	cfg    config.PaperConfig
	market config.MarketConfig
	bars   *bars.Store
	sink   store.PaperSink
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	cash      float64
	positions map[string]*models.Position
	loaded    bool
}

// NewPaperBroker creates a paper broker. Persisted state, when present,
// overrides the configured initial cash on first use. Orders placed
// outside the configured market session are rejected; a zero-value
// market config disables the session gate.
func NewPaperBroker(cfg config.PaperConfig, market config.MarketConfig, barStore *bars.Store, sink store.PaperSink, logger zerolog.Logger) *PaperBroker {
	return &PaperBroker{
		cfg:       cfg,
		market:    market,
		bars:      barStore,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
		cash:      cfg.InitialCash,
		positions: make(map[string]*models.Position),
	}
}

func (p *PaperBroker) restore(ctx context.Context) {
	if p.loaded {
		return
	}
	p.loaded = true
	if p.sink == nil {
		return
	}
	if acc, err := p.sink.LoadAccount(ctx); err == nil && acc != nil {
		p.cash = acc.Cash
	}
	if positions, err := p.sink.LoadPositions(ctx); err == nil {
		for i := range positions {
			pos := positions[i]
			p.positions[pos.Ticker] = &pos
		}
	}
}

// PlaceOrder fills an order at the last close adjusted for slippage.
// Buys are rejected when cost plus commission exceeds cash; both
// rejections and fills are ordinary results, not errors.
func (p *PaperBroker) PlaceOrder(ctx context.Context, order models.OrderRequest) (*models.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restore(ctx)

	orderID := uuid.NewString()[:12]
	ticker := strings.ToUpper(order.Ticker)

	if order.Side != models.SideBuy && order.Side != models.SideSell {
		return nil, errors.NewOrderError(orderID, ticker, string(order.Side), "unknown order side", nil)
	}

	reject := func(msg string) *models.OrderResult {
		return &models.OrderResult{
			OrderID: orderID, Ticker: ticker, Side: order.Side, Qty: order.Qty,
			Status: models.OrderRejected, Message: msg,
		}
	}
	if order.Qty <= 0 {
		return reject("quantity must be positive"), nil
	}
	if p.market.Open != "" && p.market.Close != "" &&
		!utils.IsMarketHours(p.now(), p.market.Timezone, p.market.Open, p.market.Close) {
		return reject("market closed"), nil
	}

	last, err := p.bars.LastClose(ticker)
	if err != nil || last <= 0 {
		return reject(fmt.Sprintf("no price data for %s", ticker)), nil
	}

	slip := p.cfg.SlippageBps / 10_000
	fill := last * (1 + slip)
	if order.Side == models.SideSell {
		fill = last * (1 - slip)
	}

	if order.Side == models.SideBuy {
		total := order.Qty*fill + p.cfg.Commission
		if total > p.cash {
			return reject(fmt.Sprintf("insufficient cash: need %.2f, have %.2f", total, p.cash)), nil
		}
		p.cash -= total
		p.applyFill(ticker, order.Qty, fill)
	} else {
		p.cash += order.Qty*fill - p.cfg.Commission
		p.applyFill(ticker, -order.Qty, fill)
	}

	result := &models.OrderResult{
		OrderID:    orderID,
		Ticker:     ticker,
		Side:       order.Side,
		Qty:        order.Qty,
		FillPrice:  fill,
		Commission: p.cfg.Commission,
		Status:     models.OrderFilled,
		Message:    "paper fill",
	}
	p.persist(ctx, ticker, result)

	p.logger.Info().
		Str("order_id", orderID).
		Str("ticker", ticker).
		Str("side", string(order.Side)).
		Float64("qty", order.Qty).
		Float64("fill_price", fill).
		Float64("cash", p.cash).
		Msg("paper fill")
	return result, nil
}

// applyFill merges a signed quantity into the position book using a
// weighted average entry price. A position whose quantity reaches zero
// is removed.
func (p *PaperBroker) applyFill(ticker string, qty, price float64) {
	pos, ok := p.positions[ticker]
	if !ok {
		if qty == 0 {
			return
		}
		p.positions[ticker] = &models.Position{Ticker: ticker, Qty: qty, AvgPrice: price}
		return
	}

	newQty := pos.Qty + qty
	if newQty == 0 {
		delete(p.positions, ticker)
		return
	}
	if (qty > 0) == (pos.Qty > 0) {
		// Adding to the position: average in the new lot.
		pos.AvgPrice = (pos.AvgPrice*pos.Qty + price*qty) / newQty
	} else if (newQty > 0) != (pos.Qty > 0) {
		// Flipped through zero: the residual lot has a fresh basis.
		pos.AvgPrice = price
	}
	pos.Qty = newQty
}

func (p *PaperBroker) persist(ctx context.Context, ticker string, fill *models.OrderResult) {
	if p.sink == nil {
		return
	}
	if err := p.sink.AppendFill(ctx, *fill); err != nil {
		p.logger.Warn().Err(err).Msg("failed to persist fill")
	}
	pos := models.Position{Ticker: ticker}
	if held, ok := p.positions[ticker]; ok {
		pos = *held
	}
	if err := p.sink.SavePosition(ctx, pos); err != nil {
		p.logger.Warn().Err(err).Msg("failed to persist position")
	}
	acc := p.accountLocked()
	if err := p.sink.SaveAccount(ctx, *acc); err != nil {
		p.logger.Warn().Err(err).Msg("failed to persist account")
	}
}

// GetPositions returns open positions marked at the latest stored close.
func (p *PaperBroker) GetPositions(ctx context.Context) ([]models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restore(ctx)

	var out []models.Position
	for _, pos := range p.positions {
		marked := *pos
		if last, err := p.bars.LastClose(pos.Ticker); err == nil && last > 0 {
			marked.MarketPrice = last
			marked.UnrealizedPnL = (last - pos.AvgPrice) * pos.Qty
		} else {
			marked.MarketPrice = pos.AvgPrice
		}
		out = append(out, marked)
	}
	return out, nil
}

// GetAccount returns cash, market value of positions and total equity.
func (p *PaperBroker) GetAccount(ctx context.Context) (*models.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restore(ctx)
	return p.accountLocked(), nil
}

func (p *PaperBroker) accountLocked() *models.Account {
	value := 0.0
	for _, pos := range p.positions {
		price := pos.AvgPrice
		if last, err := p.bars.LastClose(pos.Ticker); err == nil && last > 0 {
			price = last
		}
		value += pos.Qty * price
	}
	return &models.Account{
		Cash:           p.cash,
		PositionsValue: value,
		Equity:         p.cash + value,
		NumPositions:   len(p.positions),
	}
}
