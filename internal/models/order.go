package models

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderRequest is a request to the broker to fill an order.
type OrderRequest struct {
	Ticker string
	Side   OrderSide
	Qty    float64
}

// OrderStatus is the terminal state of an order.
type OrderStatus string

const (
	OrderFilled   OrderStatus = "FILLED"
	OrderRejected OrderStatus = "REJECTED"
)

// OrderResult is the broker's response to an order request.
type OrderResult struct {
	OrderID    string      `json:"order_id"`
	Ticker     string      `json:"ticker"`
	Side       OrderSide   `json:"side"`
	Qty        float64     `json:"qty"`
	FillPrice  float64     `json:"fill_price"`
	Commission float64     `json:"commission"`
	Status     OrderStatus `json:"status"`
	Message    string      `json:"message,omitempty"`
}

// Position is a held quantity of one ticker.
type Position struct {
	Ticker        string  `json:"ticker"`
	Qty           float64 `json:"qty"`
	AvgPrice      float64 `json:"avg_price"`
	MarketPrice   float64 `json:"market_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Account is a point-in-time view of broker account state.
type Account struct {
	Cash           float64 `json:"cash"`
	Equity         float64 `json:"equity"`
	PositionsValue float64 `json:"positions_value"`
	NumPositions   int     `json:"num_positions"`
}
