// Package models defines the core data types shared across the application.
package models

// OptionType identifies the side of an option contract.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// Valid reports whether the option type is one of the supported values.
func (t OptionType) Valid() bool {
	return t == OptionCall || t == OptionPut
}

// SpreadType identifies the vertical credit spread variant.
type SpreadType string

const (
	BullPut  SpreadType = "bull_put"
	BearCall SpreadType = "bear_call"
)

// OptionType returns the contract side used by this spread variant.
func (s SpreadType) OptionType() OptionType {
	if s == BearCall {
		return OptionCall
	}
	return OptionPut
}

// Valid reports whether the spread type is one of the supported values.
func (s SpreadType) Valid() bool {
	return s == BullPut || s == BearCall
}

// OptionContract is a single contract row within a chain snapshot.
// Bid, Ask, Last and the greeks are nullable: upstream feeds frequently
// omit them, and the selection logic must cope with either shape.
type OptionContract struct {
	Symbol       string     `csv:"symbol"`
	Strike       float64    `csv:"strike"`
	Type         OptionType `csv:"type"`
	Expiration   string     `csv:"expiration"` // calendar date, "2006-01-02"
	Bid          *float64   `csv:"bid"`
	Ask          *float64   `csv:"ask"`
	Last         *float64   `csv:"last"`
	Volume       int64      `csv:"volume"`
	OpenInterest int64      `csv:"open_interest"`
	Delta        *float64   `csv:"delta"`
	IV           *float64   `csv:"iv"`
	Gamma        *float64   `csv:"gamma"`
	Theta        *float64   `csv:"theta"`
	Vega         *float64   `csv:"vega"`
}

// Mid returns the contract's fair-value proxy: the bid/ask midpoint when
// both sides are present and positive, otherwise the last traded price.
// Returns 0 when neither is available; a contract with Mid() <= 0 is
// never selectable.
func (c *OptionContract) Mid() float64 {
	if c.Bid != nil && c.Ask != nil && *c.Bid > 0 && *c.Ask > 0 {
		return (*c.Bid + *c.Ask) / 2
	}
	if c.Last != nil {
		return *c.Last
	}
	return 0
}

// BidAskPct returns the bid-ask spread as a fraction of mid. The second
// return value is false when either side is missing or mid is not positive.
func (c *OptionContract) BidAskPct() (float64, bool) {
	if c.Bid == nil || c.Ask == nil {
		return 0, false
	}
	mid := c.Mid()
	if mid <= 0 {
		return 0, false
	}
	return (*c.Ask - *c.Bid) / mid, true
}

// HasDelta reports whether the feed supplied a delta for this contract.
func (c *OptionContract) HasDelta() bool {
	return c.Delta != nil
}

// AbsDelta returns |delta|, or 0 when the contract carries none.
func (c *OptionContract) AbsDelta() float64 {
	if c.Delta == nil {
		return 0
	}
	if *c.Delta < 0 {
		return -*c.Delta
	}
	return *c.Delta
}

// ChainSnapshot is an immutable set of contracts captured at one instant,
// keyed by (underlying, date, time-of-day). Created once by ingestion and
// read-only thereafter; callers must not mutate Contracts.
type ChainSnapshot struct {
	Underlying string
	Date       string // "2006-01-02", session-local
	Time       string // "HHMM", zero-padded 24-hour
	Contracts  []OptionContract
}

// Candle is one daily OHLCV bar.
type Candle struct {
	Date   string  `csv:"date"` // "2006-01-02"
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}
