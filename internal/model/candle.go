package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar for a market, produced by the gateway.
// Candles are immutable once constructed.
type Candle struct {
	Market    string          `json:"market"`
	OpenTime  time.Time       `json:"open_time"`
	UnitMin   int             `json:"unit_min"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Synthetic bool            `json:"synthetic,omitempty"`
}

// Valid checks the invariants from SPEC_FULL.md's Data Model table:
// low <= min(open, close) <= max(open, close) <= high, volume >= 0.
func (c Candle) Valid() bool {
	if c.Volume.IsNegative() {
		return false
	}
	lo := decimal.Min(c.Open, c.Close)
	hi := decimal.Max(c.Open, c.Close)
	return c.Low.LessThanOrEqual(lo) && lo.LessThanOrEqual(hi) && hi.LessThanOrEqual(c.High)
}

// PriceLevel is one side of an orderbook level.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderbookSnapshot is a best-first ordered book for one market.
type OrderbookSnapshot struct {
	Market string       `json:"market"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
	Taken  time.Time    `json:"taken"`
}

// Valid enforces best_ask > best_bid > 0 when both sides are present.
func (o OrderbookSnapshot) Valid() bool {
	if len(o.Bids) == 0 || len(o.Asks) == 0 {
		return false
	}
	bestBid := o.Bids[0].Price
	bestAsk := o.Asks[0].Price
	return bestAsk.GreaterThan(bestBid) && bestBid.GreaterThan(decimal.Zero)
}
