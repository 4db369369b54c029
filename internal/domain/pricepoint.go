package domain

import "time"

// PricePoint is a single quote for a currency pair. Points are immutable once
// stored; a series holds them in strictly increasing timestamp order.
type PricePoint struct {
	Pair      CurrencyPair
	Timestamp time.Time
	Bid       float64
	Ask       float64
}

// NewPricePoint builds a point from a single quoted rate, as returned by data
// sources that do not publish a separate bid and ask.
func NewPricePoint(pair CurrencyPair, ts time.Time, rate float64) PricePoint {
	return PricePoint{Pair: pair, Timestamp: ts, Bid: rate, Ask: rate}
}

// Mid returns the mid price, falling back to whichever side is quoted when
// the other is missing.
func (p PricePoint) Mid() float64 {
	switch {
	case p.Bid > 0 && p.Ask > 0:
		return (p.Bid + p.Ask) / 2
	case p.Bid > 0:
		return p.Bid
	default:
		return p.Ask
	}
}
