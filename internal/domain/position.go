package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a holding opened by a filled order. Its open/closed
// transition is driven only by matching order fills, never by signals
// directly.
type Position struct {
	ID         int64           // Unique identifier (assigned by the ledger repository)
	Pair       CurrencyPair    // Traded currency pair
	Direction  OrderSide       // Side that opened the position
	Quantity   decimal.Decimal // Size of the position in base currency units
	EntryPrice float64         // Price at which the position was entered
	ExitPrice  float64         // Price at which the position was exited (0 while open)
	OpenedAt   time.Time       // Timestamp when the position was opened
	ClosedAt   time.Time       // Timestamp when the position was closed (zero value while open)
	Status     PositionStatus  // Current status (open, closed)
	PNL        float64         // Profit and loss, calculated on close
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// UnrealisedPNL returns the profit and loss against the given price.
func (p *Position) UnrealisedPNL(price float64) float64 {
	qty, _ := p.Quantity.Float64()
	if p.Direction == Sell {
		return (p.EntryPrice - price) * qty
	}
	return (price - p.EntryPrice) * qty
}
