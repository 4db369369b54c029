package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a request to trade. It is created by the trading bot, submitted
// through the ledger and mutated only by the execution gateway's outcome via
// the ledger's reconciliation step.
type Order struct {
	ID             int64           // Unique identifier (assigned by the ledger repository)
	ClientID       string          // Caller-generated idempotency key
	PositionID     *int64          // Position opened or closed by this order; nil until filled
	Pair           CurrencyPair    // Traded currency pair
	Side           OrderSide       // BUY or SELL
	Quantity       decimal.Decimal // Requested size in base currency units
	RequestedPrice float64         // Last known price when the order was created
	FillPrice      float64         // Actual fill price (0 unless filled)
	Status         OrderStatus     // pending, filled, rejected or cancelled
	SubmittedAt    time.Time       // When the order entered the ledger
	ResolvedAt     time.Time       // When the order reached a terminal status
	Reason         string          // Rejection or cancellation reason, if any
}

// IsResolved reports whether the order has reached a terminal status.
func (o *Order) IsResolved() bool {
	return o.Status.IsTerminal()
}
