package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the opposing side. Closing a position uses the side
// opposite to the one that opened it.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// SignalDirection is a strategy's recommendation for a cycle.
type SignalDirection string

const (
	SignalBuy  SignalDirection = "buy"
	SignalSell SignalDirection = "sell"
	SignalHold SignalDirection = "hold"
)

// Side maps a non-hold signal direction to an order side.
func (d SignalDirection) Side() OrderSide {
	if d == SignalSell {
		return Sell
	}
	return Buy
}

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// OrderStatus represents the lifecycle status of an order. An order moves
// from pending to exactly one terminal status and never transitions again.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderRejected  OrderStatus = "rejected"
	OrderCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderFilled || s == OrderRejected || s == OrderCancelled
}

// TradeMode selects between simulated and real order execution. It is fixed
// for the lifetime of a run.
type TradeMode string

const (
	ModePaper TradeMode = "paper"
	ModeLive  TradeMode = "live"
)

// IsValid reports whether the mode is one of the known values.
func (m TradeMode) IsValid() bool {
	return m == ModePaper || m == ModeLive
}
