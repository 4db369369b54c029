package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"forexTradeBot/internal/domain"
)

// MarketDataGateway fetches the latest quote for a currency pair. Calls may
// block, fail or be rate-limited; callers bound them with a context deadline.
type MarketDataGateway interface {
	FetchLatest(ctx context.Context, pair domain.CurrencyPair) (domain.PricePoint, error)
}

// OrderRequest carries everything an execution gateway needs to place an
// order.
type OrderRequest struct {
	ClientID       string          // Caller-generated idempotency key
	Pair           domain.CurrencyPair
	Side           domain.OrderSide
	Quantity       decimal.Decimal // Base currency units
	RequestedPrice float64         // Last known price, used by paper fills and limit checks
	Mode           domain.TradeMode
}

// OrderOutcome is the execution gateway's terminal answer for an order.
type OrderOutcome struct {
	ClientID    string
	Status      domain.OrderStatus // filled, rejected or cancelled
	FillPrice   float64            // Average fill price (0 unless filled)
	ExecutedQty decimal.Decimal    // Quantity actually filled
	Reason      string             // Rejection reason, if any
	Timestamp   time.Time          // When the outcome was produced
}

// ExecutionGateway places orders against the brokerage. The paper
// implementation simulates fills deterministically and never touches the
// network; the live implementation talks to the real API.
type ExecutionGateway interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderOutcome, error)
}
