// Package execution implements the order execution gateways: a paper gateway
// that simulates fills locally and a broker gateway that places real orders.
package execution

import (
	"context"
	"fmt"
	"time"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

// QuoteFunc returns the latest known quote for a pair. The paper gateway
// fills against it instead of touching the network.
type QuoteFunc func(pair domain.CurrencyPair) (domain.PricePoint, bool)

// Paper simulates order execution. Fills are deterministic: a buy fills at
// the latest ask, a sell at the latest bid, always for the full quantity.
// Runs in paper mode are therefore reproducible against the same quotes.
type Paper struct {
	quote  QuoteFunc
	logger ports.Logger
}

// PaperConfig holds configuration for the paper gateway.
type PaperConfig struct {
	Quote  QuoteFunc
	Logger ports.Logger
}

// NewPaper creates a paper execution gateway.
func NewPaper(cfg PaperConfig) (*Paper, error) {
	if cfg.Quote == nil {
		return nil, fmt.Errorf("quote source is required for paper execution")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for paper execution")
	}
	return &Paper{quote: cfg.Quote, logger: cfg.Logger}, nil
}

// SubmitOrder fills the order against the latest quote. An order for a pair
// with no quote is rejected, not errored: the outcome is a terminal answer
// the ledger can reconcile.
func (p *Paper) SubmitOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: paper order %s: %v", ports.ErrContextCanceled, req.ClientID, err)
	}

	point, ok := p.quote(req.Pair)
	if !ok {
		p.logger.Warn(ctx, "Paper order rejected, no quote", map[string]interface{}{
			"clientID": req.ClientID,
			"pair":     req.Pair.String(),
		})
		return &ports.OrderOutcome{
			ClientID:  req.ClientID,
			Status:    domain.OrderRejected,
			Reason:    "no quote available for pair",
			Timestamp: time.Now().UTC(),
		}, nil
	}

	fillPrice := point.Ask
	if req.Side == domain.Sell {
		fillPrice = point.Bid
	}

	p.logger.Info(ctx, "Paper order filled", map[string]interface{}{
		"clientID":  req.ClientID,
		"pair":      req.Pair.String(),
		"side":      string(req.Side),
		"quantity":  req.Quantity.String(),
		"fillPrice": fillPrice,
	})
	return &ports.OrderOutcome{
		ClientID:    req.ClientID,
		Status:      domain.OrderFilled,
		FillPrice:   fillPrice,
		ExecutedQty: req.Quantity,
		Timestamp:   time.Now().UTC(),
	}, nil
}
