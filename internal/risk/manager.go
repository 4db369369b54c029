// Package risk validates orders against the configured trading limits
// before they reach the ledger or the execution gateway.
package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"forexTradeBot/internal/ports"
)

// Config holds the risk limits for a run.
type Config struct {
	// TradeCap is the maximum quantity, in base currency units, allowed for
	// a single order. Zero disables the check.
	TradeCap float64
	// AvailableFunds bounds the notional value (quantity times price) of a
	// single order. Zero disables the check.
	AvailableFunds float64
	// MaxTradesPerDay bounds how many orders may be filled per pair per
	// calendar day. Zero disables the check.
	MaxTradesPerDay int
	Logger          ports.Logger
}

// Manager applies the configured limits to order requests. It holds no
// mutable state; the daily trade count is read from the ledger per call.
type Manager struct {
	cfg Config
}

// NewManager creates a risk manager, validating its configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for risk manager")
	}
	if cfg.TradeCap < 0 {
		return nil, fmt.Errorf("trade cap cannot be negative")
	}
	if cfg.AvailableFunds < 0 {
		return nil, fmt.Errorf("available funds cannot be negative")
	}
	if cfg.MaxTradesPerDay < 0 {
		return nil, fmt.Errorf("max trades per day cannot be negative")
	}
	return &Manager{cfg: cfg}, nil
}

// ValidateOrder checks an order request against every configured limit.
// tradesToday is the number of orders already filled for the pair today.
// A violation is reported with the matching sentinel, wrapped so callers
// can classify it with errors.Is.
func (m *Manager) ValidateOrder(ctx context.Context, req ports.OrderRequest, tradesToday int) error {
	if !req.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity %s is not positive", ports.ErrOrderRejected, req.Quantity)
	}
	if req.RequestedPrice <= 0 {
		return fmt.Errorf("%w: requested price %f is not positive", ports.ErrOrderRejected, req.RequestedPrice)
	}

	if m.cfg.TradeCap > 0 {
		maxQty := decimal.NewFromFloat(m.cfg.TradeCap)
		if req.Quantity.GreaterThan(maxQty) {
			m.cfg.Logger.Warn(ctx, "Order exceeds trade cap", map[string]interface{}{
				"pair":     req.Pair.String(),
				"quantity": req.Quantity.String(),
				"cap":      m.cfg.TradeCap,
			})
			return fmt.Errorf("%w: quantity %s exceeds cap %s", ports.ErrTradeCapExceeded, req.Quantity, maxQty)
		}
	}

	if m.cfg.AvailableFunds > 0 {
		notional := req.Quantity.Mul(decimal.NewFromFloat(req.RequestedPrice))
		funds := decimal.NewFromFloat(m.cfg.AvailableFunds)
		if notional.GreaterThan(funds) {
			m.cfg.Logger.Warn(ctx, "Order exceeds available funds", map[string]interface{}{
				"pair":     req.Pair.String(),
				"notional": notional.String(),
				"funds":    m.cfg.AvailableFunds,
			})
			return fmt.Errorf("%w: notional %s exceeds available funds %s", ports.ErrInsufficientFunds, notional, funds)
		}
	}

	if m.cfg.MaxTradesPerDay > 0 && tradesToday >= m.cfg.MaxTradesPerDay {
		m.cfg.Logger.Warn(ctx, "Daily trade limit reached", map[string]interface{}{
			"pair":  req.Pair.String(),
			"today": tradesToday,
			"limit": m.cfg.MaxTradesPerDay,
		})
		return fmt.Errorf("%w: %d trades today, limit %d", ports.ErrDailyLimitReached, tradesToday, m.cfg.MaxTradesPerDay)
	}

	return nil
}
