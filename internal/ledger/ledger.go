// Package ledger is the authoritative record of orders and positions. Every
// order passes through it before execution and every execution outcome is
// reconciled back through it, so the single-position invariant and the
// exactly-once reconciliation rule are enforced in one place.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
	"forexTradeBot/internal/risk"
)

// Config holds the ledger dependencies and policy switches.
type Config struct {
	Positions ports.PositionRepository
	Orders    ports.OrderRepository
	Risk      *risk.Manager
	Logger    ports.Logger
	// AllowHedging permits a second same-side position on a pair. Off by
	// default: one open position per pair.
	AllowHedging bool
}

// Ledger validates, records and reconciles orders. A per-pair mutex
// serialises the submit and reconcile paths for a pair, so checks and writes
// for one pair never interleave.
type Ledger struct {
	cfg Config

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	opening map[string]domain.CurrencyPair // client IDs of unresolved opening orders
}

// New creates a ledger, validating its dependencies.
func New(cfg Config) (*Ledger, error) {
	if cfg.Positions == nil {
		return nil, fmt.Errorf("position repository is required")
	}
	if cfg.Orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if cfg.Risk == nil {
		return nil, fmt.Errorf("risk manager is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Ledger{
		cfg:     cfg,
		locks:   make(map[string]*sync.Mutex),
		opening: make(map[string]domain.CurrencyPair),
	}, nil
}

// pairLock returns the mutex for a pair, creating it on first use.
func (l *Ledger) pairLock(pair domain.CurrencyPair) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[pair.String()]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[pair.String()] = lock
	}
	return lock
}

// pendingOpens counts unresolved opening orders for a pair.
func (l *Ledger) pendingOpens(pair domain.CurrencyPair) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.opening {
		if p == pair {
			n++
		}
	}
	return n
}

func (l *Ledger) markOpening(clientID string, pair domain.CurrencyPair) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opening[clientID] = pair
}

func (l *Ledger) clearOpening(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.opening, clientID)
}

// openPosition returns the open position for a pair, or nil.
func (l *Ledger) openPosition(ctx context.Context, pair domain.CurrencyPair) (*domain.Position, error) {
	open, err := l.cfg.Positions.FindOpenByPair(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}
	return open[0], nil
}

// CanOpen reports whether a new position may be opened for the pair. It is
// advisory; Submit re-checks under the pair lock.
func (l *Ledger) CanOpen(ctx context.Context, pair domain.CurrencyPair) (bool, error) {
	if l.cfg.AllowHedging {
		return true, nil
	}
	pos, err := l.openPosition(ctx, pair)
	if err != nil {
		return false, err
	}
	return pos == nil && l.pendingOpens(pair) == 0, nil
}

// Submit validates an order request and records it as pending. An order on
// the side opposite to the pair's open position is a closing order; a
// same-side order while a position (or an unresolved opening order) exists
// is rejected with ErrPositionExists unless hedging is allowed. The returned
// order has its repository ID assigned and must be reconciled exactly once.
func (l *Ledger) Submit(ctx context.Context, req ports.OrderRequest) (*domain.Order, error) {
	lock := l.pairLock(req.Pair)
	lock.Lock()
	defer lock.Unlock()

	tradesToday, err := l.cfg.Orders.CountTodayByPair(ctx, req.Pair)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's trades: %w", err)
	}
	if err := l.cfg.Risk.ValidateOrder(ctx, req, tradesToday); err != nil {
		return nil, err
	}

	pos, err := l.openPosition(ctx, req.Pair)
	if err != nil {
		return nil, err
	}

	closing := pos != nil && pos.Direction == req.Side.Opposite()
	if !closing && !l.cfg.AllowHedging {
		if pos != nil {
			return nil, fmt.Errorf("%w: %s %s position %d is open", ports.ErrPositionExists, pos.Pair, pos.Direction, pos.ID)
		}
		if l.pendingOpens(req.Pair) > 0 {
			return nil, fmt.Errorf("%w: an opening order for %s is in flight", ports.ErrPositionExists, req.Pair)
		}
	}

	order := &domain.Order{
		ClientID:       req.ClientID,
		Pair:           req.Pair,
		Side:           req.Side,
		Quantity:       req.Quantity,
		RequestedPrice: req.RequestedPrice,
		Status:         domain.OrderPending,
		SubmittedAt:    time.Now().UTC(),
	}
	id, err := l.cfg.Orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}
	order.ID = id
	if !closing {
		l.markOpening(order.ClientID, order.Pair)
	}

	l.cfg.Logger.Info(ctx, "Order recorded", map[string]interface{}{
		"orderID":  order.ID,
		"clientID": order.ClientID,
		"pair":     order.Pair.String(),
		"side":     string(order.Side),
		"quantity": order.Quantity.String(),
		"closing":  closing,
	})
	return order, nil
}

// Reconcile applies an execution outcome to a pending order exactly once.
// A fill creates a new position, or closes the pair's open opposite-side
// position in full, in the same repository transaction as the order update.
// The affected position is returned for fills, nil otherwise. Reconciling an
// already resolved order fails with ErrAlreadyResolved.
func (l *Ledger) Reconcile(ctx context.Context, order *domain.Order, outcome *ports.OrderOutcome) (*domain.Position, error) {
	if order == nil || outcome == nil {
		return nil, fmt.Errorf("order and outcome are required")
	}

	lock := l.pairLock(order.Pair)
	lock.Lock()
	defer lock.Unlock()

	if order.IsResolved() {
		return nil, fmt.Errorf("%w: order %d is %s", ports.ErrAlreadyResolved, order.ID, order.Status)
	}

	resolvedAt := outcome.Timestamp
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}

	if outcome.Status != domain.OrderFilled {
		order.Status = outcome.Status
		order.Reason = outcome.Reason
		order.ResolvedAt = resolvedAt
		if err := l.cfg.Orders.ResolveOrder(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to resolve order %d: %w", order.ID, err)
		}
		l.clearOpening(order.ClientID)
		l.cfg.Logger.Warn(ctx, "Order did not fill", map[string]interface{}{
			"orderID": order.ID,
			"pair":    order.Pair.String(),
			"status":  string(outcome.Status),
			"reason":  outcome.Reason,
		})
		return nil, nil
	}

	order.Status = domain.OrderFilled
	order.FillPrice = outcome.FillPrice
	order.ResolvedAt = resolvedAt

	existing, err := l.openPosition(ctx, order.Pair)
	if err != nil {
		return nil, err
	}

	var pos *domain.Position
	if existing != nil && existing.Direction == order.Side.Opposite() {
		pos = existing
		pos.ExitPrice = outcome.FillPrice
		pos.ClosedAt = resolvedAt
		pos.Status = domain.StatusClosed
		pos.PNL = pos.UnrealisedPNL(outcome.FillPrice)
	} else {
		pos = &domain.Position{
			Pair:       order.Pair,
			Direction:  order.Side,
			Quantity:   outcome.ExecutedQty,
			EntryPrice: outcome.FillPrice,
			OpenedAt:   resolvedAt,
			Status:     domain.StatusOpen,
		}
	}

	if err := l.cfg.Orders.ReconcileFill(ctx, order, pos); err != nil {
		return nil, fmt.Errorf("failed to reconcile fill for order %d: %w", order.ID, err)
	}
	order.PositionID = &pos.ID
	l.clearOpening(order.ClientID)

	l.cfg.Logger.Info(ctx, "Order filled", map[string]interface{}{
		"orderID":    order.ID,
		"pair":       order.Pair.String(),
		"fillPrice":  outcome.FillPrice,
		"positionID": pos.ID,
		"posStatus":  string(pos.Status),
		"pnl":        pos.PNL,
	})
	return pos, nil
}

// Restore logs the open positions found in the repository at startup, so a
// restarted bot resumes managing them instead of double-opening.
func (l *Ledger) Restore(ctx context.Context) error {
	all, err := l.cfg.Positions.FindAllPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}
	open := 0
	for _, pos := range all {
		if pos.IsOpen() {
			open++
			l.cfg.Logger.Info(ctx, "Resuming open position", map[string]interface{}{
				"positionID": pos.ID,
				"pair":       pos.Pair.String(),
				"direction":  string(pos.Direction),
				"quantity":   pos.Quantity.String(),
				"entryPrice": pos.EntryPrice,
			})
		}
	}
	l.cfg.Logger.Info(ctx, "Ledger restored", map[string]interface{}{
		"positions": len(all),
		"open":      open,
	})
	return nil
}

// TotalPNL returns the realised profit and loss across all closed positions.
func (l *Ledger) TotalPNL(ctx context.Context) (float64, error) {
	return l.cfg.Positions.TotalPNL(ctx)
}
