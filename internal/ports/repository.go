package ports

import (
	"context"

	"forexTradeBot/internal/domain"
)

// PositionRepository defines the interface for storing and retrieving
// trading positions.
type PositionRepository interface {
	// CreatePosition saves a new position and returns its assigned ID.
	CreatePosition(ctx context.Context, pos *domain.Position) (int64, error)
	// UpdatePosition modifies an existing position.
	UpdatePosition(ctx context.Context, pos *domain.Position) error
	// FindOpenByPair retrieves the open positions for a pair, newest first.
	// An empty slice means no open position.
	FindOpenByPair(ctx context.Context, pair domain.CurrencyPair) ([]*domain.Position, error)
	// FindAllPositions retrieves all positions, ordered by open time descending.
	FindAllPositions(ctx context.Context) ([]*domain.Position, error)
	// TotalPNL sums the PNL of all closed positions.
	TotalPNL(ctx context.Context) (float64, error)
}

// OrderRepository defines the interface for storing orders and applying
// their terminal transitions.
type OrderRepository interface {
	// CreateOrder saves a new pending order and returns its assigned ID.
	CreateOrder(ctx context.Context, order *domain.Order) (int64, error)
	// ResolveOrder applies a terminal status to a pending order. It fails
	// with ErrAlreadyResolved if the order is no longer pending.
	ResolveOrder(ctx context.Context, order *domain.Order) error
	// ReconcileFill atomically resolves a filled order and creates or
	// updates the matching position in the same transaction. A position
	// with ID 0 is inserted, otherwise it is updated.
	ReconcileFill(ctx context.Context, order *domain.Order, pos *domain.Position) error
	// FindOrderByID retrieves an order by its unique ID.
	// Returns nil, nil if not found.
	FindOrderByID(ctx context.Context, id int64) (*domain.Order, error)
	// CountTodayByPair counts orders filled today for a pair.
	CountTodayByPair(ctx context.Context, pair domain.CurrencyPair) (int, error)
}
