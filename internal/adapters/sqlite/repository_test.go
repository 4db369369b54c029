package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var usdjpy = domain.CurrencyPair{Base: "USD", Quote: "JPY"}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "forex-bot-test-*")
	require.NoError(t, err)

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	})
	return repo
}

func openPosition() *domain.Position {
	return &domain.Position{
		Pair:       usdjpy,
		Direction:  domain.Buy,
		Quantity:   decimal.NewFromInt(1000),
		EntryPrice: 110.60,
		OpenedAt:   time.Now().UTC().Truncate(time.Second),
		Status:     domain.StatusOpen,
	}
}

func pendingOrder(clientID string) *domain.Order {
	return &domain.Order{
		ClientID:       clientID,
		Pair:           usdjpy,
		Side:           domain.Buy,
		Quantity:       decimal.NewFromInt(1000),
		RequestedPrice: 110.00,
		Status:         domain.OrderPending,
		SubmittedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestRepository_CreateAndFindPosition(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	pos := openPosition()
	id, err := repo.CreatePosition(ctx, pos)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, id, pos.ID)

	open, err := repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, usdjpy, open[0].Pair)
	assert.Equal(t, domain.Buy, open[0].Direction)
	assert.True(t, open[0].Quantity.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 110.60, open[0].EntryPrice)
	assert.True(t, open[0].IsOpen())

	other := domain.CurrencyPair{Base: "EUR", Quote: "USD"}
	open, err = repo.FindOpenByPair(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRepository_UpdatePosition(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	pos := openPosition()
	_, err := repo.CreatePosition(ctx, pos)
	require.NoError(t, err)

	pos.ExitPrice = 111.60
	pos.ClosedAt = time.Now().UTC().Truncate(time.Second)
	pos.Status = domain.StatusClosed
	pos.PNL = 1000.0
	require.NoError(t, repo.UpdatePosition(ctx, pos))

	open, err := repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := repo.FindAllPositions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusClosed, all[0].Status)
	assert.Equal(t, 111.60, all[0].ExitPrice)
	assert.False(t, all[0].ClosedAt.IsZero())

	total, err := repo.TotalPNL(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, total)
}

func TestRepository_UpdateMissingPosition(t *testing.T) {
	repo := setupTestDB(t)

	pos := openPosition()
	pos.ID = 42
	err := repo.UpdatePosition(context.Background(), pos)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_CreateAndFindOrder(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	order := pendingOrder("ord-1")
	id, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)
	assert.NotZero(t, id)

	found, err := repo.FindOrderByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "ord-1", found.ClientID)
	assert.Equal(t, domain.OrderPending, found.Status)
	assert.Nil(t, found.PositionID)
	assert.True(t, found.Quantity.Equal(decimal.NewFromInt(1000)))

	missing, err := repo.FindOrderByID(ctx, id+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_ResolveOrderExactlyOnce(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	order := pendingOrder("ord-1")
	_, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	order.Status = domain.OrderRejected
	order.Reason = "market closed"
	order.ResolvedAt = time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.ResolveOrder(ctx, order))

	// The status guard rejects the second transition.
	order.Status = domain.OrderFilled
	err = repo.ResolveOrder(ctx, order)
	assert.ErrorIs(t, err, ports.ErrAlreadyResolved)

	found, err := repo.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRejected, found.Status)
	assert.Equal(t, "market closed", found.Reason)
}

func TestRepository_ReconcileFillOpensPosition(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	order := pendingOrder("ord-1")
	_, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	order.Status = domain.OrderFilled
	order.FillPrice = 110.60
	order.ResolvedAt = time.Now().UTC().Truncate(time.Second)
	pos := openPosition()

	require.NoError(t, repo.ReconcileFill(ctx, order, pos))
	assert.NotZero(t, pos.ID)
	require.NotNil(t, order.PositionID)
	assert.Equal(t, pos.ID, *order.PositionID)

	open, err := repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	found, err := repo.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, found.Status)
	assert.Equal(t, 110.60, found.FillPrice)
	require.NotNil(t, found.PositionID)
	assert.Equal(t, pos.ID, *found.PositionID)
}

func TestRepository_ReconcileFillClosesPosition(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	pos := openPosition()
	_, err := repo.CreatePosition(ctx, pos)
	require.NoError(t, err)

	order := pendingOrder("ord-close")
	order.Side = domain.Sell
	_, err = repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	order.Status = domain.OrderFilled
	order.FillPrice = 111.60
	order.ResolvedAt = time.Now().UTC().Truncate(time.Second)
	pos.ExitPrice = 111.60
	pos.ClosedAt = order.ResolvedAt
	pos.Status = domain.StatusClosed
	pos.PNL = 1000.0

	require.NoError(t, repo.ReconcileFill(ctx, order, pos))

	open, err := repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Empty(t, open)

	total, err := repo.TotalPNL(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, total)
}

func TestRepository_ReconcileFillResolvedOrderRollsBack(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	order := pendingOrder("ord-1")
	_, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	order.Status = domain.OrderFilled
	order.FillPrice = 110.60
	order.ResolvedAt = time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.ReconcileFill(ctx, order, openPosition()))

	// Replaying the fill must not create a second position.
	order.Status = domain.OrderFilled
	err = repo.ReconcileFill(ctx, order, openPosition())
	assert.ErrorIs(t, err, ports.ErrAlreadyResolved)

	all, err := repo.FindAllPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRepository_CountTodayByPair(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	count, err := repo.CountTodayByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	order := pendingOrder("ord-1")
	_, err = repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	// Pending orders don't count.
	count, err = repo.CountTodayByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	order.Status = domain.OrderFilled
	order.FillPrice = 110.60
	order.ResolvedAt = time.Now().UTC()
	require.NoError(t, repo.ResolveOrder(ctx, order))

	count, err = repo.CountTodayByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Fills from an earlier UTC day stay outside the window regardless of
	// the process's local zone.
	old := pendingOrder("ord-2")
	_, err = repo.CreateOrder(ctx, old)
	require.NoError(t, err)
	old.Status = domain.OrderFilled
	old.FillPrice = 110.20
	old.ResolvedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, repo.ResolveOrder(ctx, old))

	count, err = repo.CountTodayByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: "/tmp/never-created.db"})
	assert.Error(t, err)
}
