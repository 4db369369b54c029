package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexTradeBot/internal/adapters/execution"
	"forexTradeBot/internal/adapters/sqlite"
	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ledger"
	"forexTradeBot/internal/ports"
	"forexTradeBot/internal/pricestore"
	"forexTradeBot/internal/risk"
	"forexTradeBot/internal/strategy"
)

type mockLogger struct{}

func (mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var usdjpy = domain.CurrencyPair{Base: "USD", Quote: "JPY"}

// mockMarket serves a settable quote, optionally failing first.
type mockMarket struct {
	mu       sync.Mutex
	rate     float64
	failures int
	calls    int
}

func (m *mockMarket) set(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = rate
}

func (m *mockMarket) FetchLatest(ctx context.Context, pair domain.CurrencyPair) (domain.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return domain.PricePoint{}, ports.ErrGatewayUnavailable
	}
	return domain.NewPricePoint(pair, time.Now().UTC(), m.rate), nil
}

// failingExecution always errors, leaving the order state to the ledger.
type failingExecution struct{ calls int }

func (f *failingExecution) SubmitOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderOutcome, error) {
	f.calls++
	return nil, ports.ErrExecutionFailed
}

type testHarness struct {
	service *TradingService
	market  *mockMarket
	store   *pricestore.Store
	repo    *sqlite.Repository
}

// newHarness wires a paper-mode service around a simple momentum strategy
// with a 0.5% threshold.
func newHarness(t *testing.T, exec ports.ExecutionGateway) *testHarness {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "forex-app-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	store := pricestore.New(pricestore.Config{Retention: time.Hour})

	manager, err := risk.NewManager(risk.Config{Logger: mockLogger{}})
	require.NoError(t, err)
	led, err := ledger.New(ledger.Config{
		Positions: repo,
		Orders:    repo,
		Risk:      manager,
		Logger:    mockLogger{},
	})
	require.NoError(t, err)

	strat, err := strategy.NewSimple(strategy.Params{
		Pair:             usdjpy,
		ThresholdPercent: 0.5,
		Direction:        "momentum",
	}, mockLogger{})
	require.NoError(t, err)

	market := &mockMarket{}
	if exec == nil {
		paper, err := execution.NewPaper(execution.PaperConfig{
			Quote:  store.Latest,
			Logger: mockLogger{},
		})
		require.NoError(t, err)
		exec = paper
	}

	service, err := NewTradingService(Config{
		Logger:             mockLogger{},
		MarketData:         market,
		Execution:          exec,
		Strategy:           strat,
		Store:              store,
		Ledger:             led,
		Pair:               usdjpy,
		Mode:               domain.ModePaper,
		TradeAmount:        1000,
		UpdateInterval:     time.Second,
		CheckInterval:      time.Second,
		RequestTimeout:     time.Second,
		StalenessTolerance: time.Minute,
	})
	require.NoError(t, err)

	return &testHarness{service: service, market: market, store: store, repo: repo}
}

func TestCycle_OpensPositionOnThresholdBreak(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	// First observation establishes the baseline; no trade yet.
	h.market.set(110.00)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)

	open, err := h.repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Empty(t, open)

	// A 0.545% rise breaks the 0.5% threshold and opens a long position
	// filled at the quoted price.
	h.market.set(110.60)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)

	open, err = h.repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	require.Len(t, open, 1)
	pos := open[0]
	assert.Equal(t, usdjpy, pos.Pair)
	assert.Equal(t, domain.Buy, pos.Direction)
	assert.Equal(t, 110.60, pos.EntryPrice)
	assert.Equal(t, "1000", pos.Quantity.String())

	assert.Equal(t, StateIdle, h.service.State())
}

func TestCycle_SecondSignalBlockedByOpenPosition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	h.market.set(110.00)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)
	h.market.set(110.60)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)

	// Another rise signals buy again, but the open position blocks it.
	h.market.set(111.30)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)

	open, err := h.repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, 110.60, open[0].EntryPrice, "position must not be replaced")
}

func TestCycle_OppositeSignalClosesPosition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	h.market.set(110.00)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)
	h.market.set(110.60)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)

	// A drop below the threshold signals sell, which closes the long.
	h.market.set(109.40)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)

	open, err := h.repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := h.repo.FindAllPositions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusClosed, all[0].Status)
	assert.Equal(t, 109.40, all[0].ExitPrice)
	assert.InDelta(t, (109.40-110.60)*1000, all[0].PNL, 1e-6)
}

func TestCycle_GatewayFailureSkipsThenRecovers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	h.market.set(110.00)
	h.market.failures = 1
	h.service.refreshQuotes(ctx)
	assert.Zero(t, h.store.Len(usdjpy), "failed fetch must store nothing")

	h.service.runCycle(ctx)
	assert.Equal(t, StateIdle, h.service.State())

	// Next tick succeeds and the loop picks up where it left off.
	h.service.refreshQuotes(ctx)
	assert.Equal(t, 1, h.store.Len(usdjpy))
}

func TestCycle_StaleDataSkipsEvaluation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	// Prime the baseline, then age the data beyond tolerance.
	h.market.set(110.00)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)

	h.service.cfg.StalenessTolerance = time.Millisecond
	time.Sleep(5 * time.Millisecond)
	h.service.runCycle(ctx)

	open, err := h.repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Empty(t, open, "stale data must not produce a trade")
}

func TestCycle_ExecutionFailureLeavesNoPosition(t *testing.T) {
	ctx := context.Background()
	exec := &failingExecution{}
	h := newHarness(t, exec)

	h.market.set(110.00)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)
	h.market.set(110.60)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)

	assert.Equal(t, 1, exec.calls)

	open, err := h.repo.FindOpenByPair(ctx, usdjpy)
	require.NoError(t, err)
	assert.Empty(t, open)

	// The failed order is resolved, so a later signal can trade again.
	h.market.set(111.30)
	h.service.refreshQuotes(ctx)
	h.service.runCycle(ctx)
	assert.Equal(t, 2, exec.calls)
}

func TestShutdownDoesNotAbandonSubmittedOrder(t *testing.T) {
	h := newHarness(t, nil)

	h.market.set(110.00)
	h.service.refreshQuotes(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	req := ports.OrderRequest{
		ClientID:       "shutdown-1",
		Pair:           usdjpy,
		Side:           domain.Buy,
		Quantity:       decimal.NewFromInt(1000),
		RequestedPrice: 110.00,
		Mode:           domain.ModePaper,
	}
	order, err := h.service.cfg.Ledger.Submit(ctx, req)
	require.NoError(t, err)

	// The stop signal lands between recording the order and executing it.
	// The order must still reach a terminal status.
	cancel()
	h.service.executeOrder(ctx, order, req)

	stored, err := h.repo.FindOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsResolved())
	assert.Equal(t, domain.OrderFilled, stored.Status)

	open, err := h.repo.FindOpenByPair(context.Background(), usdjpy)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestFetchRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.service.cfg.FetchRetry = true

	h.market.set(110.00)
	h.market.failures = 1
	h.service.refreshQuotes(ctx)

	assert.Equal(t, 1, h.store.Len(usdjpy), "single retry must recover the fetch")
	assert.Equal(t, 2, h.market.calls)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.market.set(110.00)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.service.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after context cancellation")
	}
	assert.Equal(t, StateStopped, h.service.State())
}

func TestNewTradingService_Validation(t *testing.T) {
	_, err := NewTradingService(Config{})
	assert.Error(t, err)
}
