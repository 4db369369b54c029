// Package app contains the trading bot's control loop. It owns the two
// cadences (data refresh and opportunity check), drives the strategy and
// routes decisions through the ledger to the execution gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"forexTradeBot/internal/correlation"
	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ledger"
	"forexTradeBot/internal/ports"
	"forexTradeBot/internal/pricestore"
)

// State is the bot's lifecycle state, readable from other goroutines.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateEvaluating State = "evaluating"
	StateDeciding   State = "deciding"
	StateExecuting  State = "executing"
	StateStopped    State = "stopped"
)

// Config holds everything the trading service needs. The service depends
// only on ports; concrete adapters are wired in main.
type Config struct {
	Logger     ports.Logger
	MarketData ports.MarketDataGateway
	Execution  ports.ExecutionGateway
	Strategy   ports.Strategy
	Store      *pricestore.Store
	Ledger     *ledger.Ledger
	// Engine is optional; only the correlation strategy consumes it.
	Engine *correlation.Engine

	Pair           domain.CurrencyPair
	SecondaryPairs []domain.CurrencyPair
	Mode           domain.TradeMode
	TradeAmount    float64

	UpdateInterval     time.Duration
	CheckInterval      time.Duration
	RequestTimeout     time.Duration
	StalenessTolerance time.Duration
	// FetchRetry allows one immediate retry of a failed quote fetch before
	// deferring to the next cycle.
	FetchRetry bool
}

// TradingService runs the fetch/evaluate/execute loop for one primary pair.
type TradingService struct {
	cfg Config

	mu    sync.RWMutex
	state State
}

// NewTradingService validates the wiring and returns a service ready to
// start.
func NewTradingService(cfg Config) (*TradingService, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.MarketData == nil {
		return nil, errors.New("market data gateway is required")
	}
	if cfg.Execution == nil {
		return nil, errors.New("execution gateway is required")
	}
	if cfg.Strategy == nil {
		return nil, errors.New("strategy is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("price store is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if cfg.Pair.IsZero() {
		return nil, errors.New("primary currency pair is required")
	}
	if !cfg.Mode.IsValid() {
		return nil, fmt.Errorf("invalid trade mode %q", cfg.Mode)
	}
	if cfg.TradeAmount <= 0 {
		return nil, errors.New("trade amount must be positive")
	}
	if cfg.UpdateInterval <= 0 || cfg.CheckInterval <= 0 {
		return nil, errors.New("update and check intervals must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.StalenessTolerance <= 0 {
		cfg.StalenessTolerance = 3 * cfg.UpdateInterval
	}
	return &TradingService{cfg: cfg, state: StateIdle}, nil
}

// State returns the current lifecycle state.
func (s *TradingService) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *TradingService) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// pairs returns the primary pair followed by the secondaries.
func (s *TradingService) pairs() []domain.CurrencyPair {
	return append([]domain.CurrencyPair{s.cfg.Pair}, s.cfg.SecondaryPairs...)
}

// Start runs the control loop until the context is cancelled. Quotes are
// refreshed every update interval and the strategy is consulted every check
// interval; a failure in either cadence is logged and the loop waits for the
// next tick rather than aborting.
func (s *TradingService) Start(ctx context.Context) error {
	s.cfg.Logger.Info(ctx, "Trading service starting", map[string]interface{}{
		"pair":           s.cfg.Pair.String(),
		"mode":           string(s.cfg.Mode),
		"strategy":       s.cfg.Strategy.Name(),
		"updateInterval": s.cfg.UpdateInterval.String(),
		"checkInterval":  s.cfg.CheckInterval.String(),
	})

	if err := s.cfg.Ledger.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore ledger state: %w", err)
	}

	// Seed the store so the first check has data to look at.
	s.refreshQuotes(ctx)

	updateTicker := time.NewTicker(s.cfg.UpdateInterval)
	defer updateTicker.Stop()
	checkTicker := time.NewTicker(s.cfg.CheckInterval)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateStopped)
			s.cfg.Logger.Info(context.Background(), "Trading service stopped", map[string]interface{}{
				"pair": s.cfg.Pair.String(),
			})
			return nil
		case <-updateTicker.C:
			s.refreshQuotes(ctx)
		case <-checkTicker.C:
			s.runCycle(ctx)
		}
	}
}

// refreshQuotes fetches the latest quote for every tracked pair, appends the
// fresh points to the store and feeds the correlation engine. A pair whose
// fetch fails is skipped this round; its next chance is the next tick.
func (s *TradingService) refreshQuotes(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.setState(StateFetching)
	defer s.setState(StateIdle)

	now := time.Now().UTC()
	rates := make(map[domain.CurrencyPair]float64)

	for _, pair := range s.pairs() {
		point, err := s.fetchLatest(ctx, pair)
		if err != nil {
			continue
		}
		if err := s.cfg.Store.Append(point); err != nil {
			if errors.Is(err, ports.ErrStalePoint) {
				// The source re-published an old quote; keep the series as is.
				s.cfg.Logger.Debug(ctx, "Skipping non-advancing quote", map[string]interface{}{
					"pair": pair.String(),
					"ts":   point.Timestamp,
				})
			} else {
				s.cfg.Logger.Error(ctx, err, "Failed to store quote", map[string]interface{}{
					"pair": pair.String(),
				})
			}
			continue
		}
		rates[pair] = point.Mid()
	}

	if s.cfg.Engine != nil && len(rates) > 0 {
		s.cfg.Engine.Observe(ctx, now, rates)
	}
}

// fetchLatest bounds a single quote fetch with the request timeout, retrying
// once when configured.
func (s *TradingService) fetchLatest(ctx context.Context, pair domain.CurrencyPair) (domain.PricePoint, error) {
	attempts := 1
	if s.cfg.FetchRetry {
		attempts = 2
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		point, err := s.cfg.MarketData.FetchLatest(fetchCtx, pair)
		cancel()
		if err == nil {
			return point, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		s.cfg.Logger.Warn(ctx, "Quote fetch failed", map[string]interface{}{
			"pair":      pair.String(),
			"attempt":   i + 1,
			"attempts":  attempts,
			"error":     err.Error(),
			"retriable": i+1 < attempts,
		})
	}
	return domain.PricePoint{}, lastErr
}

// runCycle performs one evaluate/decide/execute pass. Every early return
// leaves position state untouched; the next cycle starts from scratch.
func (s *TradingService) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.setState(StateEvaluating)
	defer s.setState(StateIdle)

	now := time.Now().UTC()

	latest, ok := s.cfg.Store.Latest(s.cfg.Pair)
	if !ok {
		s.cfg.Logger.Debug(ctx, "No data yet, skipping cycle", map[string]interface{}{
			"pair": s.cfg.Pair.String(),
		})
		return
	}
	if age := now.Sub(latest.Timestamp); age > s.cfg.StalenessTolerance {
		s.cfg.Logger.Warn(ctx, "Price data is stale, skipping cycle", map[string]interface{}{
			"pair":      s.cfg.Pair.String(),
			"age":       age.String(),
			"tolerance": s.cfg.StalenessTolerance.String(),
		})
		return
	}

	signal, err := s.cfg.Strategy.Evaluate(ctx, s.evalContext(now))
	if err != nil {
		s.cfg.Logger.Error(ctx, err, "Strategy evaluation failed", map[string]interface{}{
			"strategy": s.cfg.Strategy.Name(),
		})
		return
	}
	if !signal.IsActionable() {
		s.cfg.Logger.Debug(ctx, "Holding", map[string]interface{}{
			"strategy": signal.Strategy,
			"reason":   signal.Reason,
		})
		return
	}

	s.setState(StateDeciding)
	s.cfg.Logger.Info(ctx, "Signal produced", map[string]interface{}{
		"strategy":  signal.Strategy,
		"direction": string(signal.Direction),
		"strength":  signal.Strength,
		"reason":    signal.Reason,
	})

	req := ports.OrderRequest{
		ClientID:       uuid.NewString(),
		Pair:           signal.Pair(),
		Side:           signal.Direction.Side(),
		Quantity:       decimal.NewFromFloat(s.cfg.TradeAmount),
		RequestedPrice: latest.Mid(),
		Mode:           s.cfg.Mode,
	}

	order, err := s.cfg.Ledger.Submit(ctx, req)
	if err != nil {
		// Rejections here are policy, not failures: an open position or an
		// exhausted limit simply means no trade this cycle.
		if errors.Is(err, ports.ErrPositionExists) ||
			errors.Is(err, ports.ErrDailyLimitReached) ||
			errors.Is(err, ports.ErrTradeCapExceeded) ||
			errors.Is(err, ports.ErrInsufficientFunds) ||
			errors.Is(err, ports.ErrOrderRejected) {
			s.cfg.Logger.Info(ctx, "Signal not tradable", map[string]interface{}{
				"pair":   req.Pair.String(),
				"side":   string(req.Side),
				"reason": err.Error(),
			})
		} else {
			s.cfg.Logger.Error(ctx, err, "Failed to record order", map[string]interface{}{
				"pair": req.Pair.String(),
			})
		}
		return
	}

	s.executeOrder(ctx, order, req)
}

// executeOrder submits a recorded order to the gateway and reconciles the
// outcome. A gateway error resolves the order as rejected so the ledger
// never carries a pending order across cycles. Once an order has been
// recorded it must reach a terminal status even if shutdown is in progress,
// so execution and reconciliation run detached from the loop context, bounded
// only by the request timeout.
func (s *TradingService) executeOrder(ctx context.Context, order *domain.Order, req ports.OrderRequest) {
	s.setState(StateExecuting)

	detached := context.WithoutCancel(ctx)
	execCtx, cancel := context.WithTimeout(detached, s.cfg.RequestTimeout)
	outcome, err := s.cfg.Execution.SubmitOrder(execCtx, req)
	cancel()
	if err != nil {
		s.cfg.Logger.Error(ctx, err, "Order execution failed", map[string]interface{}{
			"orderID": order.ID,
			"pair":    req.Pair.String(),
		})
		outcome = &ports.OrderOutcome{
			ClientID:  req.ClientID,
			Status:    domain.OrderRejected,
			Reason:    fmt.Sprintf("execution failed: %v", err),
			Timestamp: time.Now().UTC(),
		}
	}

	reconcileCtx, cancelReconcile := context.WithTimeout(detached, s.cfg.RequestTimeout)
	defer cancelReconcile()
	pos, err := s.cfg.Ledger.Reconcile(reconcileCtx, order, outcome)
	if err != nil {
		s.cfg.Logger.Error(ctx, err, "Failed to reconcile order", map[string]interface{}{
			"orderID": order.ID,
			"status":  string(outcome.Status),
		})
		return
	}
	if pos != nil {
		s.cfg.Logger.Info(ctx, "Position updated", map[string]interface{}{
			"positionID": pos.ID,
			"pair":       pos.Pair.String(),
			"status":     string(pos.Status),
			"entryPrice": pos.EntryPrice,
			"pnl":        pos.PNL,
		})
	}
}

// evalContext exposes the store and engine to the strategy as a read-only
// snapshot anchored at the evaluation time.
func (s *TradingService) evalContext(now time.Time) ports.EvalContext {
	return &evalContext{now: now, store: s.cfg.Store, engine: s.cfg.Engine}
}

type evalContext struct {
	now    time.Time
	store  *pricestore.Store
	engine *correlation.Engine
}

func (e *evalContext) Now() time.Time { return e.now }

func (e *evalContext) Latest(pair domain.CurrencyPair) (domain.PricePoint, bool) {
	return e.store.Latest(pair)
}

func (e *evalContext) Last(pair domain.CurrencyPair, n int) []domain.PricePoint {
	return e.store.Last(pair, n)
}

func (e *evalContext) Window(pair domain.CurrencyPair, d time.Duration) []domain.PricePoint {
	return e.store.Window(pair, d)
}

func (e *evalContext) Correlation(a, b domain.CurrencyPair) (domain.Correlation, bool) {
	if e.engine == nil {
		return domain.Correlation{}, false
	}
	return e.engine.Coefficient(a, b)
}

func (e *evalContext) Divergence(a, b domain.CurrencyPair) (float64, bool) {
	if e.engine == nil {
		return 0, false
	}
	return e.engine.Divergence(a, b)
}
