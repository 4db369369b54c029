package strategy

import (
	"context"
	"fmt"
	"math"
	"sync"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

// Simple fires when the percent change between the current rate and the rate
// observed on the previous evaluation crosses the configured threshold.
//
// Smoothing state: the previously observed rate. It is the only state kept
// between evaluations and Reset clears it.
type Simple struct {
	params Params
	logger ports.Logger

	mu       sync.Mutex
	prevRate float64
	hasPrev  bool
}

// NewSimple creates a simple single-pair strategy.
func NewSimple(params Params, logger ports.Logger) (*Simple, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for simple strategy")
	}
	if params.Pair.IsZero() {
		return nil, fmt.Errorf("simple strategy requires a currency pair")
	}
	if params.ThresholdPercent <= 0 {
		return nil, fmt.Errorf("simple strategy threshold must be positive")
	}
	if params.Direction != "momentum" && params.Direction != "reversion" {
		return nil, fmt.Errorf("simple strategy direction must be momentum or reversion, got %q", params.Direction)
	}
	return &Simple{params: params, logger: logger}, nil
}

// Name identifies the strategy in signals and logs.
func (s *Simple) Name() string { return "simple" }

// RequiredDataPoints returns the minimum number of points needed per pair.
func (s *Simple) RequiredDataPoints() int { return 1 }

// Reset clears the remembered previous rate.
func (s *Simple) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prevRate = 0
	s.hasPrev = false
}

// Evaluate compares the current rate with the previous evaluation's rate.
// A change exactly at the threshold resolves to hold so boundary noise never
// flip-flops the signal.
func (s *Simple) Evaluate(ctx context.Context, ec ports.EvalContext) (domain.Signal, error) {
	latest, ok := ec.Latest(s.params.Pair)
	if !ok {
		return domain.Hold(s.Name(), s.params.Pair, ec.Now(), "no data for pair"), nil
	}
	current := latest.Mid()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPrev {
		s.prevRate = current
		s.hasPrev = true
		s.logger.Info(ctx, "First observation recorded", map[string]interface{}{
			"pair": s.params.Pair.String(),
			"rate": current,
		})
		return domain.Hold(s.Name(), s.params.Pair, ec.Now(), "first observation"), nil
	}

	change := (current - s.prevRate) / s.prevRate * 100
	prev := s.prevRate
	s.prevRate = current

	s.logger.Debug(ctx, "Rate change evaluated", map[string]interface{}{
		"pair":      s.params.Pair.String(),
		"from":      prev,
		"to":        current,
		"change":    change,
		"threshold": s.params.ThresholdPercent,
	})

	if math.Abs(change) <= s.params.ThresholdPercent {
		return domain.Hold(s.Name(), s.params.Pair, ec.Now(), "change within threshold"), nil
	}

	direction := domain.SignalBuy
	if change > 0 {
		if s.params.Direction == "reversion" {
			direction = domain.SignalSell
		}
	} else {
		if s.params.Direction == "momentum" {
			direction = domain.SignalSell
		}
	}

	return domain.Signal{
		Pairs:     []domain.CurrencyPair{s.params.Pair},
		Direction: direction,
		Strength:  math.Abs(change) / s.params.ThresholdPercent,
		Timestamp: ec.Now(),
		Strategy:  s.Name(),
		Reason:    fmt.Sprintf("%s moved %.3f%% from %.5f to %.5f (threshold %.2f%%)", s.params.Pair, change, prev, current, s.params.ThresholdPercent),
	}, nil
}
