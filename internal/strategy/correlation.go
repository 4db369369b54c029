package strategy

import (
	"context"
	"fmt"
	"math"
	"sync"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

const defaultBreakdownDeviation = 0.3

// Correlation trades the primary pair on divergence from historically
// correlated secondary pairs: when two pairs that usually move together pull
// apart beyond the configured threshold, it expects reversion and trades the
// primary against the divergence. It also fires when a previously stable
// correlation breaks down by more than the breakdown deviation.
//
// Smoothing state: the coefficient observed for each secondary on the
// previous evaluation, used for breakdown detection. Reset clears it.
type Correlation struct {
	params Params
	logger ports.Logger

	mu         sync.Mutex
	lastCoeffs map[string]float64
}

// NewCorrelation creates a multi-currency correlation strategy.
func NewCorrelation(params Params, logger ports.Logger) (*Correlation, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for correlation strategy")
	}
	if params.Pair.IsZero() {
		return nil, fmt.Errorf("correlation strategy requires a primary currency pair")
	}
	if len(params.SecondaryPairs) == 0 {
		return nil, fmt.Errorf("correlation strategy requires at least one secondary pair")
	}
	if params.DivergenceThreshold <= 0 {
		return nil, fmt.Errorf("divergence threshold must be positive")
	}
	if params.StabilityThreshold <= 0 || params.StabilityThreshold >= 1 {
		return nil, fmt.Errorf("stability threshold must be between 0 and 1")
	}
	if params.BreakdownDeviation <= 0 {
		params.BreakdownDeviation = defaultBreakdownDeviation
	}
	return &Correlation{
		params:     params,
		logger:     logger,
		lastCoeffs: make(map[string]float64),
	}, nil
}

// Name identifies the strategy in signals and logs.
func (c *Correlation) Name() string { return "correlation" }

// RequiredDataPoints returns the minimum number of points needed per pair.
// The correlation engine enforces its own minimum sample count on top.
func (c *Correlation) RequiredDataPoints() int { return 2 }

// Reset clears the remembered coefficients.
func (c *Correlation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCoeffs = make(map[string]float64)
}

// Evaluate scans the secondaries for the largest divergence. Invalid
// coefficients (too few samples) contribute nothing; when no secondary has a
// valid coefficient the result is hold.
func (c *Correlation) Evaluate(ctx context.Context, ec ports.EvalContext) (domain.Signal, error) {
	if _, ok := ec.Latest(c.params.Pair); !ok {
		return domain.Hold(c.Name(), c.params.Pair, ec.Now(), "no data for primary pair"), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		bestPair  domain.CurrencyPair
		bestDiv   float64
		bestCoeff float64
		breakdown bool
		anyValid  bool
	)

	for _, secondary := range c.params.SecondaryPairs {
		coeff, tracked := ec.Correlation(c.params.Pair, secondary)
		if !tracked || !coeff.Valid {
			continue
		}
		anyValid = true

		prev, hadPrev := c.lastCoeffs[secondary.String()]
		c.lastCoeffs[secondary.String()] = coeff.Value
		pairBrokeDown := hadPrev &&
			math.Abs(prev) >= c.params.StabilityThreshold &&
			math.Abs(prev)-math.Abs(coeff.Value) > c.params.BreakdownDeviation

		if math.Abs(coeff.Value) < c.params.StabilityThreshold && !pairBrokeDown {
			continue
		}

		div, ok := ec.Divergence(c.params.Pair, secondary)
		if !ok {
			continue
		}
		if math.Abs(div) > math.Abs(bestDiv) {
			bestPair = secondary
			bestDiv = div
			bestCoeff = coeff.Value
			breakdown = pairBrokeDown
		}
	}

	if !anyValid {
		return domain.Hold(c.Name(), c.params.Pair, ec.Now(), "no valid correlation yet"), nil
	}
	if bestPair.IsZero() {
		return domain.Hold(c.Name(), c.params.Pair, ec.Now(), "no stable correlated pair"), nil
	}
	if math.Abs(bestDiv) <= c.params.DivergenceThreshold && !breakdown {
		return domain.Hold(c.Name(), c.params.Pair, ec.Now(), "divergence within threshold"), nil
	}

	// Positive divergence means the primary ran ahead of the secondary. With
	// positive correlation we expect reversion, so sell the stronger side;
	// with negative correlation the reading inverts.
	var direction domain.SignalDirection
	if bestCoeff > 0 {
		if bestDiv > 0 {
			direction = domain.SignalSell
		} else {
			direction = domain.SignalBuy
		}
	} else {
		if bestDiv > 0 {
			direction = domain.SignalBuy
		} else {
			direction = domain.SignalSell
		}
	}

	reason := fmt.Sprintf("%s diverged %.3f%% from %s (correlation %.2f, threshold %.2f%%)",
		c.params.Pair, bestDiv, bestPair, bestCoeff, c.params.DivergenceThreshold)
	if breakdown {
		reason = fmt.Sprintf("correlation of %s with %s broke down to %.2f; %s",
			c.params.Pair, bestPair, bestCoeff, reason)
	}

	return domain.Signal{
		Pairs:     []domain.CurrencyPair{c.params.Pair, bestPair},
		Direction: direction,
		Strength:  math.Abs(bestDiv) / c.params.DivergenceThreshold,
		Timestamp: ec.Now(),
		Strategy:  c.Name(),
		Reason:    reason,
	}, nil
}
