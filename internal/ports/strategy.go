package ports

import (
	"context"
	"time"

	"forexTradeBot/internal/domain"
)

// EvalContext exposes read-only market state to a strategy evaluation. All
// methods are safe to call concurrently with price appends.
type EvalContext interface {
	// Now returns the evaluation timestamp.
	Now() time.Time
	// Latest returns the most recent point for a pair, if any.
	Latest(pair domain.CurrencyPair) (domain.PricePoint, bool)
	// Last returns up to n most recent points for a pair, oldest first.
	Last(pair domain.CurrencyPair, n int) []domain.PricePoint
	// Window returns the points within the trailing duration, oldest first.
	Window(pair domain.CurrencyPair, d time.Duration) []domain.PricePoint
	// Correlation returns the rolling coefficient for an unordered pair of
	// pairs. ok is false when the pair of pairs is not tracked.
	Correlation(a, b domain.CurrencyPair) (domain.Correlation, bool)
	// Divergence returns the recent return divergence between two tracked
	// pairs. ok is false when not enough aligned samples exist.
	Divergence(a, b domain.CurrencyPair) (float64, bool)
}

// Strategy defines the interface for trading strategies. Evaluate must be a
// pure function of the context apart from strategy-internal smoothing state,
// which is documented on the implementation and resettable.
type Strategy interface {
	// Name identifies the strategy in signals and logs.
	Name() string

	// RequiredDataPoints returns the minimum number of points needed per
	// pair for the strategy calculations.
	RequiredDataPoints() int

	// Evaluate produces a fresh signal from the market state. A strategy
	// that cannot evaluate safely returns a hold signal, not an error;
	// errors are reserved for broken invariants.
	Evaluate(ctx context.Context, ec EvalContext) (domain.Signal, error)
}
