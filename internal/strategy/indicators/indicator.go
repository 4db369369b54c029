package indicators

import (
	"context"

	"forexTradeBot/internal/domain"
)

// Indicator represents a technical indicator computed from a price series.
type Indicator interface {
	// Calculate computes the indicator value for the given points (oldest first).
	Calculate(ctx context.Context, points []domain.PricePoint) (float64, error)

	// RequiredDataPoints returns the minimum number of points needed for calculation.
	RequiredDataPoints() int

	// Name returns the name of the indicator.
	Name() string
}

// IndicatorConfig holds common configuration for indicators.
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators.
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of points needed for calculation.
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// mids extracts mid prices from a point slice.
func mids(points []domain.PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Mid()
	}
	return out
}
