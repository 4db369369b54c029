// Package strategy contains the trading strategies and the factory that
// builds them from configuration.
package strategy

import (
	"fmt"

	"forexTradeBot/config"
	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

// Params holds the parameters shared by all strategy variants. Each variant
// validates only the fields it uses.
type Params struct {
	Pair             domain.CurrencyPair
	ThresholdPercent float64
	Direction        string // momentum or reversion (simple strategy)

	// Correlation strategy
	SecondaryPairs      []domain.CurrencyPair
	DivergenceThreshold float64
	StabilityThreshold  float64
	BreakdownDeviation  float64

	// Advanced strategy
	ShortMAPeriod int
	LongMAPeriod  int
	EMAPeriod     int
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64
	CombineRule   string // majority or weighted
}

// FromConfig builds strategy parameters from the application configuration.
func FromConfig(cfg *config.Config) Params {
	return Params{
		Pair:                cfg.Pair,
		ThresholdPercent:    cfg.ThresholdPercent,
		Direction:           cfg.Direction,
		SecondaryPairs:      cfg.SecondaryPairs,
		DivergenceThreshold: cfg.DivergenceThreshold,
		StabilityThreshold:  cfg.StabilityThreshold,
		ShortMAPeriod:       cfg.ShortMAPeriod,
		LongMAPeriod:        cfg.LongMAPeriod,
		EMAPeriod:           cfg.EMAPeriod,
		RSIPeriod:           cfg.RSIPeriod,
		RSIOverbought:       cfg.RSIOverbought,
		RSIOversold:         cfg.RSIOversold,
		CombineRule:         cfg.CombineRule,
	}
}

// New creates the strategy variant selected by name. The control loop
// depends only on ports.Strategy, never on a concrete variant.
func New(name string, params Params, logger ports.Logger) (ports.Strategy, error) {
	switch name {
	case config.StrategySimple:
		return NewSimple(params, logger)
	case config.StrategyAdvanced:
		return NewAdvanced(params, logger)
	case config.StrategyCorrelation:
		return NewCorrelation(params, logger)
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
