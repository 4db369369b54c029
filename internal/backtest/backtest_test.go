package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/strategy"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var usdjpy = domain.CurrencyPair{Base: "USD", Quote: "JPY"}

// series builds minute-spaced points around the given mid rates with a fixed
// 0.02 spread.
func series(t *testing.T, mids ...float64) []domain.PricePoint {
	t.Helper()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, 0, len(mids))
	for i, mid := range mids {
		points = append(points, domain.PricePoint{
			Pair:      usdjpy,
			Bid:       mid - 0.01,
			Ask:       mid + 0.01,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
	}
	return points
}

func momentumStrategy(t *testing.T) *strategy.Simple {
	t.Helper()
	strat, err := strategy.NewSimple(strategy.Params{
		Pair:             usdjpy,
		ThresholdPercent: 0.5,
		Direction:        "momentum",
	}, nopLogger{})
	require.NoError(t, err)
	return strat
}

func TestNew_Validation(t *testing.T) {
	valid := Config{
		Strategy:       momentumStrategy(t),
		Pair:           usdjpy,
		TradeAmount:    1000,
		InitialBalance: 10000,
		Logger:         nopLogger{},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing strategy", func(c *Config) { c.Strategy = nil }},
		{"missing logger", func(c *Config) { c.Logger = nil }},
		{"missing pair", func(c *Config) { c.Pair = domain.CurrencyPair{} }},
		{"zero trade amount", func(c *Config) { c.TradeAmount = 0 }},
		{"zero balance", func(c *Config) { c.InitialBalance = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}

	_, err := New(valid)
	assert.NoError(t, err)
}

func TestRun_RoundTrips(t *testing.T) {
	runner, err := New(Config{
		Strategy:       momentumStrategy(t),
		Pair:           usdjpy,
		TradeAmount:    1000,
		InitialBalance: 10000,
		Logger:         nopLogger{},
	})
	require.NoError(t, err)

	// 100.00 baseline, +0.6% opens a long at ask 100.61, +1.39% repeats the
	// buy while long (ignored), -0.59% closes at bid 101.39 for +780.
	// The next two moves open a short at bid 100.69 and close it at ask
	// 101.41 for -720.
	points := series(t, 100.00, 100.60, 102.00, 101.40, 100.70, 101.40)

	report, err := runner.Run(context.Background(), points)
	require.NoError(t, err)

	require.Len(t, report.Trades, 2)
	assert.Equal(t, 1, report.Wins)
	assert.Equal(t, 1, report.Losses)
	assert.InDelta(t, 0.5, report.WinRate(), 1e-9)
	assert.False(t, report.OpenAtEnd)

	long := report.Trades[0]
	assert.Equal(t, domain.Buy, long.Direction)
	assert.InDelta(t, 100.61, long.EntryPrice, 1e-9)
	assert.InDelta(t, 101.39, long.ExitPrice, 1e-9)
	assert.InDelta(t, 780, long.PNL, 1e-6)

	short := report.Trades[1]
	assert.Equal(t, domain.Sell, short.Direction)
	assert.InDelta(t, 100.69, short.EntryPrice, 1e-9)
	assert.InDelta(t, 101.41, short.ExitPrice, 1e-9)
	assert.InDelta(t, -720, short.PNL, 1e-6)

	assert.InDelta(t, 60, report.TotalPNL, 1e-6)
	assert.InDelta(t, 10060, report.FinalBalance, 1e-6)
	// Equity peaked at 10780 after the first trade and fell to 10060.
	assert.InDelta(t, 720, report.MaxDrawdown, 1e-6)
}

func TestRun_NoSignalsNoTrades(t *testing.T) {
	runner, err := New(Config{
		Strategy:       momentumStrategy(t),
		Pair:           usdjpy,
		TradeAmount:    1000,
		InitialBalance: 10000,
		Logger:         nopLogger{},
	})
	require.NoError(t, err)

	// All moves stay inside the 0.5% threshold.
	report, err := runner.Run(context.Background(), series(t, 100.00, 100.10, 100.20, 100.15))
	require.NoError(t, err)

	assert.Empty(t, report.Trades)
	assert.Zero(t, report.TotalPNL)
	assert.InDelta(t, 10000, report.FinalBalance, 1e-9)
}

func TestRun_PositionOpenAtEnd(t *testing.T) {
	runner, err := New(Config{
		Strategy:       momentumStrategy(t),
		Pair:           usdjpy,
		TradeAmount:    1000,
		InitialBalance: 10000,
		Logger:         nopLogger{},
	})
	require.NoError(t, err)

	report, err := runner.Run(context.Background(), series(t, 100.00, 100.60))
	require.NoError(t, err)

	assert.Empty(t, report.Trades)
	assert.True(t, report.OpenAtEnd)
}

func TestRun_EmptySeries(t *testing.T) {
	runner, err := New(Config{
		Strategy:       momentumStrategy(t),
		Pair:           usdjpy,
		TradeAmount:    1000,
		InitialBalance: 10000,
		Logger:         nopLogger{},
	})
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRun_OutOfOrderSeries(t *testing.T) {
	runner, err := New(Config{
		Strategy:       momentumStrategy(t),
		Pair:           usdjpy,
		TradeAmount:    1000,
		InitialBalance: 10000,
		Logger:         nopLogger{},
	})
	require.NoError(t, err)

	points := series(t, 100.00, 100.60)
	points[0], points[1] = points[1], points[0]

	_, err = runner.Run(context.Background(), points)
	assert.Error(t, err)
}