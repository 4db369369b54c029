// Package backtest replays a recorded price series through a strategy and
// simulates fills the same way the paper gateway does, producing a
// performance report.
package backtest

import (
	"context"
	"fmt"
	"time"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
	"forexTradeBot/internal/pricestore"
)

// Config holds the backtest inputs.
type Config struct {
	Strategy       ports.Strategy
	Pair           domain.CurrencyPair
	TradeAmount    float64 // base currency units per trade
	InitialBalance float64 // quote currency
	Logger         ports.Logger
	// Retention bounds the replay store; zero keeps the whole series.
	Retention time.Duration
}

// Trade is one completed round trip.
type Trade struct {
	Direction  domain.OrderSide
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	PNL        float64
}

// Report summarises a backtest run.
type Report struct {
	Trades       []Trade
	Wins         int
	Losses       int
	TotalPNL     float64
	MaxDrawdown  float64 // largest peak-to-trough equity drop, in quote units
	FinalBalance float64
	OpenAtEnd    bool // a position was still open when the series ended
}

// WinRate returns the fraction of completed trades that were profitable.
func (r *Report) WinRate() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	return float64(r.Wins) / float64(len(r.Trades))
}

// Runner replays price points through a strategy.
type Runner struct {
	cfg Config
}

// New creates a backtest runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("strategy is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Pair.IsZero() {
		return nil, fmt.Errorf("currency pair is required")
	}
	if cfg.TradeAmount <= 0 {
		return nil, fmt.Errorf("trade amount must be positive")
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive")
	}
	return &Runner{cfg: cfg}, nil
}

// Run replays the series in order. Each point is appended to a fresh store,
// the strategy is evaluated at the point's timestamp, and signals fill
// immediately at that point's bid or ask. An opposite signal closes the open
// simulated position; a same-side signal while one is open is ignored, the
// same rule the live ledger applies.
func (r *Runner) Run(ctx context.Context, points []domain.PricePoint) (*Report, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no price points to replay")
	}

	retention := r.cfg.Retention
	if retention <= 0 {
		// Keep everything: size the window to the whole series.
		retention = points[len(points)-1].Timestamp.Sub(points[0].Timestamp) + time.Hour
	}
	store := pricestore.New(pricestore.Config{Retention: retention})

	report := &Report{FinalBalance: r.cfg.InitialBalance}
	var open *Trade

	equity := r.cfg.InitialBalance
	peak := equity

	for _, point := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := store.Append(point); err != nil {
			return nil, fmt.Errorf("series is not in timestamp order: %w", err)
		}

		signal, err := r.cfg.Strategy.Evaluate(ctx, &replayContext{now: point.Timestamp, store: store})
		if err != nil {
			return nil, fmt.Errorf("strategy failed at %s: %w", point.Timestamp, err)
		}
		if !signal.IsActionable() {
			continue
		}
		side := signal.Direction.Side()

		switch {
		case open == nil:
			entry := point.Ask
			if side == domain.Sell {
				entry = point.Bid
			}
			open = &Trade{
				Direction:  side,
				EntryTime:  point.Timestamp,
				EntryPrice: entry,
			}
		case side == open.Direction.Opposite():
			exit := point.Ask
			if side == domain.Sell {
				exit = point.Bid
			}
			open.ExitTime = point.Timestamp
			open.ExitPrice = exit
			if open.Direction == domain.Buy {
				open.PNL = (exit - open.EntryPrice) * r.cfg.TradeAmount
			} else {
				open.PNL = (open.EntryPrice - exit) * r.cfg.TradeAmount
			}

			report.Trades = append(report.Trades, *open)
			report.TotalPNL += open.PNL
			if open.PNL > 0 {
				report.Wins++
			} else {
				report.Losses++
			}

			equity += open.PNL
			if equity > peak {
				peak = equity
			}
			if dd := peak - equity; dd > report.MaxDrawdown {
				report.MaxDrawdown = dd
			}
			open = nil
		}
		// A same-side signal while a position is open changes nothing.
	}

	report.OpenAtEnd = open != nil
	report.FinalBalance = r.cfg.InitialBalance + report.TotalPNL

	r.cfg.Logger.Info(ctx, "Backtest finished", map[string]interface{}{
		"pair":         r.cfg.Pair.String(),
		"points":       len(points),
		"trades":       len(report.Trades),
		"winRate":      report.WinRate(),
		"totalPNL":     report.TotalPNL,
		"maxDrawdown":  report.MaxDrawdown,
		"finalBalance": report.FinalBalance,
	})
	return report, nil
}

// replayContext serves the stored series to the strategy as of the replay
// cursor. Correlation lookups report not-tracked; multi-pair replays are not
// supported.
type replayContext struct {
	now   time.Time
	store *pricestore.Store
}

func (c *replayContext) Now() time.Time { return c.now }

func (c *replayContext) Latest(pair domain.CurrencyPair) (domain.PricePoint, bool) {
	return c.store.Latest(pair)
}

func (c *replayContext) Last(pair domain.CurrencyPair, n int) []domain.PricePoint {
	return c.store.Last(pair, n)
}

func (c *replayContext) Window(pair domain.CurrencyPair, d time.Duration) []domain.PricePoint {
	return c.store.Window(pair, d)
}

func (c *replayContext) Correlation(a, b domain.CurrencyPair) (domain.Correlation, bool) {
	return domain.Correlation{}, false
}

func (c *replayContext) Divergence(a, b domain.CurrencyPair) (float64, bool) {
	return 0, false
}
