// Package correlation maintains rolling correlation estimates between
// currency pairs for the correlation strategy.
package correlation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

const defaultDivergenceLookback = 5

// Config holds parameters for the correlation engine.
type Config struct {
	Window             time.Duration // rolling window over aligned returns
	MinSamples         int           // samples required before a coefficient is valid
	DivergenceLookback int           // samples summed for the divergence figure (default 5)
}

// Engine maintains, per unordered pair of currency pairs, a rolling-window
// Pearson correlation over aligned percent returns. Updates are incremental:
// running sums are adjusted as samples enter and age out of the window, so a
// tick never costs a full recomputation.
//
// Alignment: Observe is called once per fetch tick with the latest known rate
// of every pair as of that tick (a nearest-prior-point join onto the tick
// grid). A pair with no usable rate for a tick contributes no sample, so
// unaligned series never mix mismatched observations.
type Engine struct {
	cfg    Config
	logger ports.Logger

	mu     sync.Mutex
	tracks map[trackKey]*track
}

// trackKey is an unordered key: the lexically smaller pair string comes first.
type trackKey struct {
	a, b string
}

func keyFor(a, b domain.CurrencyPair) trackKey {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return trackKey{a: as, b: bs}
}

type sample struct {
	ts   time.Time
	x, y float64 // percent returns of pairA and pairB
}

type track struct {
	pairA, pairB domain.CurrencyPair // pairA.String() < pairB.String()

	lastA, lastB float64 // last observed rates, for return computation
	seeded       bool

	samples                         []sample
	sumX, sumY, sumXX, sumYY, sumXY float64
	asOf                            time.Time
}

// New creates an engine. MinSamples must exceed 1 so the variance terms are
// defined.
func New(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for correlation engine")
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("correlation window must be positive")
	}
	if cfg.MinSamples <= 1 {
		return nil, fmt.Errorf("minimum sample count must be greater than 1")
	}
	if cfg.DivergenceLookback <= 0 {
		cfg.DivergenceLookback = defaultDivergenceLookback
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		tracks: make(map[trackKey]*track),
	}, nil
}

// Track registers an unordered pair of pairs for joint tracking. Tracking the
// same combination twice is a no-op.
func (e *Engine) Track(a, b domain.CurrencyPair) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := keyFor(a, b)
	if _, ok := e.tracks[key]; ok {
		return
	}
	pairA, pairB := a, b
	if pairA.String() > pairB.String() {
		pairA, pairB = pairB, pairA
	}
	e.tracks[key] = &track{pairA: pairA, pairB: pairB}
}

// Observe feeds one aligned tick of rates into every tracked combination.
// rates maps each pair to its latest usable rate as of ts; pairs missing
// from the map contribute no sample this tick. Ticks at or before a track's
// last observation are ignored.
func (e *Engine) Observe(ctx context.Context, ts time.Time, rates map[domain.CurrencyPair]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, tr := range e.tracks {
		rateA, okA := rates[tr.pairA]
		rateB, okB := rates[tr.pairB]
		if !okA || !okB || rateA <= 0 || rateB <= 0 {
			continue
		}
		if !tr.asOf.IsZero() && !ts.After(tr.asOf) {
			continue
		}
		if !tr.seeded {
			tr.lastA, tr.lastB = rateA, rateB
			tr.seeded = true
			tr.asOf = ts
			continue
		}

		x := (rateA - tr.lastA) / tr.lastA * 100
		y := (rateB - tr.lastB) / tr.lastB * 100
		tr.lastA, tr.lastB = rateA, rateB
		tr.add(sample{ts: ts, x: x, y: y})
		tr.evict(ts.Add(-e.cfg.Window))
		tr.asOf = ts

		e.logger.Debug(ctx, "Correlation sample recorded", map[string]interface{}{
			"pairA":   tr.pairA.String(),
			"pairB":   tr.pairB.String(),
			"samples": len(tr.samples),
		})
	}
}

func (t *track) add(s sample) {
	t.samples = append(t.samples, s)
	t.sumX += s.x
	t.sumY += s.y
	t.sumXX += s.x * s.x
	t.sumYY += s.y * s.y
	t.sumXY += s.x * s.y
}

// evict subtracts the contribution of samples that aged out of the window.
func (t *track) evict(cutoff time.Time) {
	i := 0
	for i < len(t.samples) && t.samples[i].ts.Before(cutoff) {
		s := t.samples[i]
		t.sumX -= s.x
		t.sumY -= s.y
		t.sumXX -= s.x * s.x
		t.sumYY -= s.y * s.y
		t.sumXY -= s.x * s.y
		i++
	}
	if i > 0 {
		t.samples = t.samples[i:]
	}
}

// Coefficient returns the rolling Pearson coefficient for an unordered pair
// of pairs. ok is false when the combination is not tracked. A coefficient
// with fewer than MinSamples samples, or with degenerate variance, is
// returned with Valid=false rather than a defaulted value.
func (e *Engine) Coefficient(a, b domain.CurrencyPair) (domain.Correlation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tr, ok := e.tracks[keyFor(a, b)]
	if !ok {
		return domain.Correlation{}, false
	}

	n := float64(len(tr.samples))
	coeff := domain.Correlation{
		PairA:   tr.pairA,
		PairB:   tr.pairB,
		Samples: len(tr.samples),
		Window:  e.cfg.Window,
		AsOf:    tr.asOf,
	}
	if len(tr.samples) < e.cfg.MinSamples {
		return coeff, true
	}

	varX := n*tr.sumXX - tr.sumX*tr.sumX
	varY := n*tr.sumYY - tr.sumY*tr.sumY
	if varX <= 0 || varY <= 0 {
		return coeff, true
	}

	r := (n*tr.sumXY - tr.sumX*tr.sumY) / math.Sqrt(varX*varY)
	// Clamp accumulated float error.
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	coeff.Value = r
	coeff.Valid = true
	return coeff, true
}

// Divergence returns the difference between the two pairs' cumulative percent
// returns over the divergence lookback. ok is false until the lookback is
// covered. A positive value means pairA ran ahead of pairB.
func (e *Engine) Divergence(a, b domain.CurrencyPair) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tr, ok := e.tracks[keyFor(a, b)]
	if !ok || len(tr.samples) < e.cfg.DivergenceLookback {
		return 0, false
	}

	var dx, dy float64
	for _, s := range tr.samples[len(tr.samples)-e.cfg.DivergenceLookback:] {
		dx += s.x
		dy += s.y
	}
	div := dx - dy
	// Observed order is canonical (pairA < pairB); flip for the caller's order.
	if a.String() > b.String() {
		div = -div
	}
	return div, true
}
