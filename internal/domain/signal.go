package domain

import "time"

// Signal is a strategy's recommendation for a single evaluation cycle.
// Signals are produced fresh on every evaluation and never mutated.
type Signal struct {
	Pairs     []CurrencyPair  // pair(s) involved; first entry is the traded pair
	Direction SignalDirection // buy, sell or hold
	Strength  float64         // observed magnitude relative to the firing threshold
	Timestamp time.Time       // when the signal was produced
	Strategy  string          // identifier of the originating strategy
	Reason    string          // human-readable explanation for the audit trail
}

// Hold returns a hold signal for the given strategy and pair.
func Hold(strategy string, pair CurrencyPair, ts time.Time, reason string) Signal {
	return Signal{
		Pairs:     []CurrencyPair{pair},
		Direction: SignalHold,
		Timestamp: ts,
		Strategy:  strategy,
		Reason:    reason,
	}
}

// IsActionable reports whether the signal calls for an order.
func (s Signal) IsActionable() bool {
	return s.Direction == SignalBuy || s.Direction == SignalSell
}

// Pair returns the traded pair.
func (s Signal) Pair() CurrencyPair {
	if len(s.Pairs) == 0 {
		return CurrencyPair{}
	}
	return s.Pairs[0]
}
