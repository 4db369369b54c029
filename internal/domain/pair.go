package domain

import (
	"fmt"
	"strings"
)

// CurrencyPair is an ordered pair of ISO 4217 currency codes. The zero value
// is not a valid pair; use ParsePair or NewPair.
type CurrencyPair struct {
	Base  string
	Quote string
}

// NewPair builds a pair from two currency codes, normalising to upper case.
func NewPair(base, quote string) (CurrencyPair, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if len(base) != 3 || len(quote) != 3 {
		return CurrencyPair{}, fmt.Errorf("currency codes must be 3 letters, got %q/%q", base, quote)
	}
	if base == quote {
		return CurrencyPair{}, fmt.Errorf("base and quote currency must differ, got %q", base)
	}
	return CurrencyPair{Base: base, Quote: quote}, nil
}

// ParsePair parses a "BASE/QUOTE" string such as "USD/JPY".
func ParsePair(s string) (CurrencyPair, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return CurrencyPair{}, fmt.Errorf("invalid currency pair %q, want BASE/QUOTE", s)
	}
	return NewPair(parts[0], parts[1])
}

// ParsePairList parses a comma-separated list of pairs ("GBP/USD,AUD/USD").
func ParsePairList(s string) ([]CurrencyPair, error) {
	var pairs []CurrencyPair
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := ParsePair(part)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// String returns the canonical "BASE/QUOTE" form.
func (p CurrencyPair) String() string {
	return p.Base + "/" + p.Quote
}

// IsZero reports whether the pair is unset.
func (p CurrencyPair) IsZero() bool {
	return p.Base == "" && p.Quote == ""
}
