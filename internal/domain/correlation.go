package domain

import "time"

// Correlation is a rolling Pearson correlation between the returns of two
// currency pairs, as of a specific timestamp. The key (A, B) is unordered.
// A coefficient with too few samples is flagged invalid rather than being
// defaulted to zero.
type Correlation struct {
	PairA   CurrencyPair
	PairB   CurrencyPair
	Value   float64       // Pearson coefficient in [-1, 1]; meaningless unless Valid
	Samples int           // Number of aligned return samples in the window
	Window  time.Duration // Rolling window the coefficient was computed over
	AsOf    time.Time     // Timestamp of the newest sample included
	Valid   bool          // False until the minimum sample count is reached
}
