// Package pricestore unifies historical and realtime quotes into one
// queryable time series per currency pair.
package pricestore

import (
	"fmt"
	"sync"
	"time"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

const defaultRetention = 72 * time.Hour

// Config holds configuration for the store.
type Config struct {
	Retention time.Duration // horizon beyond which old points are evicted
}

// Store owns one append-only price series per currency pair. Appends are
// serialized per store; reads return copies and are safe to call
// concurrently with appends.
type Store struct {
	mu        sync.RWMutex
	retention time.Duration
	series    map[domain.CurrencyPair][]domain.PricePoint
}

// New creates an empty store.
func New(cfg Config) *Store {
	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Store{
		retention: retention,
		series:    make(map[domain.CurrencyPair][]domain.PricePoint),
	}
}

// Append adds a point to its pair's series. Points whose timestamp is not
// strictly after the series' latest point are rejected with ErrStalePoint and
// leave the series unchanged; late data is never silently reordered. Points
// older than the retention horizon are dropped from the head.
func (s *Store) Append(p domain.PricePoint) error {
	if p.Pair.IsZero() {
		return fmt.Errorf("price point has no currency pair")
	}
	if p.Timestamp.IsZero() {
		return fmt.Errorf("price point for %s has no timestamp", p.Pair)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	points := s.series[p.Pair]
	if n := len(points); n > 0 && !p.Timestamp.After(points[n-1].Timestamp) {
		return fmt.Errorf("append %s at %s (latest %s): %w",
			p.Pair, p.Timestamp.Format(time.RFC3339), points[n-1].Timestamp.Format(time.RFC3339), ports.ErrStalePoint)
	}

	points = append(points, p)

	// Evict from the head once the retention window is exceeded. The series
	// is sorted, so this is O(1) amortized.
	horizon := p.Timestamp.Add(-s.retention)
	start := 0
	for start < len(points)-1 && points[start].Timestamp.Before(horizon) {
		start++
	}
	s.series[p.Pair] = points[start:]
	return nil
}

// Latest returns the most recent point for a pair, if any.
func (s *Store) Latest(pair domain.CurrencyPair) (domain.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[pair]
	if len(points) == 0 {
		return domain.PricePoint{}, false
	}
	return points[len(points)-1], true
}

// Last returns up to n most recent points for a pair, oldest first.
func (s *Store) Last(pair domain.CurrencyPair, n int) []domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[pair]
	if n <= 0 || len(points) == 0 {
		return nil
	}
	if n > len(points) {
		n = len(points)
	}
	out := make([]domain.PricePoint, n)
	copy(out, points[len(points)-n:])
	return out
}

// Window returns the points within the trailing duration measured from the
// series' latest timestamp, oldest first.
func (s *Store) Window(pair domain.CurrencyPair, d time.Duration) []domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[pair]
	if d <= 0 || len(points) == 0 {
		return nil
	}
	cutoff := points[len(points)-1].Timestamp.Add(-d)
	start := len(points)
	for start > 0 && !points[start-1].Timestamp.Before(cutoff) {
		start--
	}
	out := make([]domain.PricePoint, len(points)-start)
	copy(out, points[start:])
	return out
}

// Len returns the number of stored points for a pair.
func (s *Store) Len(pair domain.CurrencyPair) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[pair])
}

// Pairs returns the pairs with at least one stored point.
func (s *Store) Pairs() []domain.CurrencyPair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CurrencyPair, 0, len(s.series))
	for pair := range s.series {
		out = append(out, pair)
	}
	return out
}
