// Package rng provides the randomness abstraction and the single weighted-choice
// primitive used by every probabilistic roll in the engine (rarity tables, event
// tables, personality assignment, name draws). Call sites parameterize it with a
// candidate-to-weight mapping instead of re-implementing cumulative-roll loops.
package rng

import (
	"math/rand"
	"time"
)

// Source is the randomness provider for all engine rolls. The engine performs
// no internal locking; hosts that share a Source across goroutines must supply
// a concurrency-safe implementation.
type Source interface {
	// Intn returns a non-negative random int in [0, n). n must be > 0.
	Intn(n int) int
	// Float64 returns a random float64 in [0.0, 1.0).
	Float64() float64
}

// New returns a Source seeded with the given seed. Fixed seeds make round
// resolution replayable.
func New(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// NewFromClock returns a Source seeded from the wall clock.
func NewFromClock() Source {
	return New(time.Now().UnixNano())
}

// Weighted pairs a candidate with its selection weight. Zero or negative
// weights exclude the candidate from selection.
type Weighted[T any] struct {
	Item   T
	Weight int
}

// Choose picks one candidate with probability proportional to its weight.
// Returns false when no candidate carries positive weight.
func Choose[T any](src Source, candidates []Weighted[T]) (T, bool) {
	total := 0
	for _, c := range candidates {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	var zero T
	if total <= 0 {
		return zero, false
	}

	roll := src.Intn(total)
	for _, c := range candidates {
		if c.Weight <= 0 {
			continue
		}
		if roll < c.Weight {
			return c.Item, true
		}
		roll -= c.Weight
	}
	return zero, false // unreachable with positive total
}

// Pick returns a uniformly chosen element. Returns false on an empty slice.
func Pick[T any](src Source, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[src.Intn(len(items))], true
}

// Between returns a uniform float64 in [lo, hi).
func Between(src Source, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + src.Float64()*(hi-lo)
}

// IntBetween returns a uniform int in [lo, hi] inclusive.
func IntBetween(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// Chance reports true with probability p (clamped to [0, 1]).
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return src.Float64() < p
}

// Shuffle permutes items in place.
func Shuffle[T any](src Source, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
