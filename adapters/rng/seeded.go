// Package rng provides the seeded random streams used by randomized trials
package rng

import (
	"context"
	"math/rand"
)

// SeededAdapter implements ports.RNGPort with one math/rand source per stream
type SeededAdapter struct{}

// NewSeededAdapter returns the adapter
func NewSeededAdapter() *SeededAdapter { return &SeededAdapter{} }

// Stream returns a generator seeded with seed. The name only labels the
// stream; two streams with the same seed are identical.
func (a *SeededAdapter) Stream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(seed)), nil
}
