package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream creates an independent generator for a named unit of work.
	// The same name and seed always yield the same sequence.
	Stream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
