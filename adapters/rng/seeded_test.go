package rng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamIsDeterministic(t *testing.T) {
	a := NewSeededAdapter()
	r1, err := a.Stream(context.Background(), "trial-0", 42)
	require.NoError(t, err)
	r2, err := a.Stream(context.Background(), "other", 42)
	require.NoError(t, err)
	r3, err := a.Stream(context.Background(), "trial-1", 43)
	require.NoError(t, err)

	x1, x2, x3 := r1.Int63(), r2.Int63(), r3.Int63()
	assert.Equal(t, x1, x2)
	assert.NotEqual(t, x1, x3)
}

func TestStreamHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSeededAdapter().Stream(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
