package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_CountsFailuresWithoutAborting(t *testing.T) {
	p := New(3, nil)
	var calls int32
	s := p.Run(context.Background(), 10, func(ctx context.Context, i int) error {
		atomic.AddInt32(&calls, 1)
		if i%4 == 0 {
			return errors.New("boom")
		}
		return nil
	})

	assert.Equal(t, int32(10), calls)
	assert.Equal(t, 10, s.Total)
	assert.Equal(t, 7, s.Completed)
	assert.Equal(t, 3, s.Failed)
	assert.Len(t, s.Failures, 3)
	for _, i := range []int{0, 4, 8} {
		assert.EqualError(t, s.Failures[i], "boom")
	}
}

func TestRun_RespectsLimit(t *testing.T) {
	p := New(2, nil)
	var inFlight, peak int32
	p.Run(context.Background(), 20, func(ctx context.Context, i int) error {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		atomic.AddInt32(&inFlight, -1)
		return nil
	})
	assert.LessOrEqual(t, peak, int32(2))
	assert.Equal(t, 2, p.Limit())
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(4, nil).Run(ctx, 5, func(ctx context.Context, i int) error { return nil })
	assert.Equal(t, 5, s.Failed)
	assert.ErrorIs(t, s.Failures[0], context.Canceled)
}

func TestMap_CollectsByIndex(t *testing.T) {
	out, s := Map(context.Background(), New(0, nil), 5, func(ctx context.Context, i int) (int, error) {
		if i == 2 {
			return 0, errors.New("skip")
		}
		return i * i, nil
	})
	assert.Equal(t, []int{0, 1, 0, 9, 16}, out)
	assert.Equal(t, 1, s.Failed)
	assert.Greater(t, New(0, nil).Limit(), 0)
}
