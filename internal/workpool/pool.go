// Package workpool fans independent units of work (folds, randomized
// trials) out over a bounded number of goroutines.
package workpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"gophospho/internal"

	"golang.org/x/sync/errgroup"
)

// Summary accounts for every unit submitted to a run
type Summary struct {
	Total     int
	Completed int
	Failed    int
	// Failures maps a unit index to its error
	Failures map[int]error
}

// Pool runs units with at most Limit in flight
type Pool struct {
	limit  int
	logger *internal.Logger
}

// New returns a pool; limit <= 0 uses GOMAXPROCS
func New(limit int, logger *internal.Logger) *Pool {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Pool{limit: limit, logger: internal.OrNop(logger).Named("workpool")}
}

// Limit returns the concurrency bound
func (p *Pool) Limit() int { return p.limit }

// Run calls fn for i in [0, n). A failing unit is recorded and does not
// cancel its siblings; once ctx is done, units not yet started fail with
// the context error.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) Summary {
	var (
		mu       sync.Mutex
		failures = make(map[int]error)
		done     int32
	)
	g := new(errgroup.Group)
	g.SetLimit(p.limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			err := ctx.Err()
			if err == nil {
				err = fn(ctx, i)
			}
			if err != nil {
				mu.Lock()
				failures[i] = err
				mu.Unlock()
				p.logger.Debug("unit %d failed: %v", i, err)
				return nil
			}
			atomic.AddInt32(&done, 1)
			return nil
		})
	}
	_ = g.Wait()

	s := Summary{Total: n, Completed: int(done), Failed: len(failures), Failures: failures}
	if s.Failed > 0 {
		p.logger.Warn("%d of %d units failed", s.Failed, s.Total)
	}
	return s
}

// Map runs fn over [0, n) and collects the results by index. Failed units
// leave the zero value in place; Summary says which.
func Map[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, Summary) {
	out := make([]T, n)
	s := p.Run(ctx, n, func(ctx context.Context, i int) error {
		v, err := fn(ctx, i)
		if err != nil {
			return err
		}
		out[i] = v
		return nil
	})
	return out, s
}
