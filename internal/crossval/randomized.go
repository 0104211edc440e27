package crossval

import (
	"context"
	"fmt"

	"gophospho/domain/omics"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/workpool"
)

// RunFunc is one prediction protocol applied to a (possibly permuted)
// target matrix
type RunFunc func(ctx context.Context, p *Predictor, y *omics.Matrix) (*Prediction, error)

// LeaveOneOutOn binds x to the leave-one-out protocol
func LeaveOneOutOn(x *omics.Matrix) RunFunc {
	return func(ctx context.Context, p *Predictor, y *omics.Matrix) (*Prediction, error) {
		return p.LeaveOneOut(ctx, x, y)
	}
}

// ExperimentSplitOn binds x to the experiment split protocol
func ExperimentSplitOn(x *omics.Matrix) RunFunc {
	return func(ctx context.Context, p *Predictor, y *omics.Matrix) (*Prediction, error) {
		return p.ExperimentSplit(ctx, x, y)
	}
}

// Randomized is the null distribution built by RandomizedControl
type Randomized struct {
	Rows    []Row
	Summary workpool.Summary
}

// RandomizedControl re-runs a protocol Trials times on copies of y whose
// entries are permuted across both axes. Trial i draws from a stream
// seeded with Seed+i, so trials are independent and reproducible. Trials
// run on the pool; a failed trial is counted and skipped.
func (p *Predictor) RandomizedControl(ctx context.Context, c Comparison, y *omics.Matrix, run RunFunc) (*Randomized, error) {
	if p.rng == nil {
		return nil, apperrors.Configuration("randomized control needs a random stream source")
	}
	trials := p.cfg.Trials
	if trials <= 0 {
		return nil, apperrors.Configuration("randomized control needs at least one trial, got %d", trials)
	}
	inner := p.serial()
	perTrial, sum := workpool.Map(ctx, p.pool, trials, func(ctx context.Context, i int) ([]Row, error) {
		rng, err := p.rng.Stream(ctx, fmt.Sprintf("%s/trial-%d", c.Name, i), p.cfg.Seed+int64(i))
		if err != nil {
			return nil, err
		}
		pred, err := run(ctx, inner, y.Shuffle(rng))
		if err != nil {
			return nil, err
		}
		return pred.Correlations(c, i), nil
	})

	out := &Randomized{Summary: sum}
	for _, rows := range perTrial {
		out.Rows = append(out.Rows, rows...)
	}
	p.logger.Info("%s: %d/%d randomized trials completed", c.Name, sum.Completed, sum.Total)
	if sum.Completed == 0 {
		return out, apperrors.InsufficientData("every randomized trial failed")
	}
	return out, nil
}
