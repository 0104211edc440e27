package crossval

import (
	"context"
	"math"

	"gophospho/domain/core"
	"gophospho/domain/omics"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/workpool"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// minTrain is the smallest training set a fold may use
const minTrain = 2

// LeaveOneOut predicts every target for each shared sample from a model
// fitted on the other samples. x is features x samples (missing values
// read as 0); y is targets x samples. Fold coefficients are summarized by
// their median.
func (p *Predictor) LeaveOneOut(ctx context.Context, x, y *omics.Matrix) (*Prediction, error) {
	samples := core.Intersect(x.Cols(), y.Cols())
	if len(samples) < minTrain+1 {
		return nil, apperrors.InsufficientData("leave-one-out needs at least %d shared samples, got %d", minTrain+1, len(samples))
	}
	features := x.Rows()
	targets := y.Rows()
	design, err := x.Design(features, samples, 0)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInsufficientData, err)
	}
	targetVals := make([][]float64, len(targets))
	for i, t := range targets {
		targetVals[i] = observed(y, t, samples)
	}

	var results []targetResult
	var sum workpool.Summary
	switch p.cfg.Protocol {
	case ProtocolMulti:
		results, sum = p.looMulti(ctx, design, targetVals, samples, features)
	default:
		results, sum = workpool.Map(ctx, p.pool, len(targets), func(ctx context.Context, i int) (targetResult, error) {
			return p.looTarget(ctx, design, targetVals[i], finiteIndices(targetVals[i]), samples, features)
		})
	}
	return p.assemble(targets, samples, features, results, sum, y, median)
}

// looTarget runs every fold for one target over the samples in idx
func (p *Predictor) looTarget(ctx context.Context, design *mat.Dense, y []float64, idx []int,
	samples []core.SampleID, features []core.FeatureID) (targetResult, error) {

	if len(idx) < minTrain+1 {
		return targetResult{}, apperrors.InsufficientData("only %d measured samples", len(idx))
	}
	res := targetResult{
		pred:  make(map[core.SampleID]float64, len(idx)),
		coefs: make(map[core.FeatureID][]float64, len(features)),
	}
	for _, held := range idx {
		if err := ctx.Err(); err != nil {
			return targetResult{}, err
		}
		train := without(idx, held)
		fit, err := p.reg.Fit(subRows(design, train), pick(y, train))
		if err != nil {
			return targetResult{}, err
		}
		res.pred[samples[held]] = fit.Predict(design.RawRowView(held))
		for j, f := range features {
			res.coefs[f] = append(res.coefs[f], fit.Coef[j])
		}
	}
	return res, nil
}

// looMulti keeps only samples where every target is measured and runs
// the folds over that shared set
func (p *Predictor) looMulti(ctx context.Context, design *mat.Dense, targetVals [][]float64,
	samples []core.SampleID, features []core.FeatureID) ([]targetResult, workpool.Summary) {

	var shared []int
	for j := range samples {
		complete := true
		for _, v := range targetVals {
			if math.IsNaN(v[j]) || math.IsInf(v[j], 0) {
				complete = false
				break
			}
		}
		if complete {
			shared = append(shared, j)
		}
	}
	return workpool.Map(ctx, p.pool, len(targetVals), func(ctx context.Context, i int) (targetResult, error) {
		return p.looTarget(ctx, design, targetVals[i], shared, samples, features)
	})
}

func median(v []float64) float64 {
	m, err := stats.Median(v)
	if err != nil {
		return 0
	}
	return m
}

func mean(v []float64) float64 {
	m, err := stats.Mean(v)
	if err != nil {
		return 0
	}
	return m
}
