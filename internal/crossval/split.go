package crossval

import (
	"context"
	"math"
	"sort"

	"gophospho/domain/core"
	"gophospho/domain/omics"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/linmodel"
	"gophospho/internal/workpool"

	"gonum.org/v1/gonum/mat"
)

// Experiments groups sample indices by experiment prefix, in prefix order
func Experiments(samples []core.SampleID) ([]string, map[string][]int) {
	groups := make(map[string][]int)
	for i, s := range samples {
		e := s.Experiment()
		groups[e] = append(groups[e], i)
	}
	names := make([]string, 0, len(groups))
	for e := range groups {
		names = append(names, e)
	}
	sort.Strings(names)
	return names, groups
}

// ExperimentSplit holds out one experiment at a time: each experiment's
// samples are predicted by a model trained on every other experiment.
// Coefficients are averaged over the splits in which a feature was used.
func (p *Predictor) ExperimentSplit(ctx context.Context, x, y *omics.Matrix) (*Prediction, error) {
	samples := core.Intersect(x.Cols(), y.Cols())
	names, groups := Experiments(samples)
	if len(names) < 2 {
		return nil, apperrors.InsufficientData("experiment split needs at least 2 experiments, got %d", len(names))
	}
	features := x.Rows()
	targets := y.Rows()
	design, err := x.Design(features, samples, 0)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInsufficientData, err)
	}

	results, sum := workpool.Map(ctx, p.pool, len(targets), func(ctx context.Context, i int) (targetResult, error) {
		yv := observed(y, targets[i], samples)
		res := targetResult{
			pred:  make(map[core.SampleID]float64),
			coefs: make(map[core.FeatureID][]float64),
		}
		for _, e := range names {
			if err := ctx.Err(); err != nil {
				return targetResult{}, err
			}
			test := groups[e]
			inTest := make(map[int]bool, len(test))
			for _, j := range test {
				inTest[j] = true
			}
			var train []int
			for _, j := range finiteIndices(yv) {
				if !inTest[j] {
					train = append(train, j)
				}
			}
			if len(train) < minTrain {
				continue
			}
			xTrain, yTrain := subRows(design, train), pick(yv, train)
			cols := p.selectFeatures(xTrain, yTrain)
			fit, err := p.reg.Fit(subCols(xTrain, cols), yTrain)
			if err != nil {
				if apperrors.IsRecoverable(err) {
					continue
				}
				return targetResult{}, err
			}
			for _, j := range test {
				row := design.RawRowView(j)
				res.pred[samples[j]] = fit.Predict(pick(row, cols))
			}
			for k, c := range cols {
				res.coefs[features[c]] = append(res.coefs[features[c]], fit.Coef[k])
			}
		}
		if len(res.pred) == 0 {
			return targetResult{}, apperrors.InsufficientData("no split had enough training samples")
		}
		return res, nil
	})
	return p.assemble(targets, samples, features, results, sum, y, mean)
}

// selectFeatures returns the column indices to fit: all of them, or the
// SelectK columns with the largest absolute correlation with y
func (p *Predictor) selectFeatures(x *mat.Dense, y []float64) []int {
	_, c := x.Dims()
	idx := make([]int, c)
	for j := range idx {
		idx[j] = j
	}
	if p.cfg.SelectK <= 0 || p.cfg.SelectK >= c {
		return idx
	}
	score := make([]float64, c)
	for j := range score {
		r := linmodel.Pearson(mat.Col(nil, j, x), y)
		if math.IsNaN(r) {
			score[j] = -1
		} else {
			score[j] = math.Abs(r)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return score[idx[a]] > score[idx[b]] })
	top := append([]int(nil), idx[:p.cfg.SelectK]...)
	sort.Ints(top)
	return top
}

// CrossDataset trains on dataset A and predicts dataset B. Features and
// targets are the ones both datasets share; test samples that also appear
// in training are dropped.
func (p *Predictor) CrossDataset(ctx context.Context, xTrain, yTrain, xTest, yTest *omics.Matrix) (*Prediction, error) {
	features := core.Intersect(xTrain.Rows(), xTest.Rows())
	targets := core.Intersect(yTrain.Rows(), yTest.Rows())
	trainSamples := core.Intersect(xTrain.Cols(), yTrain.Cols())
	inTrain := core.NewSet(trainSamples...)
	var testSamples []core.SampleID
	for _, s := range core.Intersect(xTest.Cols(), yTest.Cols()) {
		if !inTrain.Has(s) {
			testSamples = append(testSamples, s)
		}
	}
	if len(features) == 0 || len(targets) == 0 {
		return nil, apperrors.InsufficientData("datasets share %d features and %d targets", len(features), len(targets))
	}
	if len(trainSamples) < minTrain || len(testSamples) == 0 {
		return nil, apperrors.InsufficientData("%d training and %d test samples", len(trainSamples), len(testSamples))
	}

	trainDesign, err := xTrain.Design(features, trainSamples, 0)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInsufficientData, err)
	}
	testDesign, err := xTest.Design(features, testSamples, 0)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInsufficientData, err)
	}

	results, sum := workpool.Map(ctx, p.pool, len(targets), func(ctx context.Context, i int) (targetResult, error) {
		yv := observed(yTrain, targets[i], trainSamples)
		train := finiteIndices(yv)
		if len(train) < minTrain {
			return targetResult{}, apperrors.InsufficientData("only %d measured training samples", len(train))
		}
		fit, err := p.reg.Fit(subRows(trainDesign, train), pick(yv, train))
		if err != nil {
			return targetResult{}, err
		}
		res := targetResult{
			pred:  make(map[core.SampleID]float64, len(testSamples)),
			coefs: make(map[core.FeatureID][]float64, len(features)),
		}
		for j, s := range testSamples {
			res.pred[s] = fit.Predict(testDesign.RawRowView(j))
		}
		for j, f := range features {
			res.coefs[f] = []float64{fit.Coef[j]}
		}
		return res, nil
	})

	yTestSub, err := yTest.Subset(targets, testSamples)
	if err != nil {
		return nil, apperrors.Wrap(err, "test targets")
	}
	return p.assemble(targets, testSamples, features, results, sum, yTestSub, mean)
}
