// Package growth removes growth-rate confounding from omics matrices using
// principal components as the latent factor model.
package growth

import (
	"context"
	"math"
	"sort"

	"gophospho/domain/core"
	"gophospho/domain/omics"
	"gophospho/internal"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/linmodel"
	"gophospho/ports"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// relVarTol drops components whose variance is numerically zero
const relVarTol = 1e-9

// PCARegressor implements ports.GrowthRegressorPort
type PCARegressor struct {
	components      int
	minCompleteness float64
	logger          *internal.Logger
}

var _ ports.GrowthRegressorPort = (*PCARegressor)(nil)

// NewPCARegressor keeps at most components factors; 0 keeps all of them.
// Features enter the factor model when more than minCompleteness of the
// growth samples are measured; their gaps are filled with 0.
func NewPCARegressor(components int, minCompleteness float64, logger *internal.Logger) (*PCARegressor, error) {
	if components < 0 {
		return nil, apperrors.Configuration("growth components must be >= 0, got %d", components)
	}
	if minCompleteness < 0 || minCompleteness >= 1 {
		return nil, apperrors.Configuration("growth completeness must be in [0, 1), got %g", minCompleteness)
	}
	return &PCARegressor{
		components:      components,
		minCompleteness: minCompleteness,
		logger:          internal.OrNop(logger).Named("growth"),
	}, nil
}

// Fit projects the samples with a growth rate onto the principal
// components of the sufficiently measured features and correlates every
// component with growth.
func (p *PCARegressor) Fit(ctx context.Context, data *omics.Matrix, growth map[core.SampleID]float64) (*ports.GrowthFactors, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var samples []core.SampleID
	for _, s := range data.Cols() {
		if g, ok := growth[s]; ok && !math.IsNaN(g) {
			samples = append(samples, s)
		}
	}
	if len(samples) < 3 {
		return nil, apperrors.InsufficientData("growth factors need 3 samples with a growth rate, got %d", len(samples))
	}

	var features []core.FeatureID
	for _, f := range data.Rows() {
		if completeness(data, f, samples) > p.minCompleteness {
			features = append(features, f)
		}
	}
	if len(features) < 2 {
		return nil, apperrors.InsufficientData("growth factors need 2 features measured in more than %.0f%% of samples, got %d",
			100*p.minCompleteness, len(features))
	}

	x, err := data.Design(features, samples, 0)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInsufficientData, err)
	}
	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, apperrors.DegenerateMatrix("principal components did not converge")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	keep := 0
	for keep < len(vars) && vars[keep] > relVarTol*vars[0] {
		keep++
	}
	if p.components > 0 && p.components < keep {
		keep = p.components
	}
	if keep == 0 {
		return nil, apperrors.InsufficientData("all features are constant over the growth samples")
	}

	centered := mat.DenseCopyOf(x)
	n, d := centered.Dims()
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, centered)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			centered.Set(i, j, col[i]-mean)
		}
	}
	var scores mat.Dense
	scores.Mul(centered, vecs.Slice(0, d, 0, keep))

	g := make([]float64, n)
	for i, s := range samples {
		g[i] = growth[s]
	}
	out := &ports.GrowthFactors{Samples: samples, Best: -1}
	best := -1.0
	for k := 0; k < keep; k++ {
		sc := mat.Col(nil, k, &scores)
		r := linmodel.Pearson(sc, g)
		out.Scores = append(out.Scores, sc)
		out.Correlation = append(out.Correlation, r)
		if !math.IsNaN(r) && math.Abs(r) > best {
			best, out.Best = math.Abs(r), k
		}
	}
	if out.Best < 0 {
		return nil, apperrors.InsufficientData("no component correlates with growth")
	}
	p.logger.Info("%d components over %d samples x %d features; component %d has |r| = %.3f",
		keep, n, d, out.Best, best)
	return out, nil
}

// Residualize regresses every feature on the scores of component over the
// fitted samples. Missing values stay missing; features with fewer than
// three measured samples become all-NaN.
func (p *PCARegressor) Residualize(ctx context.Context, data *omics.Matrix, factors *ports.GrowthFactors, component int) (*omics.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if factors == nil || component < 0 || component >= len(factors.Scores) {
		return nil, apperrors.InvalidInput("component %d out of range", component)
	}
	scores := factors.Scores[component]
	rows := data.Rows()
	values := make([]float64, 0, len(rows)*len(factors.Samples))
	dropped := 0
	for _, f := range rows {
		y := make([]float64, len(factors.Samples))
		var xs, ys []float64
		for j, s := range factors.Samples {
			v, ok := data.Get(f, s)
			if !ok {
				v = math.NaN()
			}
			y[j] = v
			if !math.IsNaN(v) {
				xs = append(xs, scores[j])
				ys = append(ys, v)
			}
		}
		if len(ys) < 3 {
			for j := range y {
				y[j] = math.NaN()
			}
			dropped++
			values = append(values, y...)
			continue
		}
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		for j := range y {
			if !math.IsNaN(y[j]) {
				y[j] -= alpha + beta*scores[j]
			}
		}
		values = append(values, y...)
	}
	out, err := omics.New(rows, factors.Samples, values)
	if err != nil {
		return nil, apperrors.Wrap(err, "residual matrix")
	}
	if dropped > 0 {
		p.logger.Warn("%d features had fewer than 3 measured samples and were blanked", dropped)
	}
	return out, nil
}

// Rank orders components by decreasing |correlation| with growth
func Rank(factors *ports.GrowthFactors) []int {
	idx := make([]int, len(factors.Correlation))
	for i := range idx {
		idx[i] = i
	}
	abs := func(k int) float64 {
		r := factors.Correlation[k]
		if math.IsNaN(r) {
			return -1
		}
		return math.Abs(r)
	}
	sort.SliceStable(idx, func(a, b int) bool { return abs(idx[a]) > abs(idx[b]) })
	return idx
}

func completeness(m *omics.Matrix, f core.FeatureID, samples []core.SampleID) float64 {
	n := 0
	for _, s := range samples {
		if v, ok := m.Get(f, s); ok && !math.IsNaN(v) {
			n++
		}
	}
	return float64(n) / float64(len(samples))
}
