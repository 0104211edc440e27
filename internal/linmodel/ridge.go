package linmodel

import (
	"math"

	apperrors "gophospho/internal/errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// maxCondition above which the normal equations are treated as singular
const maxCondition = 1e12

// Ridge solves (X'X + Alpha I) b = X'y in closed form. Alpha = 0 gives
// ordinary least squares.
type Ridge struct {
	Alpha        float64
	FitIntercept bool
}

// NewRidge returns a ridge regressor with intercept
func NewRidge(alpha float64) *Ridge { return &Ridge{Alpha: alpha, FitIntercept: true} }

// Name implements Regressor
func (r *Ridge) Name() string {
	if r.Alpha == 0 {
		return KindOLS
	}
	return KindRidge
}

// Fit implements Regressor. A singular system does not fail: linearly
// dependent columns are dropped and the model is refitted on the rest.
func (r *Ridge) Fit(x mat.Matrix, y []float64) (*Fit, error) {
	_, p, err := checkShapes(x, y)
	if err != nil {
		return nil, err
	}
	cols, means := center(x, r.FitIntercept)
	yc, ymean := centerTarget(y, r.FitIntercept)

	all := make([]int, p)
	for j := range all {
		all[j] = j
	}
	coef, err := r.solve(cols, yc, all)
	var dropped []int
	if apperrors.HasCode(err, apperrors.CodeDegenerateMatrix) {
		keep := independentColumns(cols)
		if len(keep) == 0 {
			return nil, apperrors.InsufficientData("every design column is constant")
		}
		dropped = complement(p, keep)
		coef, err = r.solve(cols, yc, keep)
	}
	if err != nil {
		return nil, err
	}

	full := make([]float64, p)
	kept := all
	if dropped != nil {
		kept = complement(p, dropped)
	}
	for k, j := range kept {
		full[j] = coef[k]
	}
	fit := &Fit{Coef: full, Dropped: dropped}
	if r.FitIntercept {
		fit.Intercept = ymean - floats.Dot(means, full)
	}
	return fit, nil
}

func (r *Ridge) solve(cols [][]float64, y []float64, idx []int) ([]float64, error) {
	k := len(idx)
	gram := mat.NewSymDense(k, nil)
	rhs := mat.NewVecDense(k, nil)
	for a, ja := range idx {
		rhs.SetVec(a, floats.Dot(cols[ja], y))
		for b := a; b < k; b++ {
			v := floats.Dot(cols[ja], cols[idx[b]])
			if a == b {
				v += r.Alpha
			}
			gram.SetSym(a, b, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok || chol.Cond() > maxCondition {
		return nil, apperrors.DegenerateMatrix("normal equations are singular for %d columns", k)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, rhs); err != nil {
		return nil, apperrors.DegenerateMatrix("cholesky solve failed: %v", err)
	}
	out := make([]float64, k)
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}

// independentColumns greedily keeps columns that are not (numerically) in
// the span of the columns kept before them, via modified Gram-Schmidt.
func independentColumns(cols [][]float64) []int {
	var basis [][]float64
	var keep []int
	for j, c := range cols {
		norm := floats.Norm(c, 2)
		if norm == 0 {
			continue
		}
		v := append([]float64(nil), c...)
		for _, q := range basis {
			floats.AddScaled(v, -floats.Dot(q, v), q)
		}
		rest := floats.Norm(v, 2)
		if rest <= 1e-8*norm || math.IsNaN(rest) {
			continue
		}
		floats.Scale(1/rest, v)
		basis = append(basis, v)
		keep = append(keep, j)
	}
	return keep
}

func complement(p int, idx []int) []int {
	in := make(map[int]bool, len(idx))
	for _, j := range idx {
		in[j] = true
	}
	var out []int
	for j := 0; j < p; j++ {
		if !in[j] {
			out = append(out, j)
		}
	}
	return out
}
