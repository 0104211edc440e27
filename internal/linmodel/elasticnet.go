package linmodel

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ElasticNet minimizes
//
//	1/(2n) ||y - Xw - b||^2 + Alpha*L1Ratio*||w||_1 + Alpha*(1-L1Ratio)/2*||w||^2
//
// by cyclic coordinate descent. L1Ratio = 1 is the lasso.
type ElasticNet struct {
	Alpha   float64
	L1Ratio float64
	MaxIter int
	Tol     float64
}

// NewElasticNet returns an elastic net with the usual iteration limits
func NewElasticNet(alpha, l1Ratio float64) *ElasticNet {
	return &ElasticNet{Alpha: alpha, L1Ratio: l1Ratio, MaxIter: 1000, Tol: 1e-4}
}

// NewLasso returns a pure L1 model
func NewLasso(alpha float64) *ElasticNet { return NewElasticNet(alpha, 1) }

// Name implements Regressor
func (e *ElasticNet) Name() string {
	if e.L1Ratio == 1 {
		return KindLasso
	}
	return KindElasticNet
}

// Fit implements Regressor
func (e *ElasticNet) Fit(x mat.Matrix, y []float64) (*Fit, error) {
	n, p, err := checkShapes(x, y)
	if err != nil {
		return nil, err
	}
	maxIter := e.MaxIter
	if maxIter <= 0 {
		maxIter = 1000
	}
	tol := e.Tol
	if tol <= 0 {
		tol = 1e-4
	}

	cols, means := center(x, true)
	resid, ymean := centerTarget(y, true)
	norms := make([]float64, p)
	for j, c := range cols {
		norms[j] = floats.Dot(c, c)
	}
	l1 := e.Alpha * e.L1Ratio * float64(n)
	l2 := e.Alpha * (1 - e.L1Ratio) * float64(n)

	w := make([]float64, p)
	iter := 0
	for iter < maxIter {
		iter++
		var maxDelta, maxW float64
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			if old != 0 {
				floats.AddScaled(resid, old, cols[j])
			}
			rho := floats.Dot(cols[j], resid)
			w[j] = softThreshold(rho, l1) / (norms[j] + l2)
			if w[j] != 0 {
				floats.AddScaled(resid, -w[j], cols[j])
			}
			maxDelta = math.Max(maxDelta, math.Abs(w[j]-old))
			maxW = math.Max(maxW, math.Abs(w[j]))
		}
		// relative change of the largest coefficient
		if maxW == 0 || maxDelta/maxW < tol {
			break
		}
	}

	return &Fit{
		Coef:       w,
		Intercept:  ymean - floats.Dot(means, w),
		Iterations: iter,
	}, nil
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}
