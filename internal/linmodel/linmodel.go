// Package linmodel fits the small regularized linear models used for
// activity inference and cross-validated prediction.
package linmodel

import (
	"fmt"
	"math"
	"strings"

	apperrors "gophospho/internal/errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Fit is a fitted linear model y = Intercept + Coef . x
type Fit struct {
	Coef      []float64
	Intercept float64
	// Dropped lists design columns removed because they were linearly
	// dependent on earlier columns; their coefficients are zero.
	Dropped []int
	// Iterations is the number of coordinate descent sweeps, 0 for closed form
	Iterations int
}

// Predict evaluates the model on one observation
func (f *Fit) Predict(x []float64) float64 {
	return f.Intercept + floats.Dot(f.Coef, x)
}

// PredictRows evaluates the model on every row of x
func (f *Fit) PredictRows(x mat.Matrix) []float64 {
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = f.Predict(mat.Row(nil, i, x))
	}
	return out
}

// Regressor fits one target vector against a samples x features design
type Regressor interface {
	Fit(x mat.Matrix, y []float64) (*Fit, error)
	Name() string
}

// Kinds of regressors selectable by configuration
const (
	KindRidge      = "ridge"
	KindOLS        = "ols"
	KindLasso      = "lasso"
	KindElasticNet = "elasticnet"
)

// New returns the regressor named by kind
func New(kind string, alpha, l1Ratio float64) (Regressor, error) {
	switch strings.ToLower(kind) {
	case KindRidge:
		return &Ridge{Alpha: alpha, FitIntercept: true}, nil
	case KindOLS:
		return &Ridge{Alpha: 0, FitIntercept: true}, nil
	case KindLasso:
		return NewLasso(alpha), nil
	case KindElasticNet, "":
		return NewElasticNet(alpha, l1Ratio), nil
	default:
		return nil, apperrors.Configuration("unknown regression model %q", kind)
	}
}

func checkShapes(x mat.Matrix, y []float64) (int, int, error) {
	n, p := x.Dims()
	if n != len(y) {
		return 0, 0, apperrors.InvalidInput("design has %d rows but target has %d values", n, len(y))
	}
	if n < 2 {
		return 0, 0, apperrors.InsufficientData("need at least 2 observations, got %d", n)
	}
	if p == 0 {
		return 0, 0, apperrors.InsufficientData("design has no columns")
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, apperrors.InvalidInput("target contains non-finite values")
		}
	}
	return n, p, nil
}

// center returns column means and a centered copy of x as column slices
func center(x mat.Matrix, intercept bool) ([][]float64, []float64) {
	n, p := x.Dims()
	cols := make([][]float64, p)
	means := make([]float64, p)
	for j := 0; j < p; j++ {
		c := mat.Col(nil, j, x)
		if intercept {
			means[j] = floats.Sum(c) / float64(n)
			floats.AddConst(-means[j], c)
		}
		cols[j] = c
	}
	return cols, means
}

func centerTarget(y []float64, intercept bool) ([]float64, float64) {
	out := append([]float64(nil), y...)
	if !intercept {
		return out, 0
	}
	mean := floats.Sum(out) / float64(len(out))
	floats.AddConst(-mean, out)
	return out, mean
}

func (f *Fit) String() string {
	return fmt.Sprintf("Fit{intercept=%.4g, %d coef, %d dropped}", f.Intercept, len(f.Coef), len(f.Dropped))
}
