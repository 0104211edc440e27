package omics

import (
	"math"

	"gophospho/domain/core"

	"github.com/montanaflynn/stats"
)

// present returns the non-missing values
func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Completeness returns the fraction of non-missing values
func Completeness(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return float64(len(present(values))) / float64(len(values))
}

// RowStd returns the sample standard deviation of the non-missing values,
// or NaN when fewer than two are present.
func RowStd(values []float64) float64 {
	p := present(values)
	if len(p) < 2 {
		return math.NaN()
	}
	sd, err := stats.StandardDeviationSample(p)
	if err != nil {
		return math.NaN()
	}
	return sd
}

// FilterRowsByCompleteness keeps rows measured in strictly more than
// frac of the columns (regulators estimated in > 75% of samples).
func FilterRowsByCompleteness(m *Matrix, frac float64) *Matrix {
	return m.SelectRows(func(_ core.FeatureID, v []float64) bool {
		return Completeness(v) > frac
	})
}

// FilterRowsByStd keeps rows whose standard deviation exceeds minStd
func FilterRowsByStd(m *Matrix, minStd float64) *Matrix {
	return m.SelectRows(func(_ core.FeatureID, v []float64) bool {
		sd := RowStd(v)
		return !math.IsNaN(sd) && sd > minStd
	})
}

// FilterSignificant keeps rows with std > minStd and at least one
// absolute fold-change above absFC.
func FilterSignificant(m *Matrix, minStd, absFC float64) *Matrix {
	return m.SelectRows(func(_ core.FeatureID, v []float64) bool {
		sd := RowStd(v)
		if math.IsNaN(sd) || sd <= minStd {
			return false
		}
		for _, x := range v {
			if math.Abs(x) > absFC {
				return true
			}
		}
		return false
	})
}
