package enrichment

import (
	"math"

	"gophospho/domain/core"
	"gophospho/domain/omics"
	apperrors "gophospho/internal/errors"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// KnockoutRow is an association whose regulator was itself knocked out
type KnockoutRow struct {
	Regulator core.GeneID
	Target    core.FeatureID
	Coef      float64
	// Value is the target's fold-change in the regulator's knockout sample
	Value float64
}

// KnockoutResult compares knockout fold-changes between negative and
// positive associations with a two-sample Student t-test
type KnockoutResult struct {
	Rows     []KnockoutRow
	Negative int
	Positive int
	T        float64
	PValue   float64
}

// InternalValidation checks associations against knockout data. Samples
// of knockouts are named by the knocked-out gene; only rows with
// |coef| > minAbsCoef are tested. A negative association should see the
// target rise when the regulator is removed, so the two groups separate.
func InternalValidation(table *AssociationTable, knockouts *omics.Matrix, minAbsCoef float64) (*KnockoutResult, error) {
	res := &KnockoutResult{}
	var neg, pos []float64
	for _, a := range table.Rows {
		v, ok := knockouts.Get(a.Target, core.SampleID(a.Regulator))
		if !ok || math.IsNaN(v) {
			continue
		}
		res.Rows = append(res.Rows, KnockoutRow{Regulator: a.Regulator, Target: a.Target, Coef: a.Coef, Value: v})
		if math.Abs(a.Coef) <= minAbsCoef {
			continue
		}
		if a.Coef < 0 {
			neg = append(neg, v)
		} else {
			pos = append(pos, v)
		}
	}
	res.Negative, res.Positive = len(neg), len(pos)
	if len(neg) < 2 || len(pos) < 2 {
		return res, apperrors.InsufficientData("knockout validation needs 2 associations per sign, got %d negative and %d positive", len(neg), len(pos))
	}
	res.T, res.PValue = StudentT(neg, pos)
	return res, nil
}

// StudentT is the pooled-variance two-sample t-test, two-sided
func StudentT(a, b []float64) (t, p float64) {
	na, nb := float64(len(a)), float64(len(b))
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	df := na + nb - 2
	pooled := ((na-1)*va + (nb-1)*vb) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if se == 0 {
		return math.NaN(), math.NaN()
	}
	t = (ma - mb) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.Survival(math.Abs(t))
	return t, p
}
