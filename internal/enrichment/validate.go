package enrichment

import (
	"math"
	"sort"

	"gophospho/internal/groundtruth"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/combin"
)

// SweepRow is the enrichment at one score threshold
type SweepRow struct {
	Threshold float64
	Fraction  float64
	PValue    float64
	M, N      int
	Truth     int
	Hits      int
}

// Summary is the full threshold sweep of one association table
type Summary struct {
	Column Column
	Rows   []SweepRow
	AUC    float64
	// Empty is set when no candidate pair is a known interaction; every
	// row then has fraction 0 and p-value 1
	Empty bool
}

type pairKey struct {
	reg, target string
}

// Validate sweeps every ROC threshold of column over the table. M is the
// set of scored pairs whose regulator is in the ground truth, n the part
// of M that is a known interaction. At threshold t, N holds the pairs of M
// at least as strong as t and x = N ∩ n; the p-value is P(X >= |x|) for a
// hypergeometric draw of |N| from |M| with |n| successes.
func Validate(table *AssociationTable, truth *groundtruth.InteractionSet, column Column) *Summary {
	sign := 1.0
	if !column.HigherIsStronger() {
		sign = -1
	}

	type candidate struct {
		key   pairKey
		value float64
		known bool
	}
	var cands []candidate
	seen := make(map[pairKey]bool)
	regs := make(map[string]bool)
	for _, r := range truth.Regulators() {
		regs[string(r)] = true
	}
	for _, a := range table.Rows {
		k := pairKey{string(a.Regulator), string(a.Target)}
		if !regs[k.reg] || seen[k] {
			continue
		}
		seen[k] = true
		cands = append(cands, candidate{key: k, value: sign * a.Value(column), known: truth.Contains(a.Regulator, a.Target)})
	}
	m := len(cands)
	n := 0
	for _, c := range cands {
		if c.known {
			n++
		}
	}

	out := &Summary{Column: column, AUC: AUC(table, column), Empty: n == 0}
	for _, t := range thresholds(table, column) {
		row := SweepRow{Threshold: sign * t, M: m, Truth: n, PValue: 1}
		for _, c := range cands {
			if c.value >= t {
				row.N++
				if c.known {
					row.Hits++
				}
			}
		}
		if !out.Empty {
			if row.N > 0 {
				row.Fraction = float64(row.Hits) / float64(row.N)
			}
			row.PValue = HypergeomSF(row.Hits, m, n, row.N)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// thresholds returns +Inf followed by the distinct oriented values of
// column in descending order, the cut points of the ROC curve
func thresholds(table *AssociationTable, column Column) []float64 {
	sign := 1.0
	if !column.HigherIsStronger() {
		sign = -1
	}
	distinct := make(map[float64]bool)
	for _, a := range table.Rows {
		if v := a.Value(column); !math.IsNaN(v) {
			distinct[sign*v] = true
		}
	}
	out := make([]float64, 0, len(distinct)+1)
	for v := range distinct {
		out = append(out, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return append([]float64{math.Inf(1)}, out...)
}

// AUC is the trapezoidal area under the ROC curve of column against the
// TP flag over the whole table. It is NaN when only one class is present.
func AUC(table *AssociationTable, column Column) float64 {
	sign := 1.0
	if !column.HigherIsStronger() {
		sign = -1
	}
	var y []float64
	var classes []bool
	pos := 0
	for _, a := range table.Rows {
		v := a.Value(column)
		if math.IsNaN(v) {
			continue
		}
		y = append(y, sign*v)
		classes = append(classes, a.TP)
		if a.TP {
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return math.NaN()
	}
	weights := make([]float64, len(y))
	for i := range weights {
		weights[i] = 1
	}
	stat.SortWeightedLabeled(y, classes, weights)
	tpr, fpr, _ := stat.ROC(nil, y, classes, weights)
	return integrate.Trapezoidal(fpr, tpr)
}

// HypergeomSF returns P(X >= x) for X ~ Hypergeometric(population m,
// successes n, draws draws)
func HypergeomSF(x, m, n, draws int) float64 {
	lo := draws - (m - n)
	if lo < 0 {
		lo = 0
	}
	hi := draws
	if n < hi {
		hi = n
	}
	if x <= lo {
		return 1
	}
	if x > hi {
		return 0
	}
	total := combin.LogGeneralizedBinomial(float64(m), float64(draws))
	p := 0.0
	for k := x; k <= hi; k++ {
		p += math.Exp(combin.LogGeneralizedBinomial(float64(n), float64(k)) +
			combin.LogGeneralizedBinomial(float64(m-n), float64(draws-k)) - total)
	}
	return math.Min(1, math.Max(0, p))
}
