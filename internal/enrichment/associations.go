// Package enrichment scores regulator-target associations and checks them
// against curated interaction databases.
package enrichment

import (
	"math"
	"sort"

	"gophospho/domain/core"
	"gophospho/domain/omics"
	"gophospho/internal"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/groundtruth"
	"gophospho/internal/linmodel"

	"gonum.org/v1/gonum/floats"
)

// Column names a numeric association column usable for ranking
type Column string

const (
	ColumnCoef      Column = "coef"
	ColumnScore     Column = "score"
	ColumnStrength  Column = "strength"
	ColumnEuclidean Column = "euclidean"
	ColumnManhattan Column = "manhattan"
)

// Columns lists every rankable column
var Columns = []Column{ColumnCoef, ColumnScore, ColumnStrength, ColumnEuclidean, ColumnManhattan}

// HigherIsStronger reports whether larger values of c mean a stronger
// association. Score and the distances rank the other way.
func (c Column) HigherIsStronger() bool {
	switch c {
	case ColumnScore, ColumnEuclidean, ColumnManhattan:
		return false
	default:
		return true
	}
}

// ParseColumn validates a column name
func ParseColumn(s string) (Column, error) {
	for _, c := range Columns {
		if string(c) == s {
			return c, nil
		}
	}
	return "", apperrors.Configuration("unknown score column %q", s)
}

// Association is one regulator-target row
type Association struct {
	Regulator core.GeneID
	Target    core.FeatureID
	Coef      float64
	// Score is max|coef| - |coef| over the table; smaller is stronger
	Score float64
	// Strength is |coef|
	Strength       float64
	TP             bool
	RegulatorCount int
	Euclidean      float64
	Manhattan      float64
}

// Value returns the association's value in column c
func (a Association) Value(c Column) float64 {
	switch c {
	case ColumnCoef:
		return a.Coef
	case ColumnScore:
		return a.Score
	case ColumnStrength:
		return a.Strength
	case ColumnEuclidean:
		return a.Euclidean
	case ColumnManhattan:
		return a.Manhattan
	}
	return math.NaN()
}

// AssociationTable is an ordered set of associations
type AssociationTable struct {
	Rows []Association
	// SkippedTargets lists targets left out for missing values
	SkippedTargets []core.FeatureID
}

// Len returns the number of rows
func (t *AssociationTable) Len() int { return len(t.Rows) }

// TruePositives counts rows flagged TP
func (t *AssociationTable) TruePositives() int {
	n := 0
	for _, a := range t.Rows {
		if a.TP {
			n++
		}
	}
	return n
}

// Config controls association fitting
type Config struct {
	// Alpha is the lasso penalty
	Alpha       float64
	ScoreColumn Column
	// MinAbsCoef is the knockout validation cut on |coef|
	MinAbsCoef float64
}

// DefaultConfig uses lasso alpha 0.01 and ranks by strength
func DefaultConfig() Config {
	return Config{Alpha: 0.01, ScoreColumn: ColumnStrength, MinAbsCoef: 0.1}
}

// Associator fits associations between regulator activities and targets
type Associator struct {
	cfg    Config
	logger *internal.Logger
}

// NewAssociator validates cfg
func NewAssociator(cfg Config, logger *internal.Logger) (*Associator, error) {
	if cfg.Alpha <= 0 {
		return nil, apperrors.Configuration("lasso alpha must be > 0, got %g", cfg.Alpha)
	}
	if cfg.ScoreColumn == "" {
		cfg.ScoreColumn = ColumnStrength
	}
	if _, err := ParseColumn(string(cfg.ScoreColumn)); err != nil {
		return nil, err
	}
	return &Associator{cfg: cfg, logger: internal.OrNop(logger).Named("enrichment")}, nil
}

// BuildAssociations regresses every target (rows of y) on every
// regulator (rows of x) over the shared samples with a lasso. Missing
// regulator values read as 0; targets with a missing value are skipped.
// Non-zero coefficients become rows.
func (a *Associator) BuildAssociations(x, y *omics.Matrix, truth *groundtruth.InteractionSet) (*AssociationTable, error) {
	samples := core.Intersect(x.Cols(), y.Cols())
	if len(samples) < 3 {
		return nil, apperrors.InsufficientData("associations need at least 3 shared samples, got %d", len(samples))
	}
	regulators := x.Rows()
	design, err := x.Design(regulators, samples, 0)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInsufficientData, err)
	}
	lasso := linmodel.NewLasso(a.cfg.Alpha)

	coefs := make(map[core.FeatureID]map[core.FeatureID]float64)
	var skipped []core.FeatureID
	for _, t := range y.Rows() {
		yv := rowOver(y, t, samples)
		if hasMissing(yv) {
			skipped = append(skipped, t)
			continue
		}
		fit, err := lasso.Fit(design, yv)
		if err != nil {
			if apperrors.IsRecoverable(err) {
				skipped = append(skipped, t)
				continue
			}
			return nil, apperrors.Wrapf(err, "target %s", t)
		}
		row := make(map[core.FeatureID]float64)
		for j, r := range regulators {
			if fit.Coef[j] != 0 {
				row[r] = fit.Coef[j]
			}
		}
		coefs[t] = row
	}
	table := Tabulate(coefs, x, y, truth)
	table.SkippedTargets = skipped
	a.logger.Info("%d associations over %d samples (%d TP, %d targets skipped)", table.Len(), len(samples), table.TruePositives(), len(skipped))
	return table, nil
}

// Tabulate turns target -> regulator -> coefficient maps (from any model)
// into an association table. Zero coefficients are dropped.
func Tabulate(coefs map[core.FeatureID]map[core.FeatureID]float64, x, y *omics.Matrix, truth *groundtruth.InteractionSet) *AssociationTable {
	samples := core.Intersect(x.Cols(), y.Cols())
	table := &AssociationTable{}
	for t, row := range coefs {
		for r, c := range row {
			if c == 0 || math.IsNaN(c) {
				continue
			}
			table.Rows = append(table.Rows, Association{
				Regulator: core.GeneID(r),
				Target:    t,
				Coef:      c,
				Strength:  math.Abs(c),
			})
		}
	}
	sort.Slice(table.Rows, func(i, j int) bool {
		if table.Rows[i].Regulator != table.Rows[j].Regulator {
			return table.Rows[i].Regulator < table.Rows[j].Regulator
		}
		return table.Rows[i].Target < table.Rows[j].Target
	})

	maxAbs := 0.0
	for _, a := range table.Rows {
		maxAbs = math.Max(maxAbs, a.Strength)
	}
	for i := range table.Rows {
		a := &table.Rows[i]
		a.Score = maxAbs - a.Strength
		if truth != nil {
			a.TP = truth.Contains(a.Regulator, a.Target)
		}
		xv := rowOver(x, core.FeatureID(a.Regulator), samples)
		yv := rowOver(y, a.Target, samples)
		for _, v := range xv {
			if !math.IsNaN(v) {
				a.RegulatorCount++
			}
		}
		xv = fillMissing(xv)
		yv = fillMissing(yv)
		a.Euclidean = floats.Distance(yv, xv, 2)
		a.Manhattan = floats.Distance(yv, xv, 1)
	}
	return table
}

func rowOver(m *omics.Matrix, r core.FeatureID, samples []core.SampleID) []float64 {
	out := make([]float64, len(samples))
	for j, s := range samples {
		v, ok := m.Get(r, s)
		if !ok {
			v = math.NaN()
		}
		out[j] = v
	}
	return out
}

func hasMissing(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

func fillMissing(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if !math.IsNaN(x) {
			out[i] = x
		}
	}
	return out
}
