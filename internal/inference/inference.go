// Package inference estimates per-sample activity scores for reactions or
// regulators by ridge regression of a fold-change vector on a binary
// structural design.
package inference

import (
	"math"

	"gophospho/domain/core"
	"gophospho/domain/omics"
	"gophospho/internal"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/linmodel"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ZScoreMode selects which entries the target is standardized over
type ZScoreMode string

const (
	// ZScoreRestricted standardizes over the jointly supported rows only
	ZScoreRestricted ZScoreMode = "restricted"
	// ZScoreFull standardizes over every measured row before restriction
	ZScoreFull ZScoreMode = "full"
)

// Config holds inference parameters
type Config struct {
	Alpha      float64
	MinSupport int
	ZScore     ZScoreMode
}

// DefaultConfig returns ridge alpha 1 with single-support columns dropped
func DefaultConfig() Config {
	return Config{Alpha: 1.0, MinSupport: 2, ZScore: ZScoreRestricted}
}

// Activity maps an activity column to its coefficient for one sample.
// Columns that could not be fitted are absent.
type Activity map[core.FeatureID]float64

// Inferrer fits activities against a fixed design
type Inferrer struct {
	design *Design
	cfg    Config
	logger *internal.Logger
}

// NewInferrer validates cfg and binds it to design
func NewInferrer(design *Design, cfg Config, logger *internal.Logger) (*Inferrer, error) {
	if design == nil || len(design.columns) == 0 {
		return nil, apperrors.InvalidInput("inference design has no columns")
	}
	if cfg.Alpha < 0 {
		return nil, apperrors.Configuration("ridge alpha must be >= 0, got %g", cfg.Alpha)
	}
	if cfg.MinSupport < 1 {
		cfg.MinSupport = 1
	}
	switch cfg.ZScore {
	case "":
		cfg.ZScore = ZScoreRestricted
	case ZScoreRestricted, ZScoreFull:
	default:
		return nil, apperrors.Configuration("unknown z-score mode %q", cfg.ZScore)
	}
	return &Inferrer{design: design, cfg: cfg, logger: internal.OrNop(logger).Named("inference")}, nil
}

// Sample estimates activities from one fold-change vector. Missing values
// may be absent from y or NaN. When fewer than two rows remain, or no
// column keeps enough support, the activity is empty and the error is
// InsufficientData; callers treat that as an excluded sample.
func (inf *Inferrer) Sample(y map[core.FeatureID]float64) (Activity, error) {
	measured := core.NewSet[core.FeatureID]()
	for r, v := range y {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			measured.Add(r)
		}
	}

	values := y
	if inf.cfg.ZScore == ZScoreFull {
		var err error
		if values, err = zscore(y, measured.Sorted()); err != nil {
			return Activity{}, err
		}
	}

	var cols []core.FeatureID
	colRows := make(map[core.FeatureID][]core.FeatureID)
	rowSet := core.NewSet[core.FeatureID]()
	for _, c := range inf.design.columns {
		var rows []core.FeatureID
		for _, r := range inf.design.members[c] {
			if measured.Has(r) {
				rows = append(rows, r)
			}
		}
		if len(rows) < inf.cfg.MinSupport || len(rows) == 0 {
			continue
		}
		cols = append(cols, c)
		colRows[c] = rows
		for _, r := range rows {
			rowSet.Add(r)
		}
	}
	rows := rowSet.Sorted()
	if len(rows) < 2 || len(cols) == 0 {
		return Activity{}, apperrors.InsufficientData("%d supported rows and %d columns after restriction", len(rows), len(cols))
	}

	if inf.cfg.ZScore == ZScoreRestricted {
		var err error
		if values, err = zscore(y, rows); err != nil {
			return Activity{}, err
		}
	}

	rowIndex := make(map[core.FeatureID]int, len(rows))
	target := make([]float64, len(rows))
	for i, r := range rows {
		rowIndex[r] = i
		target[i] = values[r]
	}
	x := mat.NewDense(len(rows), len(cols), nil)
	for j, c := range cols {
		for _, r := range colRows[c] {
			x.Set(rowIndex[r], j, 1)
		}
	}

	fit, err := linmodel.NewRidge(inf.cfg.Alpha).Fit(x, target)
	if err != nil {
		return Activity{}, err
	}
	dropped := make(map[int]bool, len(fit.Dropped))
	for _, j := range fit.Dropped {
		dropped[j] = true
	}
	out := make(Activity, len(cols))
	for j, c := range cols {
		if !dropped[j] {
			out[c] = fit.Coef[j]
		}
	}
	return out, nil
}

// zscore standardizes y over rows with the sample standard deviation
func zscore(y map[core.FeatureID]float64, rows []core.FeatureID) (map[core.FeatureID]float64, error) {
	if len(rows) < 2 {
		return nil, apperrors.InsufficientData("cannot standardize %d values", len(rows))
	}
	v := make([]float64, len(rows))
	for i, r := range rows {
		v[i] = y[r]
	}
	mean, std := stat.MeanStdDev(v, nil)
	if std == 0 || math.IsNaN(std) {
		return nil, apperrors.InsufficientData("target has zero variance over %d rows", len(rows))
	}
	out := make(map[core.FeatureID]float64, len(rows))
	for i, r := range rows {
		out[r] = (v[i] - mean) / std
	}
	return out, nil
}

// Result is an activity matrix plus the samples that yielded nothing
type Result struct {
	Activities *omics.Matrix
	Excluded   []core.SampleID
}

// Matrix runs Sample over every column of data. Excluded samples keep an
// all-NaN column so downstream completeness filters see them.
func (inf *Inferrer) Matrix(data *omics.Matrix) (*Result, error) {
	b := omics.NewBuilder()
	res := &Result{}
	for _, s := range data.Cols() {
		b.AddCol(s)
		act, err := inf.Sample(data.ColumnVector(s))
		if err != nil {
			if !apperrors.HasCode(err, apperrors.CodeInsufficientData) {
				return nil, apperrors.Wrapf(err, "sample %s", s)
			}
			inf.logger.Debug("sample %s excluded: %v", s, err)
			res.Excluded = append(res.Excluded, s)
			continue
		}
		for c, v := range act {
			b.Set(c, s, v)
		}
	}
	res.Activities = b.Build()
	if len(res.Excluded) > 0 {
		inf.logger.Info("%d of %d samples yielded no activities", len(res.Excluded), len(data.Cols()))
	}
	return res, nil
}
