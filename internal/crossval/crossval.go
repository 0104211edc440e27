// Package crossval measures how well regulator activities predict
// metabolite fold-changes on held-out samples.
package crossval

import (
	"math"

	"gophospho/domain/core"
	"gophospho/domain/omics"
	"gophospho/internal"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/linmodel"
	"gophospho/internal/workpool"
	"gophospho/ports"

	"gonum.org/v1/gonum/mat"
)

// Protocol selects how leave-one-out handles missing targets
type Protocol string

const (
	// ProtocolSingle runs one loop per target, skipping samples where that
	// target is missing
	ProtocolSingle Protocol = "single"
	// ProtocolMulti shares one design per fold across every target and
	// drops samples where any target is missing
	ProtocolMulti Protocol = "multi"
)

// Config holds the prediction parameters
type Config struct {
	Model    string
	Alpha    float64
	L1Ratio  float64
	Protocol Protocol
	// SelectK keeps the k features most correlated with the target in each
	// experiment split; 0 keeps every feature
	SelectK int
	Trials  int
	Seed    int64
}

// DefaultConfig is an elastic net (alpha 0.01, l1 ratio 0.5) under the
// single-target protocol with 100 randomized trials
func DefaultConfig() Config {
	return Config{
		Model:    linmodel.KindElasticNet,
		Alpha:    0.01,
		L1Ratio:  0.5,
		Protocol: ProtocolSingle,
		Trials:   100,
	}
}

// Comparison tags every result row
type Comparison struct {
	Name        string
	Dataset     string
	FeatureType string
	Growth      string
}

// CorrType says what a correlation runs across
type CorrType string

const (
	// CorrFeatures correlates one target across held-out samples
	CorrFeatures CorrType = "features"
	// CorrSamples correlates one sample across targets
	CorrSamples CorrType = "samples"
)

// Row is one correlation of a prediction run
type Row struct {
	Comparison
	Name string
	Type CorrType
	Cor  float64
	// Trial is the randomized trial index, -1 for the observed data
	Trial int
}

// Prediction holds held-out predictions and the fitted coefficients
type Prediction struct {
	// Predicted and Observed are targets x samples
	Predicted *omics.Matrix
	Observed  *omics.Matrix
	// Coefficients[target][feature] aggregates the per-fold coefficients
	Coefficients map[core.FeatureID]map[core.FeatureID]float64
	// Excluded lists targets that could not be predicted
	Excluded []core.FeatureID
	Folds    workpool.Summary
}

// Correlations returns per-target and per-sample Pearson correlations.
// A correlation is NaN when either side has no variance.
func (p *Prediction) Correlations(c Comparison, trial int) []Row {
	var rows []Row
	targets := p.Predicted.Rows()
	samples := p.Predicted.Cols()
	for _, t := range targets {
		pred, _ := p.Predicted.Row(t)
		obs := observed(p.Observed, t, samples)
		rows = append(rows, Row{Comparison: c, Name: string(t), Type: CorrFeatures, Cor: linmodel.Pearson(obs, pred), Trial: trial})
	}
	for _, s := range samples {
		pred, _ := p.Predicted.Col(s)
		obs := make([]float64, len(targets))
		for i, t := range targets {
			v, ok := p.Observed.Get(t, s)
			if !ok {
				v = math.NaN()
			}
			obs[i] = v
		}
		rows = append(rows, Row{Comparison: c, Name: string(s), Type: CorrSamples, Cor: linmodel.Pearson(obs, pred), Trial: trial})
	}
	return rows
}

func observed(m *omics.Matrix, row core.FeatureID, samples []core.SampleID) []float64 {
	out := make([]float64, len(samples))
	for j, s := range samples {
		v, ok := m.Get(row, s)
		if !ok {
			v = math.NaN()
		}
		out[j] = v
	}
	return out
}

// Predictor runs the cross-validation protocols
type Predictor struct {
	cfg    Config
	reg    linmodel.Regressor
	pool   *workpool.Pool
	rng    ports.RNGPort
	logger *internal.Logger
}

// NewPredictor validates cfg. A nil pool runs serially.
func NewPredictor(cfg Config, pool *workpool.Pool, rng ports.RNGPort, logger *internal.Logger) (*Predictor, error) {
	reg, err := linmodel.New(cfg.Model, cfg.Alpha, cfg.L1Ratio)
	if err != nil {
		return nil, err
	}
	switch cfg.Protocol {
	case "":
		cfg.Protocol = ProtocolSingle
	case ProtocolSingle, ProtocolMulti:
	default:
		return nil, apperrors.Configuration("unknown leave-one-out protocol %q", cfg.Protocol)
	}
	if cfg.SelectK < 0 {
		return nil, apperrors.Configuration("select-k must be >= 0, got %d", cfg.SelectK)
	}
	logger = internal.OrNop(logger).Named("crossval")
	if pool == nil {
		pool = workpool.New(1, logger)
	}
	return &Predictor{cfg: cfg, reg: reg, pool: pool, rng: rng, logger: logger}, nil
}

// Config returns the effective configuration
func (p *Predictor) Config() Config { return p.cfg }

// serial returns a copy of p that runs its units one at a time
func (p *Predictor) serial() *Predictor {
	cp := *p
	cp.pool = workpool.New(1, p.logger)
	return &cp
}

// targetResult is one target's held-out predictions and fold coefficients
type targetResult struct {
	pred  map[core.SampleID]float64
	coefs map[core.FeatureID][]float64
}

func (p *Predictor) assemble(targets []core.FeatureID, samples []core.SampleID, features []core.FeatureID,
	results []targetResult, sum workpool.Summary, y *omics.Matrix, aggregate func([]float64) float64) (*Prediction, error) {

	b := omics.NewBuilder()
	for _, s := range samples {
		b.AddCol(s)
	}
	out := &Prediction{Coefficients: make(map[core.FeatureID]map[core.FeatureID]float64), Folds: sum}
	failed := make(map[int]bool, len(sum.Failures))
	for i := range sum.Failures {
		failed[i] = true
	}
	for i, t := range targets {
		if failed[i] || len(results[i].pred) == 0 {
			out.Excluded = append(out.Excluded, t)
			continue
		}
		for s, v := range results[i].pred {
			b.Set(t, s, v)
		}
		coefs := make(map[core.FeatureID]float64, len(features))
		for _, f := range features {
			if vals := results[i].coefs[f]; len(vals) > 0 {
				coefs[f] = aggregate(vals)
			}
		}
		out.Coefficients[t] = coefs
	}
	out.Predicted = b.Build()
	if len(out.Predicted.Rows()) == 0 {
		return nil, apperrors.InsufficientData("no target could be predicted (%d excluded)", len(out.Excluded))
	}
	obs, err := y.Subset(out.Predicted.Rows(), samples)
	if err != nil {
		return nil, apperrors.Wrap(err, "observed targets")
	}
	out.Observed = obs
	if len(out.Excluded) > 0 {
		p.logger.Info("%d of %d targets excluded", len(out.Excluded), len(targets))
	}
	return out, nil
}

// finiteIndices returns the positions of finite values
func finiteIndices(v []float64) []int {
	out := make([]int, 0, len(v))
	for i, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, i)
		}
	}
	return out
}

// subRows copies the given rows of x
func subRows(x *mat.Dense, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		out.SetRow(k, x.RawRowView(i))
	}
	return out
}

// subCols copies the given columns of x
func subCols(x *mat.Dense, idx []int) *mat.Dense {
	r, _ := x.Dims()
	out := mat.NewDense(r, len(idx), nil)
	for k, j := range idx {
		for i := 0; i < r; i++ {
			out.Set(i, k, x.At(i, j))
		}
	}
	return out
}

func pick(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}

func without(idx []int, drop int) []int {
	out := make([]int, 0, len(idx)-1)
	for _, i := range idx {
		if i != drop {
			out = append(out, i)
		}
	}
	return out
}
