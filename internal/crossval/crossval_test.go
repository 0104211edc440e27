package crossval

import (
	"context"
	"math"
	"testing"

	"gophospho/domain/core"
	"gophospho/domain/omics"
	"gophospho/internal"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/testkit"
	"gophospho/internal/workpool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func olsPredictor(t *testing.T, mutate func(*Config)) *Predictor {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Model = "ols"
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewPredictor(cfg, workpool.New(2, nil), testkit.RNG(), internal.NopLogger())
	require.NoError(t, err)
	return p
}

func features(t *testing.T, samples []string) *omics.Matrix {
	return testkit.Matrix(t, []string{"f1", "f2"}, samples,
		1, 2, 3, 4, 5, 6,
		2, 1, 4, 3, 6, 5,
	)
}

// t1 = 1 + 2*f1 - f2; t2 is t1 with s3 missing; t3 is constant;
// t4 is zero except an outlier at s6
func targets(t *testing.T, samples []string) *omics.Matrix {
	return testkit.Matrix(t, []string{"t1", "t2", "t3", "t4"}, samples,
		1, 4, 3, 6, 5, 8,
		1, 4, nan, 6, 5, 8,
		5, 5, 5, 5, 5, 5,
		0, 0, 0, 0, 0, 10,
	)
}

var sixSamples = []string{"s1", "s2", "s3", "s4", "s5", "s6"}

func get(t *testing.T, m *omics.Matrix, r, c string) float64 {
	t.Helper()
	v, ok := m.Get(core.FeatureID(r), core.SampleID(c))
	require.True(t, ok, "%s/%s", r, c)
	return v
}

func TestLeaveOneOut_ExactRelationship(t *testing.T) {
	p := olsPredictor(t, nil)
	pred, err := p.LeaveOneOut(context.Background(), features(t, sixSamples), targets(t, sixSamples))
	require.NoError(t, err)

	for j, s := range sixSamples {
		assert.InDelta(t, []float64{1, 4, 3, 6, 5, 8}[j], get(t, pred.Predicted, "t1", s), 1e-8)
	}
	assert.InDelta(t, 2, pred.Coefficients["t1"]["f1"], 1e-8)
	assert.InDelta(t, -1, pred.Coefficients["t1"]["f2"], 1e-8)
	assert.Equal(t, 0, pred.Folds.Failed)
}

func TestLeaveOneOut_HeldOutSampleNeverTrains(t *testing.T) {
	p := olsPredictor(t, nil)
	pred, err := p.LeaveOneOut(context.Background(), features(t, sixSamples), targets(t, sixSamples))
	require.NoError(t, err)

	// trained on s1..s5 where t4 is flat, so s6 cannot see its own outlier
	assert.InDelta(t, 0, get(t, pred.Predicted, "t4", "s6"), 1e-8)

	predicted := 0
	for _, s := range sixSamples {
		if !math.IsNaN(get(t, pred.Predicted, "t1", s)) {
			predicted++
		}
	}
	assert.Equal(t, len(sixSamples), predicted)
}

func TestLeaveOneOut_SingleProtocolSkipsMissingTarget(t *testing.T) {
	p := olsPredictor(t, nil)
	pred, err := p.LeaveOneOut(context.Background(), features(t, sixSamples), targets(t, sixSamples))
	require.NoError(t, err)

	assert.True(t, math.IsNaN(get(t, pred.Predicted, "t2", "s3")))
	assert.InDelta(t, 4, get(t, pred.Predicted, "t2", "s2"), 1e-8)
	// other targets still use s3
	assert.InDelta(t, 3, get(t, pred.Predicted, "t1", "s3"), 1e-8)
}

func TestLeaveOneOut_MultiProtocolDropsIncompleteSamples(t *testing.T) {
	p := olsPredictor(t, func(c *Config) { c.Protocol = ProtocolMulti })
	pred, err := p.LeaveOneOut(context.Background(), features(t, sixSamples), targets(t, sixSamples))
	require.NoError(t, err)

	assert.True(t, math.IsNaN(get(t, pred.Predicted, "t1", "s3")))
	assert.InDelta(t, 8, get(t, pred.Predicted, "t1", "s6"), 1e-8)
}

func TestCorrelations(t *testing.T) {
	p := olsPredictor(t, nil)
	c := Comparison{Name: "steady-state", Dataset: "steady-state", FeatureType: "kinase", Growth: "no growth"}
	pred, err := p.LeaveOneOut(context.Background(), features(t, sixSamples), targets(t, sixSamples))
	require.NoError(t, err)

	rows := pred.Correlations(c, -1)
	byName := make(map[string]Row)
	for _, r := range rows {
		byName[string(r.Type)+"/"+r.Name] = r
	}
	assert.Len(t, rows, 4+6)
	assert.InDelta(t, 1, byName["features/t1"].Cor, 1e-8)
	// constant target: undefined, not zero
	assert.True(t, math.IsNaN(byName["features/t3"].Cor))
	assert.Equal(t, "kinase", byName["samples/s1"].FeatureType)
	assert.Equal(t, -1, byName["samples/s1"].Trial)
}

func TestLeaveOneOut_TooFewSamples(t *testing.T) {
	p := olsPredictor(t, nil)
	x := testkit.Matrix(t, []string{"f1"}, []string{"s1", "s2"}, 1, 2)
	y := testkit.Matrix(t, []string{"t1"}, []string{"s1", "s2"}, 1, 2)
	_, err := p.LeaveOneOut(context.Background(), x, y)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientData))
}

func TestExperiments(t *testing.T) {
	names, groups := Experiments([]core.SampleID{"b_t1", "a_x_1", "b_t2", "solo"})
	assert.Equal(t, []string{"a_x", "b", "solo"}, names)
	assert.Equal(t, []int{0, 2}, groups["b"])
}

func TestExperimentSplit(t *testing.T) {
	samples := []string{"a_1", "a_2", "b_1", "b_2", "c_1", "c_2"}
	p := olsPredictor(t, nil)
	pred, err := p.ExperimentSplit(context.Background(), features(t, samples), targets(t, samples))
	require.NoError(t, err)

	for j, s := range samples {
		assert.InDelta(t, []float64{1, 4, 3, 6, 5, 8}[j], get(t, pred.Predicted, "t1", s), 1e-8)
	}
	assert.InDelta(t, 2, pred.Coefficients["t1"]["f1"], 1e-8)

	_, err = p.ExperimentSplit(context.Background(), features(t, sixSamples), targets(t, sixSamples))
	assert.NoError(t, err, "every sNN id is its own experiment")

	oneExp := []string{"a_1", "a_2", "a_3", "a_4", "a_5", "a_6"}
	_, err = p.ExperimentSplit(context.Background(), features(t, oneExp), targets(t, oneExp))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientData))
}

func TestExperimentSplit_SelectK(t *testing.T) {
	samples := []string{"a_1", "a_2", "b_1", "b_2", "c_1", "c_2"}
	y := testkit.Matrix(t, []string{"t5"}, samples, 3, 6, 9, 12, 15, 18)
	p := olsPredictor(t, func(c *Config) { c.SelectK = 1 })

	pred, err := p.ExperimentSplit(context.Background(), features(t, samples), y)
	require.NoError(t, err)
	assert.InDelta(t, 3, pred.Coefficients["t5"]["f1"], 1e-8)
	assert.NotContains(t, pred.Coefficients["t5"], core.FeatureID("f2"))
}

func TestCrossDataset(t *testing.T) {
	xA := testkit.Matrix(t, []string{"f1", "f2"}, []string{"s1", "s2", "s3", "s4"},
		1, 2, 3, 4,
		2, 1, 4, 3,
	)
	yA := testkit.Matrix(t, []string{"t1", "t3"}, []string{"s1", "s2", "s3", "s4"},
		1, 4, 3, 6,
		5, 5, 5, 5,
	)
	xB := testkit.Matrix(t, []string{"f1", "f2", "f3"}, []string{"s4", "s5", "s6"},
		4, 5, 6,
		3, 6, 5,
		0, 1, 0,
	)
	yB := testkit.Matrix(t, []string{"t1"}, []string{"s4", "s5", "s6"}, 6, 5, 8)

	pred, err := olsPredictor(t, nil).CrossDataset(context.Background(), xA, yA, xB, yB)
	require.NoError(t, err)
	assert.Equal(t, []core.SampleID{"s5", "s6"}, pred.Predicted.Cols())
	assert.Equal(t, []core.FeatureID{"t1"}, pred.Predicted.Rows())
	assert.InDelta(t, 5, get(t, pred.Predicted, "t1", "s5"), 1e-8)
	assert.InDelta(t, 8, get(t, pred.Predicted, "t1", "s6"), 1e-8)
	assert.Len(t, pred.Coefficients["t1"], 2)
}

func TestRandomizedControl(t *testing.T) {
	p := olsPredictor(t, func(c *Config) {
		c.Trials = 5
		c.Seed = 7
	})
	x := features(t, sixSamples)
	y := testkit.RandomMatrix(t, []string{"t1", "t2", "t3"}, sixSamples, 3)
	c := Comparison{Name: "null"}

	a, err := p.RandomizedControl(context.Background(), c, y, LeaveOneOutOn(x))
	require.NoError(t, err)
	b, err := p.RandomizedControl(context.Background(), c, y, LeaveOneOutOn(x))
	require.NoError(t, err)

	assert.Equal(t, 5, a.Summary.Completed)
	require.Len(t, a.Rows, 5*(3+6))
	trials := make(map[int]bool)
	for i := range a.Rows {
		trials[a.Rows[i].Trial] = true
		ca, cb := a.Rows[i].Cor, b.Rows[i].Cor
		assert.True(t, ca == cb || (math.IsNaN(ca) && math.IsNaN(cb)), "row %d not reproducible", i)
	}
	assert.Len(t, trials, 5)
}

func TestRandomizedControl_Validation(t *testing.T) {
	p, err := NewPredictor(DefaultConfig(), nil, nil, nil)
	require.NoError(t, err)
	_, err = p.RandomizedControl(context.Background(), Comparison{}, targets(t, sixSamples), LeaveOneOutOn(features(t, sixSamples)))
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestNewPredictor_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Protocol = "kfold"
	_, err := NewPredictor(cfg, nil, nil, nil)
	assert.True(t, apperrors.IsConfiguration(err))

	cfg = DefaultConfig()
	cfg.Model = "forest"
	_, err = NewPredictor(cfg, nil, nil, nil)
	assert.True(t, apperrors.IsConfiguration(err))
}
