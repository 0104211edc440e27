package enrichment

import (
	"math"
	"testing"

	"gophospho/domain/core"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/groundtruth"
	"gophospho/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeTargetTable(truth *groundtruth.InteractionSet) *AssociationTable {
	rows := []Association{
		{Regulator: "K1", Target: "T1", Coef: 0.9},
		{Regulator: "K1", Target: "T2", Coef: 0.3},
		{Regulator: "K1", Target: "T3", Coef: -0.2},
	}
	for i := range rows {
		rows[i].Strength = math.Abs(rows[i].Coef)
		rows[i].Score = 0.9 - rows[i].Strength
		rows[i].TP = truth.Contains(rows[i].Regulator, rows[i].Target)
	}
	return &AssociationTable{Rows: rows}
}

func TestValidate_StrongestPairIsEnriched(t *testing.T) {
	truth := groundtruth.NewInteractionSet(groundtruth.Pair{Regulator: "K1", Target: "T1"})
	s := Validate(threeTargetTable(truth), truth, ColumnStrength)

	require.Len(t, s.Rows, 4)
	assert.False(t, s.Empty)
	assert.True(t, math.IsInf(s.Rows[0].Threshold, 1))
	assert.Equal(t, 0, s.Rows[0].N)
	assert.Equal(t, 0.0, s.Rows[0].Fraction)

	tight := s.Rows[1]
	assert.InDelta(t, 0.9, tight.Threshold, 1e-12)
	assert.Equal(t, 3, tight.M)
	assert.Equal(t, 1, tight.Truth)
	assert.Equal(t, 1, tight.N)
	assert.Equal(t, 1, tight.Hits)
	assert.Equal(t, 1.0, tight.Fraction)
	assert.InDelta(t, 1.0/3.0, tight.PValue, 1e-12)

	assert.InDelta(t, 0.5, s.Rows[2].Fraction, 1e-12)
	assert.InDelta(t, 2.0/3.0, s.Rows[2].PValue, 1e-12)

	loose := s.Rows[3]
	assert.Equal(t, 3, loose.N)
	assert.InDelta(t, 1.0, loose.PValue, 1e-12)
	assert.Less(t, tight.PValue, loose.PValue)

	for _, r := range s.Rows {
		assert.GreaterOrEqual(t, r.PValue, 0.0)
		assert.LessOrEqual(t, r.PValue, 1.0)
	}
	assert.InDelta(t, 1.0, s.AUC, 1e-12)
}

func TestValidate_ScoreColumnRanksAscending(t *testing.T) {
	truth := groundtruth.NewInteractionSet(groundtruth.Pair{Regulator: "K1", Target: "T1"})
	byStrength := Validate(threeTargetTable(truth), truth, ColumnStrength)
	byScore := Validate(threeTargetTable(truth), truth, ColumnScore)

	require.Len(t, byScore.Rows, len(byStrength.Rows))
	for i := range byScore.Rows {
		assert.Equal(t, byStrength.Rows[i].N, byScore.Rows[i].N)
		assert.Equal(t, byStrength.Rows[i].Fraction, byScore.Rows[i].Fraction)
	}
	assert.InDelta(t, 0.6, byScore.Rows[2].Threshold, 1e-12)
	assert.InDelta(t, 1.0, byScore.AUC, 1e-12)
}

func TestValidate_EmptyThresholdSet(t *testing.T) {
	for name, truth := range map[string]*groundtruth.InteractionSet{
		"unknown regulator": groundtruth.NewInteractionSet(groundtruth.Pair{Regulator: "K9", Target: "T1"}),
		"no true pair":      groundtruth.NewInteractionSet(groundtruth.Pair{Regulator: "K1", Target: "T9"}),
	} {
		t.Run(name, func(t *testing.T) {
			s := Validate(threeTargetTable(truth), truth, ColumnStrength)
			assert.True(t, s.Empty)
			for _, r := range s.Rows {
				assert.Equal(t, 0.0, r.Fraction)
				assert.Equal(t, 1.0, r.PValue)
			}
			assert.True(t, math.IsNaN(s.AUC))
		})
	}
}

func TestHypergeomSF(t *testing.T) {
	// [C(4,2)C(6,1) + C(4,3)C(6,0)] / C(10,3)
	assert.InDelta(t, 40.0/120.0, HypergeomSF(2, 10, 4, 3), 1e-12)
	assert.Equal(t, 1.0, HypergeomSF(0, 10, 4, 3))
	assert.Equal(t, 0.0, HypergeomSF(4, 10, 4, 3))
	assert.Equal(t, 1.0, HypergeomSF(0, 0, 0, 0))
	assert.InDelta(t, 1.0/3.0, HypergeomSF(1, 3, 1, 1), 1e-12)
}

func TestBuildAssociations(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	nan := testkit.NaN
	x := testkit.Matrix(t, []string{"K1", "K2"}, samples,
		1, -1, 1, -1, 0, 0,
		1, 1, -1, -1, 0, nan,
	)
	y := testkit.Matrix(t, []string{"T1", "T2", "T3"}, samples,
		2, -2, 2, -2, 0, 0,
		-1.5, -1.5, 1.5, 1.5, 0, 0,
		1, 2, nan, 4, 5, 6,
	)
	truth := groundtruth.NewInteractionSet(groundtruth.Pair{Regulator: "K1", Target: "T1"})

	a, err := NewAssociator(DefaultConfig(), nil)
	require.NoError(t, err)
	table, err := a.BuildAssociations(x, y, truth)
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	assert.Equal(t, []core.FeatureID{"T3"}, table.SkippedTargets)

	k1 := table.Rows[0]
	assert.Equal(t, core.GeneID("K1"), k1.Regulator)
	assert.Equal(t, core.FeatureID("T1"), k1.Target)
	// (x'y - n*alpha) / x'x
	assert.InDelta(t, (8-0.06)/4, k1.Coef, 1e-9)
	assert.InDelta(t, 0, k1.Score, 1e-12)
	assert.True(t, k1.TP)
	assert.Equal(t, 6, k1.RegulatorCount)
	assert.InDelta(t, 2, k1.Euclidean, 1e-12)
	assert.InDelta(t, 4, k1.Manhattan, 1e-12)

	k2 := table.Rows[1]
	assert.Equal(t, core.FeatureID("T2"), k2.Target)
	assert.InDelta(t, (-6+0.06)/4, k2.Coef, 1e-9)
	assert.InDelta(t, k1.Strength-k2.Strength, k2.Score, 1e-12)
	assert.False(t, k2.TP)
	assert.Equal(t, 5, k2.RegulatorCount)
	assert.Equal(t, 1, table.TruePositives())
}

func TestTabulateDropsZeroCoefficients(t *testing.T) {
	samples := []string{"s1", "s2", "s3"}
	x := testkit.Matrix(t, []string{"K1"}, samples, 1, 2, 3)
	y := testkit.Matrix(t, []string{"T1"}, samples, 1, 2, 3)
	table := Tabulate(map[core.FeatureID]map[core.FeatureID]float64{
		"T1": {"K1": 0.5, "K2": 0},
	}, x, y, nil)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, 0.0, table.Rows[0].Euclidean)
	assert.False(t, table.Rows[0].TP)
}

func TestInternalValidation(t *testing.T) {
	table := &AssociationTable{Rows: []Association{
		{Regulator: "K1", Target: "A", Coef: -0.5},
		{Regulator: "K1", Target: "B", Coef: -0.4},
		{Regulator: "K2", Target: "C", Coef: 0.6},
		{Regulator: "K2", Target: "D", Coef: 0.7},
		{Regulator: "K2", Target: "E", Coef: 0.05},
		{Regulator: "K3", Target: "A", Coef: 0.9},
	}}
	nan := testkit.NaN
	ko := testkit.Matrix(t, []string{"A", "B", "C", "D", "E"}, []string{"K1", "K2"},
		2, nan,
		3, nan,
		nan, -1,
		nan, -2,
		nan, 9,
	)

	res, err := InternalValidation(table, ko, 0.1)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.Equal(t, 2, res.Negative)
	assert.Equal(t, 2, res.Positive)
	assert.InDelta(t, 4/math.Sqrt(0.5), res.T, 1e-9)
	assert.InDelta(t, 0.0299, res.PValue, 1e-3)

	_, err = InternalValidation(table, ko, 0.65)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientData))
}

func TestConfigValidation(t *testing.T) {
	_, err := ParseColumn("rank")
	assert.True(t, apperrors.IsConfiguration(err))

	c, err := ParseColumn("manhattan")
	require.NoError(t, err)
	assert.False(t, c.HigherIsStronger())
	assert.True(t, ColumnCoef.HigherIsStronger())

	_, err = NewAssociator(Config{Alpha: 0}, nil)
	assert.True(t, apperrors.IsConfiguration(err))
}
