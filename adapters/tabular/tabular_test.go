package tabular

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gophospho/domain/core"
	"gophospho/domain/network"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/crossval"
	"gophospho/internal/enrichment"
	"gophospho/internal/testkit"
	"gophospho/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadMatrix_TSV(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "fc.tab", "id\ts1\ts2\ts3\nYAL1\t1.5\tNaN\t-2\nYAL2\t\tNA\t0.25\nYAL3\t3\n")

	m, err := NewStore(nil).ReadMatrix(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []core.SampleID{"s1", "s2", "s3"}, m.Cols())
	assert.Equal(t, []core.FeatureID{"YAL1", "YAL2", "YAL3"}, m.Rows())

	v, _ := m.Get("YAL1", "s3")
	assert.Equal(t, -2.0, v)
	v, _ = m.Get("YAL1", "s2")
	assert.True(t, math.IsNaN(v))
	v, _ = m.Get("YAL2", "s1")
	assert.True(t, math.IsNaN(v))
	v, _ = m.Get("YAL3", "s3")
	assert.True(t, math.IsNaN(v), "short rows are padded")
}

func TestReadMatrix_XLSX(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "growth.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"id", "a_1", "a_2"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"rate", 0.2, 0.4}))
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	m, err := NewStore(nil).ReadMatrix(context.Background(), p)
	require.NoError(t, err)
	v, ok := m.Get("rate", "a_2")
	require.True(t, ok)
	assert.InDelta(t, 0.4, v, 1e-12)
}

func TestReadMatrix_Errors(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(nil)

	_, err := s.ReadMatrix(context.Background(), filepath.Join(dir, "missing.tab"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	p := writeFile(t, dir, "bad.tab", "id\ts1\nYAL1\tabc\n")
	_, err = s.ReadMatrix(context.Background(), p)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	p = writeFile(t, dir, "dup.tab", "id\ts1\nYAL1\t1\nYAL1\t2\n")
	_, err = s.ReadMatrix(context.Background(), p)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestWriteMatrix(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(nil)
	m := testkit.Matrix(t, []string{"R1", "R2"}, []string{"s1", "s2"}, 0.5, testkit.NaN, -1, 2)
	p := filepath.Join(dir, "out", "activities.tab")

	require.NoError(t, s.WriteMatrix(context.Background(), p, m))
	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "id\ts1\ts2\nR1\t0.5\t\nR2\t-1\t2\n", string(raw))

	back, err := s.ReadMatrix(context.Background(), p)
	require.NoError(t, err)
	v, _ := back.Get("R1", "s2")
	assert.True(t, math.IsNaN(v))
}

func TestReadModel(t *testing.T) {
	dir := t.TempDir()
	paths := ports.ModelPaths{
		Metabolites:   writeFile(t, dir, "mets.tab", "id\tname\nm1\tATP [cytoplasm]\nm2\tADP [cytoplasm]\n"),
		Reactions:     writeFile(t, dir, "rxns.tab", "id\texchange\nR1\t0\nR_EX\ttrue\n"),
		Stoichiometry: writeFile(t, dir, "s.tab", "metabolite\treaction\tcoefficient\nm1\tR1\t-1\nm2\tR1\t1\nm2\tR_EX\t-1\n"),
		Genes:         writeFile(t, dir, "genes.tab", "reaction\tgene\nR1\tYAL1\n"),
	}
	s := NewStore(nil)
	model, err := s.ReadModel(context.Background(), paths)
	require.NoError(t, err)
	assert.Len(t, model.Metabolites, 2)
	assert.Equal(t, "ATP [cytoplasm]", model.Metabolites[0].Name)
	assert.Equal(t, []network.Reaction{{ID: "R1"}, {ID: "R_EX", Exchange: true}}, model.Reactions)
	assert.Len(t, model.Coefficients, 3)
	assert.Equal(t, -1.0, model.Coefficients[0].Value)
	assert.Equal(t, []network.GeneReaction{{Gene: "YAL1", Reaction: "R1"}}, model.Genes)

	masses, err := s.ReadMassMap(context.Background(), writeFile(t, dir, "mz.tab", "id\tmz\nm1\t506.9957\nm2\t426.0294\n"))
	require.NoError(t, err)
	assert.Equal(t, core.MetaboliteID("m2"), masses[1].Metabolite)
	assert.InDelta(t, 426.0294, masses[1].Mass, 1e-9)

	paths.Reactions = writeFile(t, dir, "rxns2.tab", "id\tkind\nR1\tx\n")
	_, err = s.ReadModel(context.Background(), paths)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestWriteResults(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(nil)
	ctx := context.Background()

	table := &enrichment.AssociationTable{Rows: []enrichment.Association{
		{Regulator: "K1", Target: "T1", Coef: -0.5, Score: 0, Strength: 0.5, TP: true, RegulatorCount: 4, Euclidean: 1, Manhattan: 2},
	}}
	p := filepath.Join(dir, "assoc.tab")
	require.NoError(t, s.WriteAssociations(ctx, p, table))
	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "K1\tT1\t-0.5\t0\t0.5\ttrue\t4\t1\t2", strings.Split(strings.TrimSpace(string(raw)), "\n")[1])

	sum := &enrichment.Summary{Column: enrichment.ColumnStrength, AUC: math.NaN(), Empty: true,
		Rows: []enrichment.SweepRow{{Threshold: math.Inf(1), PValue: 1, M: 3}}}
	p = filepath.Join(dir, "enrichment.tab")
	require.NoError(t, s.WriteEnrichment(ctx, p, sum))
	raw, err = os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "strength\t+Inf\t0\t1\t3\t0\t0\t0\t\ttrue", strings.Split(strings.TrimSpace(string(raw)), "\n")[1])

	rows := []crossval.Row{{
		Comparison: crossval.Comparison{Name: "dynamic", Dataset: "dynamic", FeatureType: "kinase", Growth: "growth"},
		Name:       "YAL1", Type: crossval.CorrFeatures, Cor: math.NaN(), Trial: 3,
	}}
	p = filepath.Join(dir, "pred.tab")
	require.NoError(t, s.WritePredictions(ctx, p, rows))
	raw, err = os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "dynamic\tdynamic\tkinase\tgrowth\tYAL1\tfeatures\t\t3", strings.Split(strings.TrimSpace(string(raw)), "\n")[1])
}
