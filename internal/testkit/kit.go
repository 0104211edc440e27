// Package testkit holds small synthetic fixtures shared by package tests
package testkit

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"gophospho/adapters/rng"
	"gophospho/domain/core"
	"gophospho/domain/network"
	"gophospho/domain/omics"
	"gophospho/ports"

	"github.com/stretchr/testify/require"
)

// ToyModel is a 5-metabolite x 3-reaction network:
//
//	R1 = {m1, m2, m3}   gene G1
//	R2 = {m2, m3, m4}   gene G2
//	R3 = {m1, m5}       gene G3
func ToyModel() *network.StoichiometricModel {
	model := &network.StoichiometricModel{}
	for _, m := range []string{"m1", "m2", "m3", "m4", "m5"} {
		model.Metabolites = append(model.Metabolites, network.Metabolite{ID: core.MetaboliteID(m), Name: m + " [cytoplasm]"})
	}
	members := map[core.ReactionID][]core.MetaboliteID{
		"R1": {"m1", "m2", "m3"},
		"R2": {"m2", "m3", "m4"},
		"R3": {"m1", "m5"},
	}
	for _, r := range []core.ReactionID{"R1", "R2", "R3"} {
		model.Reactions = append(model.Reactions, network.Reaction{ID: r})
		for i, m := range members[r] {
			v := 1.0
			if i == 0 {
				v = -1
			}
			model.Coefficients = append(model.Coefficients, network.Coefficient{Metabolite: m, Reaction: r, Value: v})
		}
	}
	model.Genes = []network.GeneReaction{
		{Gene: "G1", Reaction: "R1"},
		{Gene: "G2", Reaction: "R2"},
		{Gene: "G3", Reaction: "R3"},
	}
	return model
}

// ToyNetwork builds ToyModel without any filtering
func ToyNetwork(t testing.TB) *network.Network {
	t.Helper()
	net, err := network.Build(ToyModel(), network.Filters{})
	require.NoError(t, err)
	return net
}

// ToyIonMap maps m1..m5 to ions 100.01..500.05
func ToyIonMap() *network.MetaboliteMap {
	return network.NewMetaboliteMap([]network.MassAnnotation{
		{Metabolite: "m1", Mass: 100.01},
		{Metabolite: "m2", Mass: 200.02},
		{Metabolite: "m3", Mass: 300.03},
		{Metabolite: "m4", Mass: 400.04},
		{Metabolite: "m5", Mass: 500.05},
	}, 2)
}

// Matrix builds a matrix from row-major values, NaN for missing
func Matrix(t testing.TB, rows []string, cols []string, values ...float64) *omics.Matrix {
	t.Helper()
	r := make([]core.FeatureID, len(rows))
	for i, id := range rows {
		r[i] = core.FeatureID(id)
	}
	c := make([]core.SampleID, len(cols))
	for i, id := range cols {
		c[i] = core.SampleID(id)
	}
	m, err := omics.New(r, c, values)
	require.NoError(t, err)
	return m
}

// RandomMatrix fills a rows x cols matrix with standard normal draws
func RandomMatrix(t testing.TB, rows, cols []string, seed int64) *omics.Matrix {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, len(rows)*len(cols))
	for i := range values {
		values[i] = rng.NormFloat64()
	}
	return Matrix(t, rows, cols, values...)
}

// IDs returns prefix1..prefixN
func IDs(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + strconv.Itoa(i+1)
	}
	return out
}

// NaN is shorthand for missing values in fixtures
var NaN = math.NaN()

// RNG returns the seeded stream adapter
func RNG() ports.RNGPort { return rng.NewSeededAdapter() }
