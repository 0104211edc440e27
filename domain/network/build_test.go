package network

import (
	"testing"

	"gophospho/domain/core"
	apperrors "gophospho/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toyModel() *StoichiometricModel {
	return &StoichiometricModel{
		Metabolites: []Metabolite{
			{ID: "s_glc", Name: "D-glucose [cytoplasm]"},
			{ID: "s_g6p", Name: "D-glucose 6-phosphate [cytoplasm]"},
			{ID: "s_f6p", Name: "D-fructose 6-phosphate [cytoplasm]"},
			{ID: "s_atp", Name: "ATP [cytoplasm]"},
			{ID: "s_adp", Name: "ADP [mitochondrion]"},
			{ID: "s_glc_b", Name: "D-glucose [boundary]"},
			{ID: "s_orphan", Name: "orphan [cytoplasm]"},
		},
		Reactions: []Reaction{
			{ID: "r_hxk"},
			{ID: "r_pgi"},
			{ID: "r_ex_glc", Exchange: true},
			{ID: "r_1812"},
			{ID: "r_atpase"},
		},
		Coefficients: []Coefficient{
			{Metabolite: "s_glc", Reaction: "r_hxk", Value: -1},
			{Metabolite: "s_atp", Reaction: "r_hxk", Value: -1},
			{Metabolite: "s_g6p", Reaction: "r_hxk", Value: 1},
			{Metabolite: "s_adp", Reaction: "r_hxk", Value: 1},
			{Metabolite: "s_g6p", Reaction: "r_pgi", Value: -1},
			{Metabolite: "s_f6p", Reaction: "r_pgi", Value: 1},
			{Metabolite: "s_glc_b", Reaction: "r_ex_glc", Value: -1},
			{Metabolite: "s_glc", Reaction: "r_ex_glc", Value: 1},
			{Metabolite: "s_f6p", Reaction: "r_1812", Value: -2.5},
			{Metabolite: "s_atp", Reaction: "r_atpase", Value: -1},
			{Metabolite: "s_adp", Reaction: "r_atpase", Value: 1},
			{Metabolite: "s_orphan", Reaction: "r_pgi", Value: 0},
		},
		Genes: []GeneReaction{
			{Gene: "YFR053C", Reaction: "r_hxk"},
			{Gene: "YBR196C", Reaction: "r_pgi"},
			{Gene: "YBR196C", Reaction: "r_pgi"},
			{Gene: "YEXCH", Reaction: "r_ex_glc"},
		},
	}
}

func toyFilters() Filters {
	f := DefaultFilters()
	f.BiomassReactions = []core.ReactionID{"r_1812"}
	return f
}

func TestBuild_FiltersAndBinarizes(t *testing.T) {
	net, err := Build(toyModel(), toyFilters())
	require.NoError(t, err)

	inc := net.Incidence
	assert.Equal(t, []core.MetaboliteID{"s_f6p", "s_g6p", "s_glc"}, inc.Metabolites())
	assert.Equal(t, []core.ReactionID{"r_hxk", "r_pgi"}, inc.Reactions())
	assert.Equal(t, 2, inc.Support("r_hxk"))
	assert.True(t, inc.Has("s_g6p", "r_pgi"))
	assert.False(t, inc.Has("s_atp", "r_hxk"))

	assert.Equal(t, 1, net.Report.Extracellular)
	assert.Equal(t, 2, net.Report.Currency)
	assert.Equal(t, 1, net.Report.Exchange)
	assert.Equal(t, 1, net.Report.Biomass)

	assert.Equal(t, map[core.GeneID][]core.ReactionID{
		"YFR053C": {"r_hxk"},
		"YBR196C": {"r_pgi"},
	}, net.GeneReactions)
	assert.Equal(t, []core.MetaboliteID{"s_glc"}, net.Substrates["r_hxk"])
	assert.Equal(t, []core.MetaboliteID{"s_g6p"}, net.Products["r_hxk"])
	assert.Equal(t, []core.GeneID{"YBR196C", "YFR053C"}, net.Genes())
}

func TestBuild_NoEmptyRowsOrColumns(t *testing.T) {
	net, err := Build(toyModel(), toyFilters())
	require.NoError(t, err)

	inc := net.Incidence
	for _, m := range inc.Metabolites() {
		assert.NotEmpty(t, inc.ReactionsOf(m), "metabolite %s has no reaction", m)
	}
	for _, r := range inc.Reactions() {
		assert.Positive(t, inc.Support(r), "reaction %s has no metabolite", r)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := Build(toyModel(), toyFilters())
	require.NoError(t, err)
	b, err := Build(toyModel(), toyFilters())
	require.NoError(t, err)
	assert.True(t, a.Incidence.Equal(b.Incidence))
}

func TestBinarizeIdempotent(t *testing.T) {
	net, err := Build(toyModel(), toyFilters())
	require.NoError(t, err)

	once := net.Incidence.Binarize()
	twice := once.Binarize()
	assert.True(t, net.Incidence.Equal(once))
	assert.True(t, once.Equal(twice))
	assert.Equal(t, once.Entries(), twice.Entries())
}

func TestBuild_StaleCurrencyListIsConfigurationError(t *testing.T) {
	f := toyFilters()
	f.CurrencyMetabolites = []string{"nothing-like-this"}

	_, err := Build(toyModel(), f)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestBuild_ExchangePrefixMustMatch(t *testing.T) {
	f := toyFilters()
	f.ExchangePrefix = "R_EX_"
	_, err := Build(toyModel(), f)
	assert.True(t, apperrors.IsConfiguration(err))

	f.ExchangePrefix = "r_ex_"
	_, err = Build(toyModel(), f)
	assert.NoError(t, err)
}

func TestBuild_UnknownBiomassReaction(t *testing.T) {
	f := toyFilters()
	f.BiomassReactions = []core.ReactionID{"r_missing"}
	_, err := Build(toyModel(), f)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestBuild_DanglingCoefficient(t *testing.T) {
	m := toyModel()
	m.Coefficients = append(m.Coefficients, Coefficient{Metabolite: "s_nope", Reaction: "r_hxk", Value: 1})
	_, err := Build(m, toyFilters())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestCurrencyMatchIgnoresCompartment(t *testing.T) {
	p, err := currencyPattern([]string{"NAD(+)", "ADP"})
	require.NoError(t, err)
	assert.True(t, p.MatchString("NAD(+) [mitochondrion]"))
	assert.True(t, p.MatchString("ADP [cytoplasm]"))
	assert.False(t, p.MatchString("dADP [cytoplasm]"))
	assert.False(t, p.MatchString("NAD(+)"))
}

func TestIncidenceRestrictKeepsInvariant(t *testing.T) {
	inc := NewIncidence([]Entry{
		{"m1", "R1"}, {"m2", "R1"}, {"m3", "R1"},
		{"m2", "R2"}, {"m3", "R2"},
		{"m1", "R3"},
		{"m4", "R4"},
	})
	sub := inc.Restrict(core.NewSet[core.MetaboliteID]("m1", "m2"))
	assert.Equal(t, []core.ReactionID{"R1", "R2", "R3"}, sub.Reactions())
	assert.Equal(t, 2, sub.Support("R1"))

	dropped := sub.DropReactions(func(_ core.ReactionID, support int) bool { return support <= 1 })
	assert.Equal(t, []core.ReactionID{"R1"}, dropped.Reactions())
	assert.Equal(t, []core.ReactionID{"R1", "R3"}, inc.ReactionsOf("m1"))
}

func TestMetaboliteMap_DeduplicatesByIon(t *testing.T) {
	mm := NewMetaboliteMap([]MassAnnotation{
		{Metabolite: "s_glc", Mass: 179.0561},
		{Metabolite: "s_glc_m", Mass: 179.0559},
		{Metabolite: "s_g6p", Mass: 259.0224},
		{Metabolite: "s_g6p", Mass: 300.1},
	}, 2)

	assert.Equal(t, 2, mm.Len())
	ion, ok := mm.Ion("s_glc")
	assert.True(t, ok)
	assert.Equal(t, core.IonID("179.06"), ion)
	_, ok = mm.Ion("s_glc_m")
	assert.False(t, ok)
	m, ok := mm.Metabolite("259.02")
	assert.True(t, ok)
	assert.Equal(t, core.MetaboliteID("s_g6p"), m)

	measured := mm.Restrict(core.NewSet[core.IonID]("259.02"))
	assert.Equal(t, 1, measured.Len())
	assert.True(t, measured.Metabolites().Has("s_g6p"))
}
