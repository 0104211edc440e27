// Package network derives the binary reaction/metabolite structure used as
// a prior for activity inference from an already parsed metabolic model.
package network

import (
	"fmt"
	"regexp"
	"strings"

	"gophospho/domain/core"
	apperrors "gophospho/internal/errors"
)

// Metabolite is a model species
type Metabolite struct {
	ID   core.MetaboliteID
	Name string // display name, e.g. "ATP [cytoplasm]"
}

// Reaction is a model reaction
type Reaction struct {
	ID       core.ReactionID
	Exchange bool
}

// Coefficient is one stoichiometric matrix cell
type Coefficient struct {
	Metabolite core.MetaboliteID
	Reaction   core.ReactionID
	Value      float64
}

// GeneReaction associates a gene with a reaction it catalyses
type GeneReaction struct {
	Gene     core.GeneID
	Reaction core.ReactionID
}

// StoichiometricModel is the parsed model consumed by Build
type StoichiometricModel struct {
	Metabolites  []Metabolite
	Reactions    []Reaction
	Coefficients []Coefficient
	Genes        []GeneReaction
}

// DefaultCurrencyMetabolites are cofactors and common ions removed before
// inference because their ubiquity carries no information.
var DefaultCurrencyMetabolites = []string{
	"biomass", "acetyl-CoA", "carbon dioxide", "coenzyme A", "L-glutamate", "water", "hydrogen peroxide",
	"H+", "NAD(+)", "NADH", "NADP(+)", "NADPH", "ammonium", "oxygen", "phosphate", "diphosphate", "2-oxoglutarate",
	"acyl-CoA", "ADP", "AMP", "ATP", "UDP", "UMP", "UTP", "CDP", "CMP", "CTP", "GDP", "GMP", "GTP",
	"dADP", "dAMP", "dATP", "dUDP", "dUMP", "dUTP", "dCDP", "dCMP", "dCTP", "dGDP", "dGMP", "dGTP",
}

// Filters configures which parts of the model are removed
type Filters struct {
	// ExtracellularSuffix marks boundary metabolites by id suffix
	ExtracellularSuffix string
	// CurrencyMetabolites are display names matched as "<name> [<compartment>]"
	CurrencyMetabolites []string
	// ExchangePrefix additionally marks exchange reactions by id prefix
	ExchangePrefix string
	// BiomassReactions are dropped explicitly
	BiomassReactions []core.ReactionID
}

// DefaultFilters mirrors the yeast consensus model conventions
func DefaultFilters() Filters {
	return Filters{
		ExtracellularSuffix: "_b",
		CurrencyMetabolites: DefaultCurrencyMetabolites,
	}
}

// currencyPattern compiles the compartment-independent name pattern
func currencyPattern(names []string) (*regexp.Regexp, error) {
	if len(names) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.Compile(fmt.Sprintf(`^(?:%s) \[.*\]`, strings.Join(quoted, "|")))
}

// Validate checks the model for dangling references
func (m *StoichiometricModel) Validate() error {
	metabs := make(core.Set[core.MetaboliteID], len(m.Metabolites))
	for _, mt := range m.Metabolites {
		metabs.Add(mt.ID)
	}
	reacts := make(core.Set[core.ReactionID], len(m.Reactions))
	for _, r := range m.Reactions {
		reacts.Add(r.ID)
	}
	for _, c := range m.Coefficients {
		if !metabs.Has(c.Metabolite) {
			return apperrors.InvalidInput("coefficient references unknown metabolite %q", c.Metabolite)
		}
		if !reacts.Has(c.Reaction) {
			return apperrors.InvalidInput("coefficient references unknown reaction %q", c.Reaction)
		}
	}
	return nil
}
