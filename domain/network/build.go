package network

import (
	"strings"

	"gophospho/domain/core"
	apperrors "gophospho/internal/errors"
)

// Network is the filtered structural prior
type Network struct {
	Incidence     *Incidence
	GeneReactions map[core.GeneID][]core.ReactionID
	Substrates    map[core.ReactionID][]core.MetaboliteID
	Products      map[core.ReactionID][]core.MetaboliteID
	Report        BuildReport
}

// BuildReport counts what each filter removed
type BuildReport struct {
	Extracellular int
	Currency      int
	Exchange      int
	Biomass       int
	Metabolites   int
	Reactions     int
}

// Build filters the model and binarizes what remains. A currency list or
// exchange prefix that matches nothing is a configuration error: it means
// the name list no longer fits the model.
func Build(model *StoichiometricModel, f Filters) (*Network, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	var report BuildReport

	dropMetab := core.NewSet[core.MetaboliteID]()
	if f.ExtracellularSuffix != "" {
		for _, m := range model.Metabolites {
			if strings.HasSuffix(string(m.ID), f.ExtracellularSuffix) {
				dropMetab.Add(m.ID)
				report.Extracellular++
			}
		}
	}

	pattern, err := currencyPattern(f.CurrencyMetabolites)
	if err != nil {
		return nil, apperrors.Configuration("invalid currency metabolite pattern: %v", err)
	}
	if pattern != nil {
		for _, m := range model.Metabolites {
			if pattern.MatchString(m.Name) {
				if !dropMetab.Has(m.ID) {
					report.Currency++
				}
				dropMetab.Add(m.ID)
			}
		}
		if report.Currency == 0 {
			return nil, apperrors.Configuration("currency metabolite list matched no metabolite names; the name list is stale for this model")
		}
	}

	dropReact := core.NewSet[core.ReactionID]()
	prefixHits := 0
	for _, r := range model.Reactions {
		byPrefix := f.ExchangePrefix != "" && strings.HasPrefix(string(r.ID), f.ExchangePrefix)
		if byPrefix {
			prefixHits++
		}
		if r.Exchange || byPrefix {
			dropReact.Add(r.ID)
			report.Exchange++
		}
	}
	if f.ExchangePrefix != "" && prefixHits == 0 {
		return nil, apperrors.Configuration("exchange reaction prefix %q matched no reactions", f.ExchangePrefix)
	}
	known := make(core.Set[core.ReactionID], len(model.Reactions))
	for _, r := range model.Reactions {
		known.Add(r.ID)
	}
	for _, b := range f.BiomassReactions {
		if !known.Has(b) {
			return nil, apperrors.Configuration("biomass reaction %q not in model", b)
		}
		if !dropReact.Has(b) {
			dropReact.Add(b)
			report.Biomass++
		}
	}

	// Zero coefficients are dropped here, so the resulting incidence has no
	// empty rows or columns and a single pass reaches the fixed point.
	var entries []Entry
	substrates := make(map[core.ReactionID]core.Set[core.MetaboliteID])
	products := make(map[core.ReactionID]core.Set[core.MetaboliteID])
	for _, c := range model.Coefficients {
		if c.Value == 0 || dropMetab.Has(c.Metabolite) || dropReact.Has(c.Reaction) {
			continue
		}
		entries = append(entries, Entry{Metabolite: c.Metabolite, Reaction: c.Reaction})
		side := products
		if c.Value < 0 {
			side = substrates
		}
		if side[c.Reaction] == nil {
			side[c.Reaction] = core.NewSet[core.MetaboliteID]()
		}
		side[c.Reaction].Add(c.Metabolite)
	}
	inc := NewIncidence(entries)
	report.Metabolites, report.Reactions = inc.Dims()

	genes := make(map[core.GeneID][]core.ReactionID)
	seen := make(map[GeneReaction]bool)
	for _, gr := range model.Genes {
		if seen[gr] || !inc.HasReaction(gr.Reaction) {
			continue
		}
		seen[gr] = true
		genes[gr.Gene] = append(genes[gr.Gene], gr.Reaction)
	}

	return &Network{
		Incidence:     inc,
		GeneReactions: genes,
		Substrates:    flatten(substrates),
		Products:      flatten(products),
		Report:        report,
	}, nil
}

func flatten(in map[core.ReactionID]core.Set[core.MetaboliteID]) map[core.ReactionID][]core.MetaboliteID {
	out := make(map[core.ReactionID][]core.MetaboliteID, len(in))
	for r, s := range in {
		out[r] = s.Sorted()
	}
	return out
}

// Genes returns every gene with at least one retained reaction
func (n *Network) Genes() []core.GeneID {
	s := make(core.Set[core.GeneID], len(n.GeneReactions))
	for g := range n.GeneReactions {
		s.Add(g)
	}
	return s.Sorted()
}
