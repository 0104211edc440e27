package groundtruth

import (
	"gophospho/domain/core"
	"gophospho/domain/network"
	"gophospho/internal"
	apperrors "gophospho/internal/errors"
)

// Resolution chooses what a target gene is translated to
type Resolution string

const (
	// TargetIons resolves gene -> reactions -> metabolites -> measured ions
	TargetIons Resolution = "ions"
	// TargetReactions resolves gene -> reactions
	TargetReactions Resolution = "reactions"
)

// Source is one database's raw interactions
type Source struct {
	Name     string
	Pairs    []GenePair
	Directed bool
}

// BuildConfig controls target resolution
type BuildConfig struct {
	Target Resolution
	// MaxGenesPerMetabolite drops metabolites linked to more genes than
	// this through their reactions; 0 disables the filter.
	MaxGenesPerMetabolite int
	// Measured, when set, restricts targets to these features
	Measured core.Set[core.FeatureID]
}

// Stats counts pairs surviving each build stage
type Stats struct {
	Raw      int
	NoSelf   int
	Oriented int
	Resolved int
}

// Builder resolves database pairs against a network
type Builder struct {
	net    *network.Network
	mm     *network.MetaboliteMap
	cfg    BuildConfig
	genes  map[core.MetaboliteID]int
	logger *internal.Logger
}

// NewBuilder checks cfg against the network. TargetIons needs a metabolite map.
func NewBuilder(net *network.Network, mm *network.MetaboliteMap, cfg BuildConfig, logger *internal.Logger) (*Builder, error) {
	if net == nil {
		return nil, apperrors.InvalidInput("ground truth builder needs a network")
	}
	switch cfg.Target {
	case "":
		cfg.Target = TargetIons
	case TargetIons, TargetReactions:
	default:
		return nil, apperrors.Configuration("unknown target resolution %q", cfg.Target)
	}
	if cfg.Target == TargetIons && mm == nil {
		return nil, apperrors.Configuration("ion targets need a metabolite map")
	}
	b := &Builder{net: net, mm: mm, cfg: cfg, logger: internal.OrNop(logger).Named("groundtruth")}
	b.genes = geneConnectivity(net)
	return b, nil
}

// geneConnectivity counts distinct genes reaching each metabolite
func geneConnectivity(net *network.Network) map[core.MetaboliteID]int {
	byMetab := make(map[core.MetaboliteID]core.Set[core.GeneID])
	for g, reactions := range net.GeneReactions {
		for _, r := range reactions {
			for _, m := range net.Incidence.MetabolitesOf(r) {
				if byMetab[m] == nil {
					byMetab[m] = core.NewSet[core.GeneID]()
				}
				byMetab[m].Add(g)
			}
		}
	}
	out := make(map[core.MetaboliteID]int, len(byMetab))
	for m, s := range byMetab {
		out[m] = len(s)
	}
	return out
}

// Build resolves one source into an interaction set
func (b *Builder) Build(src Source) (*InteractionSet, Stats) {
	st := Stats{Raw: len(src.Pairs)}
	var oriented [][2]core.GeneID
	for _, p := range src.Pairs {
		if p.A == p.B {
			continue
		}
		st.NoSelf++
		oriented = append(oriented, [2]core.GeneID{p.A, p.B})
		if !src.Directed {
			oriented = append(oriented, [2]core.GeneID{p.B, p.A})
		}
	}
	st.Oriented = len(oriented)

	cache := make(map[core.GeneID][]core.FeatureID)
	out := NewInteractionSet()
	for _, o := range oriented {
		targets, ok := cache[o[1]]
		if !ok {
			targets = b.resolve(o[1])
			cache[o[1]] = targets
		}
		for _, t := range targets {
			out.pairs[Pair{Regulator: o[0], Target: t}] = struct{}{}
		}
	}
	st.Resolved = out.Len()
	b.logger.Info("%s: %d raw, %d without self pairs, %d resolved", src.Name, st.Raw, st.NoSelf, st.Resolved)
	return out, st
}

// BuildAll resolves every source and returns their union
func (b *Builder) BuildAll(sources ...Source) (*InteractionSet, map[string]Stats) {
	stats := make(map[string]Stats, len(sources))
	out := NewInteractionSet()
	for _, src := range sources {
		set, st := b.Build(src)
		stats[src.Name] = st
		out = out.Union(set)
	}
	return out, stats
}

func (b *Builder) resolve(gene core.GeneID) []core.FeatureID {
	targets := core.NewSet[core.FeatureID]()
	for _, r := range b.net.GeneReactions[gene] {
		if b.cfg.Target == TargetReactions {
			b.keep(targets, core.FeatureID(r))
			continue
		}
		for _, m := range b.net.Incidence.MetabolitesOf(r) {
			if limit := b.cfg.MaxGenesPerMetabolite; limit > 0 && b.genes[m] > limit {
				continue
			}
			if ion, ok := b.mm.Ion(m); ok {
				b.keep(targets, core.FeatureID(ion))
			}
		}
	}
	return targets.Sorted()
}

func (b *Builder) keep(targets core.Set[core.FeatureID], f core.FeatureID) {
	if b.cfg.Measured == nil || b.cfg.Measured.Has(f) {
		targets.Add(f)
	}
}
