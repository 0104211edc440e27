// Package groundtruth turns curated protein interaction databases into
// regulator -> measured feature pair sets.
package groundtruth

import (
	"sort"

	"gophospho/domain/core"
)

// Pair links a regulator to a measured feature (an ion or a reaction)
type Pair struct {
	Regulator core.GeneID
	Target    core.FeatureID
}

// InteractionSet is an immutable set of regulator-target pairs
type InteractionSet struct {
	pairs map[Pair]struct{}
}

// NewInteractionSet builds a set from pairs, ignoring duplicates
func NewInteractionSet(pairs ...Pair) *InteractionSet {
	s := &InteractionSet{pairs: make(map[Pair]struct{}, len(pairs))}
	for _, p := range pairs {
		s.pairs[p] = struct{}{}
	}
	return s
}

// Contains reports whether (reg, target) is a known interaction
func (s *InteractionSet) Contains(reg core.GeneID, target core.FeatureID) bool {
	_, ok := s.pairs[Pair{Regulator: reg, Target: target}]
	return ok
}

// Len returns the number of pairs
func (s *InteractionSet) Len() int { return len(s.pairs) }

// Union returns a new set holding the pairs of s and every other
func (s *InteractionSet) Union(others ...*InteractionSet) *InteractionSet {
	out := NewInteractionSet(s.Pairs()...)
	for _, o := range others {
		for p := range o.pairs {
			out.pairs[p] = struct{}{}
		}
	}
	return out
}

// Pairs returns every pair ordered by regulator then target
func (s *InteractionSet) Pairs() []Pair {
	out := make([]Pair, 0, len(s.pairs))
	for p := range s.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Regulator != out[j].Regulator {
			return out[i].Regulator < out[j].Regulator
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Regulators returns the distinct regulators, sorted
func (s *InteractionSet) Regulators() []core.GeneID {
	set := core.NewSet[core.GeneID]()
	for p := range s.pairs {
		set.Add(p.Regulator)
	}
	return set.Sorted()
}

// Targets returns the distinct targets, sorted
func (s *InteractionSet) Targets() []core.FeatureID {
	set := core.NewSet[core.FeatureID]()
	for p := range s.pairs {
		set.Add(p.Target)
	}
	return set.Sorted()
}
