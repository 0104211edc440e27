package network

import (
	"sort"

	"gophospho/domain/core"
)

// Incidence is a binary metabolite x reaction participation matrix.
// Stoichiometric coefficients are discarded; only presence is kept.
type Incidence struct {
	metabolites []core.MetaboliteID
	reactions   []core.ReactionID
	byReaction  map[core.ReactionID]core.Set[core.MetaboliteID]
	byMetab     map[core.MetaboliteID]core.Set[core.ReactionID]
}

// Entry marks one metabolite taking part in one reaction
type Entry struct {
	Metabolite core.MetaboliteID
	Reaction   core.ReactionID
}

// NewIncidence builds an incidence matrix from entries. Duplicate entries
// collapse to one, which makes construction idempotent over binary input.
func NewIncidence(entries []Entry) *Incidence {
	inc := &Incidence{
		byReaction: make(map[core.ReactionID]core.Set[core.MetaboliteID]),
		byMetab:    make(map[core.MetaboliteID]core.Set[core.ReactionID]),
	}
	for _, e := range entries {
		if inc.byReaction[e.Reaction] == nil {
			inc.byReaction[e.Reaction] = core.NewSet[core.MetaboliteID]()
		}
		if inc.byMetab[e.Metabolite] == nil {
			inc.byMetab[e.Metabolite] = core.NewSet[core.ReactionID]()
		}
		inc.byReaction[e.Reaction].Add(e.Metabolite)
		inc.byMetab[e.Metabolite].Add(e.Reaction)
	}
	inc.index()
	return inc
}

func (inc *Incidence) index() {
	inc.metabolites = make([]core.MetaboliteID, 0, len(inc.byMetab))
	for m := range inc.byMetab {
		inc.metabolites = append(inc.metabolites, m)
	}
	sort.Slice(inc.metabolites, func(i, j int) bool { return inc.metabolites[i] < inc.metabolites[j] })

	inc.reactions = make([]core.ReactionID, 0, len(inc.byReaction))
	for r := range inc.byReaction {
		inc.reactions = append(inc.reactions, r)
	}
	sort.Slice(inc.reactions, func(i, j int) bool { return inc.reactions[i] < inc.reactions[j] })
}

// Metabolites returns the row ids in sorted order
func (inc *Incidence) Metabolites() []core.MetaboliteID {
	return append([]core.MetaboliteID(nil), inc.metabolites...)
}

// Reactions returns the column ids in sorted order
func (inc *Incidence) Reactions() []core.ReactionID {
	return append([]core.ReactionID(nil), inc.reactions...)
}

// Dims returns the number of metabolites and reactions
func (inc *Incidence) Dims() (int, int) { return len(inc.metabolites), len(inc.reactions) }

// Has reports whether metabolite m takes part in reaction r
func (inc *Incidence) Has(m core.MetaboliteID, r core.ReactionID) bool {
	return inc.byReaction[r].Has(m)
}

// HasReaction reports whether r is a column
func (inc *Incidence) HasReaction(r core.ReactionID) bool {
	_, ok := inc.byReaction[r]
	return ok
}

// Support returns the number of metabolites in reaction r
func (inc *Incidence) Support(r core.ReactionID) int { return len(inc.byReaction[r]) }

// MetabolitesOf returns the sorted metabolites of reaction r
func (inc *Incidence) MetabolitesOf(r core.ReactionID) []core.MetaboliteID {
	return inc.byReaction[r].Sorted()
}

// ReactionsOf returns the sorted reactions metabolite m takes part in
func (inc *Incidence) ReactionsOf(m core.MetaboliteID) []core.ReactionID {
	return inc.byMetab[m].Sorted()
}

// Entries returns every nonzero cell, ordered by reaction then metabolite
func (inc *Incidence) Entries() []Entry {
	var out []Entry
	for _, r := range inc.reactions {
		for _, m := range inc.byReaction[r].Sorted() {
			out = append(out, Entry{Metabolite: m, Reaction: r})
		}
	}
	return out
}

// Binarize returns an incidence with the same nonzero pattern. Applying it
// to an already binary matrix yields an equal matrix.
func (inc *Incidence) Binarize() *Incidence {
	return NewIncidence(inc.Entries())
}

// Restrict keeps the rows in keep. Columns left without rows disappear, so
// the no-empty-row/column invariant still holds.
func (inc *Incidence) Restrict(keep core.Set[core.MetaboliteID]) *Incidence {
	var entries []Entry
	for _, e := range inc.Entries() {
		if keep.Has(e.Metabolite) {
			entries = append(entries, e)
		}
	}
	return NewIncidence(entries)
}

// DropReactions removes columns for which drop returns true
func (inc *Incidence) DropReactions(drop func(r core.ReactionID, support int) bool) *Incidence {
	var entries []Entry
	for _, e := range inc.Entries() {
		if !drop(e.Reaction, inc.Support(e.Reaction)) {
			entries = append(entries, e)
		}
	}
	return NewIncidence(entries)
}

// Prune drops empty rows and columns until none remain. Entry-backed
// matrices never hold empty lines, so a single rebuild reaches the fixed point.
func (inc *Incidence) Prune() *Incidence {
	return NewIncidence(inc.Entries())
}

// Equal reports whether two incidence matrices have the same pattern
func (inc *Incidence) Equal(other *Incidence) bool {
	a, b := inc.Entries(), other.Entries()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
