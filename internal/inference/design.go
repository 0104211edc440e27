package inference

import (
	"sort"

	"gophospho/domain/core"
	"gophospho/domain/network"
	"gophospho/internal/groundtruth"
)

// Design is a binary prior linking activity columns (reactions or
// regulators) to the data rows they act on.
type Design struct {
	columns []core.FeatureID
	members map[core.FeatureID][]core.FeatureID
}

// NewDesign builds a design from column -> data rows. Empty columns and
// duplicate rows are dropped; columns are kept in sorted order.
func NewDesign(members map[core.FeatureID][]core.FeatureID) *Design {
	d := &Design{members: make(map[core.FeatureID][]core.FeatureID, len(members))}
	for col, rows := range members {
		set := core.NewSet(rows...)
		if len(set) == 0 {
			continue
		}
		d.members[col] = set.Sorted()
		d.columns = append(d.columns, col)
	}
	sort.Slice(d.columns, func(i, j int) bool { return d.columns[i] < d.columns[j] })
	return d
}

// FromNetwork maps each reaction to the measured ions of its metabolites.
// A nil map uses metabolite ids as row ids.
func FromNetwork(inc *network.Incidence, mm *network.MetaboliteMap) *Design {
	if mm == nil {
		mm = network.Identity(inc)
	}
	members := make(map[core.FeatureID][]core.FeatureID)
	for _, r := range inc.Reactions() {
		for _, m := range inc.MetabolitesOf(r) {
			if ion, ok := mm.Ion(m); ok {
				members[core.FeatureID(r)] = append(members[core.FeatureID(r)], core.FeatureID(ion))
			}
		}
	}
	return NewDesign(members)
}

// DesignFromInteractions uses regulators as columns and their targets as
// rows, for per-regulator activities.
func DesignFromInteractions(set *groundtruth.InteractionSet) *Design {
	members := make(map[core.FeatureID][]core.FeatureID)
	for _, p := range set.Pairs() {
		reg := core.FeatureID(p.Regulator)
		members[reg] = append(members[reg], p.Target)
	}
	return NewDesign(members)
}

// Columns returns the activity ids in sorted order
func (d *Design) Columns() []core.FeatureID { return append([]core.FeatureID(nil), d.columns...) }

// Rows returns every data row used by some column
func (d *Design) Rows() []core.FeatureID {
	s := core.NewSet[core.FeatureID]()
	for _, rows := range d.members {
		for _, r := range rows {
			s.Add(r)
		}
	}
	return s.Sorted()
}
