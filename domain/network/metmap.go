package network

import (
	"strconv"

	"gophospho/domain/core"
)

// MassAnnotation gives the measured mass of a network metabolite
type MassAnnotation struct {
	Metabolite core.MetaboliteID
	Mass       float64
}

// MetaboliteMap joins network metabolites to measured ions. After
// construction each ion maps back to at most one metabolite.
type MetaboliteMap struct {
	toIon   map[core.MetaboliteID]core.IonID
	fromIon map[core.IonID]core.MetaboliteID
}

// IonKey renders a mass as the rounded ion identifier used in the
// metabolomics tables ("%.2f" for precision 2).
func IonKey(mass float64, precision int) core.IonID {
	return core.IonID(strconv.FormatFloat(mass, 'f', precision, 64))
}

// NewMetaboliteMap rounds every annotated mass to precision decimals and
// keeps the first metabolite seen for each rounded key.
func NewMetaboliteMap(annotations []MassAnnotation, precision int) *MetaboliteMap {
	mm := &MetaboliteMap{
		toIon:   make(map[core.MetaboliteID]core.IonID),
		fromIon: make(map[core.IonID]core.MetaboliteID),
	}
	for _, a := range annotations {
		ion := IonKey(a.Mass, precision)
		if _, taken := mm.fromIon[ion]; taken {
			continue
		}
		if _, mapped := mm.toIon[a.Metabolite]; mapped {
			continue
		}
		mm.fromIon[ion] = a.Metabolite
		mm.toIon[a.Metabolite] = ion
	}
	return mm
}

// Restrict keeps the ions present in measured
func (mm *MetaboliteMap) Restrict(measured core.Set[core.IonID]) *MetaboliteMap {
	out := &MetaboliteMap{
		toIon:   make(map[core.MetaboliteID]core.IonID),
		fromIon: make(map[core.IonID]core.MetaboliteID),
	}
	for ion, m := range mm.fromIon {
		if measured.Has(ion) {
			out.fromIon[ion] = m
			out.toIon[m] = ion
		}
	}
	return out
}

// Ion returns the ion measured for metabolite m
func (mm *MetaboliteMap) Ion(m core.MetaboliteID) (core.IonID, bool) {
	ion, ok := mm.toIon[m]
	return ion, ok
}

// Metabolite returns the network metabolite behind ion
func (mm *MetaboliteMap) Metabolite(ion core.IonID) (core.MetaboliteID, bool) {
	m, ok := mm.fromIon[ion]
	return m, ok
}

// Len returns the number of mapped pairs
func (mm *MetaboliteMap) Len() int { return len(mm.toIon) }

// Metabolites returns the mapped metabolites as a set
func (mm *MetaboliteMap) Metabolites() core.Set[core.MetaboliteID] {
	s := make(core.Set[core.MetaboliteID], len(mm.toIon))
	for m := range mm.toIon {
		s.Add(m)
	}
	return s
}

// Identity maps every metabolite of the incidence to an ion of the same
// name; used when a dataset is already indexed by network ids.
func Identity(inc *Incidence) *MetaboliteMap {
	mm := &MetaboliteMap{
		toIon:   make(map[core.MetaboliteID]core.IonID),
		fromIon: make(map[core.IonID]core.MetaboliteID),
	}
	for _, m := range inc.Metabolites() {
		mm.toIon[m] = core.IonID(m)
		mm.fromIon[core.IonID(m)] = m
	}
	return mm
}
