// Package omics holds labelled fold-change and activity matrices.
//
// A Matrix is indexed by feature rows (ions, kinases, transcription
// factors, reactions) and sample columns (strains or conditions). Missing
// values are NaN; an activity that was never estimated for a sample is
// NaN, never zero.
package omics

import (
	"fmt"
	"math"
	"math/rand"

	"gophospho/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Matrix is an immutable feature x sample matrix
type Matrix struct {
	rows   []core.FeatureID
	cols   []core.SampleID
	rowIdx map[core.FeatureID]int
	colIdx map[core.SampleID]int
	data   []float64 // row-major
}

// New creates a matrix from row-major data. Duplicate row or column ids
// are rejected.
func New(rows []core.FeatureID, cols []core.SampleID, data []float64) (*Matrix, error) {
	if len(data) != len(rows)*len(cols) {
		return nil, fmt.Errorf("matrix data has %d values, want %d x %d", len(data), len(rows), len(cols))
	}
	m := &Matrix{
		rows:   append([]core.FeatureID(nil), rows...),
		cols:   append([]core.SampleID(nil), cols...),
		rowIdx: make(map[core.FeatureID]int, len(rows)),
		colIdx: make(map[core.SampleID]int, len(cols)),
		data:   append([]float64(nil), data...),
	}
	for i, r := range m.rows {
		if _, dup := m.rowIdx[r]; dup {
			return nil, fmt.Errorf("duplicate row id %q", r)
		}
		m.rowIdx[r] = i
	}
	for j, c := range m.cols {
		if _, dup := m.colIdx[c]; dup {
			return nil, fmt.Errorf("duplicate column id %q", c)
		}
		m.colIdx[c] = j
	}
	return m, nil
}

// MustNew is New for literals in tests and fixtures
func MustNew(rows []core.FeatureID, cols []core.SampleID, data []float64) *Matrix {
	m, err := New(rows, cols, data)
	if err != nil {
		panic(err)
	}
	return m
}

// Dims returns the number of rows and columns
func (m *Matrix) Dims() (int, int) { return len(m.rows), len(m.cols) }

// Rows returns a copy of the row ids
func (m *Matrix) Rows() []core.FeatureID { return append([]core.FeatureID(nil), m.rows...) }

// Cols returns a copy of the column ids
func (m *Matrix) Cols() []core.SampleID { return append([]core.SampleID(nil), m.cols...) }

// HasRow reports whether r is a row id
func (m *Matrix) HasRow(r core.FeatureID) bool {
	_, ok := m.rowIdx[r]
	return ok
}

// HasCol reports whether c is a column id
func (m *Matrix) HasCol(c core.SampleID) bool {
	_, ok := m.colIdx[c]
	return ok
}

// At returns the value at position (i, j)
func (m *Matrix) At(i, j int) float64 { return m.data[i*len(m.cols)+j] }

// Get returns the value for (row, col); ok is false if either id is absent
func (m *Matrix) Get(r core.FeatureID, c core.SampleID) (float64, bool) {
	i, ok := m.rowIdx[r]
	if !ok {
		return math.NaN(), false
	}
	j, ok := m.colIdx[c]
	if !ok {
		return math.NaN(), false
	}
	return m.At(i, j), true
}

// Row returns a copy of the values of row r in column order
func (m *Matrix) Row(r core.FeatureID) ([]float64, bool) {
	i, ok := m.rowIdx[r]
	if !ok {
		return nil, false
	}
	n := len(m.cols)
	return append([]float64(nil), m.data[i*n:(i+1)*n]...), true
}

// Col returns a copy of the values of column c in row order
func (m *Matrix) Col(c core.SampleID) ([]float64, bool) {
	j, ok := m.colIdx[c]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(m.rows))
	for i := range m.rows {
		out[i] = m.At(i, j)
	}
	return out, true
}

// ColumnVector returns the non-missing values of column c keyed by row id
func (m *Matrix) ColumnVector(c core.SampleID) map[core.FeatureID]float64 {
	j, ok := m.colIdx[c]
	if !ok {
		return nil
	}
	out := make(map[core.FeatureID]float64, len(m.rows))
	for i, r := range m.rows {
		if v := m.At(i, j); !math.IsNaN(v) {
			out[r] = v
		}
	}
	return out
}

// Subset returns the matrix restricted to the given ids, in the given
// order. Every id must exist.
func (m *Matrix) Subset(rows []core.FeatureID, cols []core.SampleID) (*Matrix, error) {
	data := make([]float64, 0, len(rows)*len(cols))
	ri := make([]int, len(rows))
	for k, r := range rows {
		i, ok := m.rowIdx[r]
		if !ok {
			return nil, fmt.Errorf("row %q not in matrix", r)
		}
		ri[k] = i
	}
	ci := make([]int, len(cols))
	for k, c := range cols {
		j, ok := m.colIdx[c]
		if !ok {
			return nil, fmt.Errorf("column %q not in matrix", c)
		}
		ci[k] = j
	}
	for _, i := range ri {
		for _, j := range ci {
			data = append(data, m.At(i, j))
		}
	}
	return New(rows, cols, data)
}

// SelectRows keeps the rows for which keep returns true
func (m *Matrix) SelectRows(keep func(r core.FeatureID, values []float64) bool) *Matrix {
	rows := make([]core.FeatureID, 0, len(m.rows))
	data := make([]float64, 0, len(m.data))
	n := len(m.cols)
	for i, r := range m.rows {
		vals := m.data[i*n : (i+1)*n]
		if keep(r, vals) {
			rows = append(rows, r)
			data = append(data, vals...)
		}
	}
	out, _ := New(rows, m.cols, data)
	return out
}

// Map returns a matrix with f applied to every value
func (m *Matrix) Map(f func(v float64) float64) *Matrix {
	data := make([]float64, len(m.data))
	for k, v := range m.data {
		data[k] = f(v)
	}
	out, _ := New(m.rows, m.cols, data)
	return out
}

// FillNaN replaces missing values with v
func (m *Matrix) FillNaN(v float64) *Matrix {
	return m.Map(func(x float64) float64 {
		if math.IsNaN(x) {
			return v
		}
		return x
	})
}

// Values returns a copy of all values in row-major order
func (m *Matrix) Values() []float64 { return append([]float64(nil), m.data...) }

// Shuffle returns a matrix of the same shape whose values are a random
// permutation of m's values across both axes.
func (m *Matrix) Shuffle(rng *rand.Rand) *Matrix {
	data := m.Values()
	rng.Shuffle(len(data), func(i, j int) { data[i], data[j] = data[j], data[i] })
	out, _ := New(m.rows, m.cols, data)
	return out
}

// Design returns a samples x features dense matrix for the given ids,
// with missing values replaced by fill.
func (m *Matrix) Design(features []core.FeatureID, samples []core.SampleID, fill float64) (*mat.Dense, error) {
	if len(features) == 0 || len(samples) == 0 {
		return nil, fmt.Errorf("empty design: %d features, %d samples", len(features), len(samples))
	}
	sub, err := m.Subset(features, samples)
	if err != nil {
		return nil, err
	}
	x := mat.NewDense(len(samples), len(features), nil)
	for i := range features {
		for j := range samples {
			v := sub.At(i, j)
			if math.IsNaN(v) {
				v = fill
			}
			x.Set(j, i, v)
		}
	}
	return x, nil
}

// Builder assembles a matrix cell by cell; unset cells are NaN
type Builder struct {
	rows   []core.FeatureID
	cols   []core.SampleID
	rowSet core.Set[core.FeatureID]
	colSet core.Set[core.SampleID]
	cells  map[core.FeatureID]map[core.SampleID]float64
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{
		rowSet: core.NewSet[core.FeatureID](),
		colSet: core.NewSet[core.SampleID](),
		cells:  make(map[core.FeatureID]map[core.SampleID]float64),
	}
}

// AddCol registers a column even if no value is ever set for it
func (b *Builder) AddCol(c core.SampleID) {
	if !b.colSet.Has(c) {
		b.colSet.Add(c)
		b.cols = append(b.cols, c)
	}
}

// Set records a value
func (b *Builder) Set(r core.FeatureID, c core.SampleID, v float64) {
	if !b.rowSet.Has(r) {
		b.rowSet.Add(r)
		b.rows = append(b.rows, r)
		b.cells[r] = make(map[core.SampleID]float64)
	}
	b.AddCol(c)
	b.cells[r][c] = v
}

// Build returns the matrix with rows sorted lexically and columns in
// insertion order
func (b *Builder) Build() *Matrix {
	rows := b.rowSet.Sorted()
	data := make([]float64, 0, len(rows)*len(b.cols))
	for _, r := range rows {
		for _, c := range b.cols {
			v, ok := b.cells[r][c]
			if !ok {
				v = math.NaN()
			}
			data = append(data, v)
		}
	}
	m, _ := New(rows, b.cols, data)
	return m
}
