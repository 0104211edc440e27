package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID        ID
	MetaboliteID ID
	ReactionID   ID
	GeneID       ID
	IonID        ID
	SampleID     ID
	// FeatureID names a row of any omics matrix: an ion, a kinase,
	// a transcription factor or a reaction.
	FeatureID ID
)

// String conversions for domain IDs
func (id RunID) String() string        { return ID(id).String() }
func (id MetaboliteID) String() string { return ID(id).String() }
func (id ReactionID) String() string   { return ID(id).String() }
func (id GeneID) String() string       { return ID(id).String() }
func (id IonID) String() string        { return ID(id).String() }
func (id SampleID) String() string     { return ID(id).String() }
func (id FeatureID) String() string    { return ID(id).String() }

// NewRunID creates a time-ordered run identifier
func NewRunID() RunID {
	return RunID(NewID())
}

// ParseSampleID parses a string into SampleID
func ParseSampleID(s string) (SampleID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("sample ID cannot be empty")
	}
	return SampleID(s), nil
}

// ParseFeatureID parses a string into FeatureID
func ParseFeatureID(s string) (FeatureID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("feature ID cannot be empty")
	}
	return FeatureID(s), nil
}

// Experiment returns the condition's experiment prefix: every
// underscore-separated token except the last ("exp_a_t10" -> "exp_a").
// Ids without an underscore are their own experiment.
func (id SampleID) Experiment() string {
	s := string(id)
	i := strings.LastIndex(s, "_")
	if i <= 0 {
		return s
	}
	return s[:i]
}

// Set is an ordered-on-demand set of comparable identifiers
type Set[T ~string] map[T]struct{}

// NewSet builds a set from items
func NewSet[T ~string](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Add inserts an item
func (s Set[T]) Add(it T) { s[it] = struct{}{} }

// Has reports membership
func (s Set[T]) Has(it T) bool {
	_, ok := s[it]
	return ok
}

// Sorted returns the members in lexical order
func (s Set[T]) Sorted() []T {
	out := make([]T, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Intersect returns the items of a present in every other list, in a's order
func Intersect[T ~string](a []T, others ...[]T) []T {
	sets := make([]Set[T], len(others))
	for i, o := range others {
		sets[i] = NewSet(o...)
	}
	out := make([]T, 0, len(a))
	seen := make(Set[T], len(a))
	for _, it := range a {
		if seen.Has(it) {
			continue
		}
		keep := true
		for _, s := range sets {
			if !s.Has(it) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, it)
			seen.Add(it)
		}
	}
	return out
}
