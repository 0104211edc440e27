package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 1000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Fatalf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Fatalf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
	assert.NotEmpty(t, NewRunID().String())
}

func TestParseSampleID(t *testing.T) {
	id, err := ParseSampleID("  YAL017W ")
	require.NoError(t, err)
	assert.Equal(t, SampleID("YAL017W"), id)

	_, err = ParseSampleID("   ")
	assert.Error(t, err)

	_, err = ParseFeatureID("")
	assert.Error(t, err)
}

func TestSampleID_Experiment(t *testing.T) {
	tests := []struct {
		in   SampleID
		want string
	}{
		{"NaCl_0", "NaCl"},
		{"pheromone_exp2_15", "pheromone_exp2"},
		{"YAL017W", "YAL017W"},
		{"_5", "_5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Experiment(), string(tt.in))
	}
}

func TestIntersect(t *testing.T) {
	a := []SampleID{"s3", "s1", "s2", "s1"}
	b := []SampleID{"s1", "s2", "s9"}
	c := []SampleID{"s2", "s1"}

	assert.Equal(t, []SampleID{"s1", "s2"}, Intersect(a, b, c))
	assert.Equal(t, []SampleID{"s3", "s1", "s2"}, Intersect(a))
	assert.Empty(t, Intersect(a, []SampleID{}))
}

func TestSetSorted(t *testing.T) {
	s := NewSet[GeneID]("YKL", "YAL", "YBR")
	assert.True(t, s.Has("YAL"))
	assert.False(t, s.Has("YZZ"))
	assert.Equal(t, []GeneID{"YAL", "YBR", "YKL"}, s.Sorted())
}
