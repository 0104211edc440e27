package run

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := NewManifest([]byte("prediction:\n  trials: 10\n"), 42, "1.0.0")
	b := NewManifest([]byte("prediction:\n  trials: 10\n"), 42, "1.0.0")

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.RunID, b.RunID, "run ids are unique")
	require.NoError(t, a.Validate())
}

func TestFingerprint_Unique(t *testing.T) {
	base := NewManifest([]byte("a"), 42, "1.0.0").Fingerprint
	for name, m := range map[string]*Manifest{
		"config": NewManifest([]byte("b"), 42, "1.0.0"),
		"seed":   NewManifest([]byte("a"), 43, "1.0.0"),
		"code":   NewManifest([]byte("a"), 42, "1.0.1"),
	} {
		assert.NotEqual(t, base, m.Fingerprint, name)
	}
}

func TestManifest_EncodeDecode(t *testing.T) {
	m := NewManifest([]byte("x"), 1, "dev")
	m.Add(DatasetReport{Name: "steady-state", Samples: 12, ExcludedSamples: 2, ActivityColumns: 40})
	m.Add(DatasetReport{Name: "dynamic", Error: "no regulators"})
	m.Output("out/b.tab")
	m.Output("out/a.tab")
	m.Finish()

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))
	assert.Contains(t, buf.String(), "excluded_samples: 2")

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, back.RunID)
	assert.Equal(t, []string{"out/a.tab", "out/b.tab"}, back.Outputs)
	assert.Equal(t, []string{"dynamic: no regulators"}, back.Errors)
	assert.Len(t, back.Datasets, 2)
}

func TestManifest_Validate(t *testing.T) {
	m := NewManifest([]byte("x"), 1, "")
	assert.Error(t, m.Validate())
}
