package run

import (
	"fmt"
	"io"
	"sort"
	"time"

	"gophospho/domain/core"

	"gopkg.in/yaml.v3"
)

// Manifest records what a run did: its inputs, its determinism
// parameters and how many units each dataset excluded
type Manifest struct {
	RunID       core.RunID `yaml:"run_id"`
	CodeVersion string     `yaml:"code_version"`
	Seed        int64      `yaml:"seed"`
	ConfigHash  core.Hash  `yaml:"config_hash"`
	Fingerprint core.Hash  `yaml:"fingerprint"`
	StartedAt   time.Time  `yaml:"started_at"`
	FinishedAt  time.Time  `yaml:"finished_at,omitempty"`

	Datasets []DatasetReport `yaml:"datasets"`
	Outputs  []string        `yaml:"outputs,omitempty"`
	Errors   []string        `yaml:"errors,omitempty"`
}

// DatasetReport counts the excluded units of one dataset variant
type DatasetReport struct {
	Name                     string `yaml:"name"`
	Samples                  int    `yaml:"samples"`
	ExcludedSamples          int    `yaml:"excluded_samples"`
	ActivityColumns          int    `yaml:"activity_columns"`
	RegulatorActivityColumns int    `yaml:"regulator_activity_columns,omitempty"`
	Associations             int    `yaml:"associations,omitempty"`
	SkippedTargets           int    `yaml:"skipped_targets,omitempty"`
	FailedFolds              int    `yaml:"failed_folds,omitempty"`
	FailedTrials             int    `yaml:"failed_trials,omitempty"`
	EmptyEnrichment          bool   `yaml:"empty_enrichment,omitempty"`
	Residualized             bool   `yaml:"residualized,omitempty"`
	// GrowthComponent is the 1-based component removed
	GrowthComponent   int     `yaml:"growth_component,omitempty"`
	GrowthCorrelation float64 `yaml:"growth_correlation,omitempty"`
	// GrowthRanking lists 1-based components by decreasing |r| with growth
	GrowthRanking []int  `yaml:"growth_ranking,omitempty,flow"`
	Error         string `yaml:"error,omitempty"`
}

// NewManifest starts a manifest for a run over the given configuration
// bytes. The fingerprint is stable for the same config, seed and code.
func NewManifest(config []byte, seed int64, codeVersion string) *Manifest {
	cfgHash := core.NewHash(config)
	return &Manifest{
		RunID:       core.NewRunID(),
		CodeVersion: codeVersion,
		Seed:        seed,
		ConfigHash:  cfgHash,
		Fingerprint: Fingerprint(cfgHash, seed, codeVersion),
		StartedAt:   time.Now().UTC(),
	}
}

// Fingerprint hashes every determinism parameter of a run
func Fingerprint(configHash core.Hash, seed int64, codeVersion string) core.Hash {
	return core.NewHash([]byte(fmt.Sprintf("config:%s|seed:%d|code:%s", configHash, seed, codeVersion)))
}

// Add records a dataset report
func (m *Manifest) Add(r DatasetReport) {
	m.Datasets = append(m.Datasets, r)
	if r.Error != "" {
		m.Errors = append(m.Errors, r.Name+": "+r.Error)
	}
}

// Output records a written file
func (m *Manifest) Output(path string) {
	m.Outputs = append(m.Outputs, path)
}

// Finish stamps the end time and orders the outputs
func (m *Manifest) Finish() {
	m.FinishedAt = time.Now().UTC()
	sort.Strings(m.Outputs)
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return fmt.Errorf("run_id cannot be empty")
	}
	if m.ConfigHash.IsEmpty() {
		return fmt.Errorf("config_hash cannot be empty")
	}
	if m.CodeVersion == "" {
		return fmt.Errorf("code_version cannot be empty")
	}
	return nil
}

// Encode writes the manifest as YAML
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}

// Decode reads a YAML manifest
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
