package config

import (
	"fmt"
	"path/filepath"

	"gophospho/domain/core"
	"gophospho/domain/network"
	"gophospho/internal/crossval"
	"gophospho/internal/enrichment"
	"gophospho/internal/errors"
	"gophospho/internal/groundtruth"
	"gophospho/internal/inference"
	"gophospho/internal/linmodel"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the complete run configuration. Values come from a
// YAML file; environment variables override the fields that name one.
type Config struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	// Workers bounds concurrent folds and trials; 0 uses GOMAXPROCS
	Workers int `yaml:"workers" env:"GOPHOSPHO_WORKERS" env-default:"0"`

	Paths      PathConfig       `yaml:"paths"`
	Model      ModelConfig      `yaml:"model"`
	Network    NetworkConfig    `yaml:"network"`
	Omics      OmicsConfig      `yaml:"omics"`
	Inference  InferenceConfig  `yaml:"inference"`
	Prediction PredictionConfig `yaml:"prediction"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Growth     GrowthConfig     `yaml:"growth"`
	Databases  DatabaseConfig   `yaml:"databases"`

	Datasets    []DatasetConfig    `yaml:"datasets"`
	Comparisons []ComparisonConfig `yaml:"comparisons"`
}

// PathConfig holds file system paths
type PathConfig struct {
	WorkDir   string `yaml:"work_dir" env:"WORK_DIR" env-default:"."`
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR" env-default:"out"`
}

// ModelConfig locates the flat tables of the stoichiometric model
type ModelConfig struct {
	Stoichiometry string `yaml:"stoichiometry" env:"MODEL_STOICHIOMETRY"`
	Metabolites   string `yaml:"metabolites" env:"MODEL_METABOLITES"`
	Reactions     string `yaml:"reactions" env:"MODEL_REACTIONS"`
	Genes         string `yaml:"genes" env:"MODEL_GENES"`
	MassMap       string `yaml:"mass_map" env:"MODEL_MASS_MAP"`
	MassPrecision int    `yaml:"mass_precision" env:"MODEL_MASS_PRECISION" env-default:"2"`
}

// NetworkConfig holds the network filters
type NetworkConfig struct {
	ExtracellularSuffix string   `yaml:"extracellular_suffix" env-default:"_b"`
	CurrencyMetabolites []string `yaml:"currency_metabolites"`
	ExchangePrefix      string   `yaml:"exchange_prefix"`
	BiomassReactions    []string `yaml:"biomass_reactions"`
}

// OmicsConfig holds the matrix filters applied before modelling
type OmicsConfig struct {
	RegulatorCompleteness float64 `yaml:"regulator_completeness" env-default:"0.75"`
	MetaboliteMinStd      float64 `yaml:"metabolite_min_std" env-default:"0.4"`
	MetaboliteMinAbsFC    float64 `yaml:"metabolite_min_abs_fc" env-default:"0.8"`
	// EnrichmentMinStd keeps ions varying enough to be association targets
	EnrichmentMinStd float64 `yaml:"enrichment_min_std" env-default:"0.4"`
	// ActivityCompleteness filters reaction activities used as targets
	ActivityCompleteness float64 `yaml:"activity_completeness" env-default:"0.75"`
}

// InferenceConfig holds the activity inference parameters
type InferenceConfig struct {
	Alpha      float64 `yaml:"alpha" env:"INFERENCE_ALPHA" env-default:"1.0"`
	MinSupport int     `yaml:"min_support" env-default:"2"`
	ZScore     string  `yaml:"zscore" env-default:"restricted"`
	// RegulatorActivities also fits per-regulator activities over the
	// interaction databases' targets
	RegulatorActivities bool `yaml:"regulator_activities"`
}

// PredictionConfig holds the cross-validation parameters
type PredictionConfig struct {
	Model    string  `yaml:"model" env:"PREDICTION_MODEL" env-default:"elasticnet"`
	Alpha    float64 `yaml:"alpha" env-default:"0.01"`
	L1Ratio  float64 `yaml:"l1_ratio" env-default:"0.5"`
	Protocol string  `yaml:"protocol" env-default:"single"`
	SelectK  int     `yaml:"select_k" env-default:"0"`
	Trials   int     `yaml:"trials" env:"PREDICTION_TRIALS" env-default:"100"`
	Seed     int64   `yaml:"seed" env:"PREDICTION_SEED" env-default:"0"`
}

// EnrichmentConfig holds the association and enrichment parameters
type EnrichmentConfig struct {
	Alpha       float64 `yaml:"alpha" env-default:"0.01"`
	ScoreColumn string  `yaml:"score_column" env-default:"strength"`
	MinAbsCoef  float64 `yaml:"min_abs_coef" env-default:"0.1"`
}

// GrowthConfig holds the growth residualization parameters
type GrowthConfig struct {
	// Components caps the principal components considered; 0 keeps all
	Components int `yaml:"components" env-default:"10"`
	// MinCompleteness is the measured fraction a feature needs, strictly
	// exceeded, to enter the factor model
	MinCompleteness float64 `yaml:"min_completeness" env-default:"0.25"`
}

// DatabaseConfig locates the interaction databases. Empty paths are skipped.
type DatabaseConfig struct {
	STRING string `yaml:"string" env:"DB_STRING"`
	// STRINGMin is the combined score cut as a fraction of the best score
	// in the file, or an absolute score when STRINGAbsolute is set
	STRINGMin             float64  `yaml:"string_min" env-default:"0.5"`
	STRINGAbsolute        bool     `yaml:"string_absolute"`
	PhosphoGrid           string   `yaml:"phosphogrid" env:"DB_PHOSPHOGRID"`
	Phosphatases          bool     `yaml:"phosphatases"`
	BioGRID               string   `yaml:"biogrid" env:"DB_BIOGRID"`
	Pairs                 []string `yaml:"pairs"`
	Target                string   `yaml:"target" env-default:"ions"`
	MaxGenesPerMetabolite int      `yaml:"max_genes_per_metabolite" env-default:"0"`
}

// DatasetConfig describes one dataset variant
type DatasetConfig struct {
	Name string `yaml:"name"`
	// Metabolomics is the ions x conditions fold-change matrix
	Metabolomics string `yaml:"metabolomics"`
	// Regulators is the regulators x conditions activity matrix used as
	// prediction features
	Regulators  string `yaml:"regulators"`
	FeatureType string `yaml:"feature_type"`
	// Growth holds per-condition growth rates in its first row
	Growth string `yaml:"growth"`
	// Residualize removes the growth component before modelling
	Residualize bool `yaml:"residualize"`
	// GrowthComponent picks the 1-based component to remove; 0 picks the
	// one most correlated with growth
	GrowthComponent int `yaml:"growth_component"`
	// Knockouts is a targets x knocked-out-gene fold-change matrix
	Knockouts string `yaml:"knockouts"`
}

// Split selects a comparison's cross-validation scheme
type Split string

const (
	SplitLOO        Split = "loo"
	SplitExperiment Split = "experiment"
	SplitCross      Split = "cross"
)

// Targets selects what a comparison predicts from regulator activities
type Targets string

const (
	TargetsMetabolomics Targets = "metabolomics"
	TargetsReactions    Targets = "reactions"
)

// ReactionFeatures is the feature type of datasets whose prediction
// features would be their own inferred reaction activities
const ReactionFeatures = "reaction"

// ComparisonConfig names a prediction to run
type ComparisonConfig struct {
	Name  string `yaml:"name"`
	Train string `yaml:"train"`
	// Test is the held-out dataset of a cross comparison
	Test       string  `yaml:"test"`
	Split      Split   `yaml:"split"`
	Targets    Targets `yaml:"targets"`
	Randomized bool    `yaml:"randomized"`
}

// Load reads path (YAML) with environment overrides. An empty path reads
// the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(cfg)
	} else {
		err = cleanenv.ReadConfig(path, cfg)
	}
	if err != nil {
		return nil, errors.Configuration("failed to read config %s: %v", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func (c *Config) normalize() {
	for i := range c.Datasets {
		if c.Datasets[i].FeatureType == "" {
			c.Datasets[i].FeatureType = "kinase"
		}
	}
	for i := range c.Comparisons {
		if c.Comparisons[i].Split == "" {
			c.Comparisons[i].Split = SplitLOO
		}
		if c.Comparisons[i].Targets == "" {
			c.Comparisons[i].Targets = TargetsMetabolomics
		}
		if c.Comparisons[i].Name == "" {
			c.Comparisons[i].Name = c.Comparisons[i].Train
		}
	}
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Model.MassPrecision < 0 {
		return errors.Configuration("mass precision must be >= 0")
	}
	if c.Inference.Alpha < 0 {
		return errors.Configuration("inference alpha must be >= 0")
	}
	switch inference.ZScoreMode(c.Inference.ZScore) {
	case inference.ZScoreRestricted, inference.ZScoreFull:
	default:
		return errors.Configuration("unknown z-score mode %q", c.Inference.ZScore)
	}
	if _, err := linmodel.New(c.Prediction.Model, c.Prediction.Alpha, c.Prediction.L1Ratio); err != nil {
		return err
	}
	switch crossval.Protocol(c.Prediction.Protocol) {
	case crossval.ProtocolSingle, crossval.ProtocolMulti:
	default:
		return errors.Configuration("unknown prediction protocol %q", c.Prediction.Protocol)
	}
	if c.Prediction.Trials < 0 {
		return errors.Configuration("trials must be >= 0")
	}
	if _, err := enrichment.ParseColumn(c.Enrichment.ScoreColumn); err != nil {
		return err
	}
	switch groundtruth.Resolution(c.Databases.Target) {
	case groundtruth.TargetIons, groundtruth.TargetReactions:
	default:
		return errors.Configuration("unknown target resolution %q", c.Databases.Target)
	}
	if c.Omics.RegulatorCompleteness < 0 || c.Omics.RegulatorCompleteness > 1 {
		return errors.Configuration("regulator completeness must be in [0, 1]")
	}
	if c.Omics.ActivityCompleteness < 0 || c.Omics.ActivityCompleteness > 1 {
		return errors.Configuration("activity completeness must be in [0, 1]")
	}
	if c.Omics.EnrichmentMinStd < 0 {
		return errors.Configuration("enrichment std cut must be >= 0")
	}
	if c.Growth.MinCompleteness < 0 || c.Growth.MinCompleteness >= 1 {
		return errors.Configuration("growth completeness must be in [0, 1)")
	}

	names := make(map[string]bool, len(c.Datasets))
	for _, d := range c.Datasets {
		if d.Name == "" {
			return errors.Configuration("dataset without a name")
		}
		if names[d.Name] {
			return errors.Configuration("duplicate dataset %q", d.Name)
		}
		names[d.Name] = true
		if d.Metabolomics == "" {
			return errors.Configuration("dataset %s: metabolomics path is required", d.Name)
		}
		if d.Residualize && d.Growth == "" {
			return errors.Configuration("dataset %s: residualize needs a growth path", d.Name)
		}
		if d.GrowthComponent < 0 || (c.Growth.Components > 0 && d.GrowthComponent > c.Growth.Components) {
			return errors.Configuration("dataset %s: growth component %d outside 1..%d", d.Name, d.GrowthComponent, c.Growth.Components)
		}
	}
	for _, cmp := range c.Comparisons {
		if !names[cmp.Train] {
			return errors.Configuration("comparison %s: unknown train dataset %q", cmp.Name, cmp.Train)
		}
		used := []string{cmp.Train}
		switch cmp.Split {
		case SplitLOO, SplitExperiment:
		case SplitCross:
			if !names[cmp.Test] {
				return errors.Configuration("comparison %s: unknown test dataset %q", cmp.Name, cmp.Test)
			}
			used = append(used, cmp.Test)
		default:
			return errors.Configuration("comparison %s: unknown split %q", cmp.Name, cmp.Split)
		}
		switch cmp.Targets {
		case TargetsMetabolomics, TargetsReactions:
		default:
			return errors.Configuration("comparison %s: unknown targets %q", cmp.Name, cmp.Targets)
		}
		for _, name := range used {
			d, _ := c.Dataset(name)
			if d.FeatureType == ReactionFeatures {
				return errors.Configuration("comparison %s: reaction activities of %s are inferred from its own metabolomics "+
					"and cannot be prediction features; predict them with targets: reactions instead", cmp.Name, name)
			}
			if d.Regulators == "" {
				return errors.Configuration("comparison %s: dataset %s has no regulator features", cmp.Name, name)
			}
		}
	}
	return nil
}

// NeedsActivities reports whether a comparison predicts the reaction
// activities of dataset name
func (c *Config) NeedsActivities(name string) bool {
	for _, cmp := range c.Comparisons {
		if cmp.Targets != TargetsReactions {
			continue
		}
		if cmp.Train == name || (cmp.Split == SplitCross && cmp.Test == name) {
			return true
		}
	}
	return false
}

// Dataset returns the named dataset
func (c *Config) Dataset(name string) (DatasetConfig, bool) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetConfig{}, false
}

// Resolve makes a path relative to the work directory
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Paths.WorkDir, path)
}

// Output returns a path under the output directory
func (c *Config) Output(parts ...string) string {
	return filepath.Join(append([]string{c.Resolve(c.Paths.OutputDir)}, parts...)...)
}

// NetworkFilters converts the network section. An empty currency list
// falls back to the yeast defaults.
func (c *Config) NetworkFilters() network.Filters {
	f := network.Filters{
		ExtracellularSuffix: c.Network.ExtracellularSuffix,
		CurrencyMetabolites: c.Network.CurrencyMetabolites,
		ExchangePrefix:      c.Network.ExchangePrefix,
	}
	if len(f.CurrencyMetabolites) == 0 {
		f.CurrencyMetabolites = network.DefaultCurrencyMetabolites
	}
	for _, r := range c.Network.BiomassReactions {
		f.BiomassReactions = append(f.BiomassReactions, core.ReactionID(r))
	}
	return f
}

// InferenceParams converts the inference section
func (c *Config) InferenceParams() inference.Config {
	return inference.Config{
		Alpha:      c.Inference.Alpha,
		MinSupport: c.Inference.MinSupport,
		ZScore:     inference.ZScoreMode(c.Inference.ZScore),
	}
}

// PredictionParams converts the prediction section
func (c *Config) PredictionParams() crossval.Config {
	return crossval.Config{
		Model:    c.Prediction.Model,
		Alpha:    c.Prediction.Alpha,
		L1Ratio:  c.Prediction.L1Ratio,
		Protocol: crossval.Protocol(c.Prediction.Protocol),
		SelectK:  c.Prediction.SelectK,
		Trials:   c.Prediction.Trials,
		Seed:     c.Prediction.Seed,
	}
}

// EnrichmentParams converts the enrichment section
func (c *Config) EnrichmentParams() enrichment.Config {
	return enrichment.Config{
		Alpha:       c.Enrichment.Alpha,
		ScoreColumn: enrichment.Column(c.Enrichment.ScoreColumn),
		MinAbsCoef:  c.Enrichment.MinAbsCoef,
	}
}

// STRINGThreshold converts the STRING cut
func (c *Config) STRINGThreshold() groundtruth.Threshold {
	return groundtruth.Threshold{Min: c.Databases.STRINGMin, FractionOfMax: !c.Databases.STRINGAbsolute}
}

// String summarizes the run for logs
func (c *Config) String() string {
	return fmt.Sprintf("%d datasets, %d comparisons, model %s (alpha %g), %d trials",
		len(c.Datasets), len(c.Comparisons), c.Prediction.Model, c.Prediction.Alpha, c.Prediction.Trials)
}
