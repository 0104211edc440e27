package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"gophospho/domain/core"
	"gophospho/domain/network"
	"gophospho/domain/omics"
	"gophospho/domain/run"
	"gophospho/internal"
	"gophospho/internal/config"
	"gophospho/internal/crossval"
	"gophospho/internal/enrichment"
	apperrors "gophospho/internal/errors"
	"gophospho/internal/groundtruth"
	"gophospho/internal/growth"
	"gophospho/internal/inference"
	"gophospho/internal/workpool"
	"gophospho/ports"

	"gopkg.in/yaml.v3"
)

// Version is stamped into run manifests
var Version = "dev"

// ResultWriter persists the result tables of a run
type ResultWriter interface {
	WriteAssociations(ctx context.Context, path string, t *enrichment.AssociationTable) error
	WriteEnrichment(ctx context.Context, path string, s *enrichment.Summary) error
	WritePredictions(ctx context.Context, path string, rows []crossval.Row) error
	WriteKnockout(ctx context.Context, path string, res *enrichment.KnockoutResult) error
}

// Store is every file port the pipeline reads and writes through
type Store interface {
	ports.MatrixReaderPort
	ports.MatrixWriterPort
	ports.ModelReaderPort
	ResultWriter
}

// Steps selects the parts of a run to execute
type Steps struct {
	Infer     bool
	Enrich    bool
	Predict   bool
	Randomize bool
	// Residuals writes the growth-residualized input matrices
	Residuals bool
}

// AllSteps runs everything
func AllSteps() Steps { return Steps{Infer: true, Enrich: true, Predict: true, Randomize: true} }

// Dataset is one prepared dataset variant
type Dataset struct {
	Config config.DatasetConfig
	// Metabolomics is every measured ion, used for inference
	Metabolomics *omics.Matrix
	// Targets is the significance-filtered metabolomics used for prediction
	Targets    *omics.Matrix
	Regulators *omics.Matrix
	Activities *omics.Matrix
	Report     run.DatasetReport
}

// Pipeline orchestrates network inference, enrichment and prediction for
// every configured dataset variant
type Pipeline struct {
	cfg    *config.Config
	store  Store
	growth ports.GrowthRegressorPort
	rng    ports.RNGPort
	pool   *workpool.Pool
	logger *internal.Logger

	net     *network.Network
	mm      *network.MetaboliteMap
	sources []groundtruth.Source
}

// NewPipeline wires the pipeline
func NewPipeline(cfg *config.Config, store Store, growth ports.GrowthRegressorPort, rng ports.RNGPort, logger *internal.Logger) *Pipeline {
	logger = internal.OrNop(logger)
	return &Pipeline{
		cfg:    cfg,
		store:  store,
		growth: growth,
		rng:    rng,
		pool:   workpool.New(cfg.Workers, logger),
		logger: logger.Named("pipeline"),
	}
}

// Run executes steps over every dataset and comparison. A dataset that
// fails is recorded in the manifest and the run moves on; only a broken
// network aborts the run.
func (p *Pipeline) Run(ctx context.Context, steps Steps) (*run.Manifest, error) {
	raw, err := yaml.Marshal(p.cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "hash configuration")
	}
	manifest := run.NewManifest(raw, p.cfg.Prediction.Seed, Version)
	p.logger.Info("run %s: %s", manifest.RunID, p.cfg)

	if steps.Infer || steps.Enrich {
		if _, _, err := p.Network(ctx); err != nil {
			return manifest, err
		}
	}

	datasets := make(map[string]*Dataset, len(p.cfg.Datasets))
	reports := make([]*run.DatasetReport, 0, len(p.cfg.Datasets))
	for _, dc := range p.cfg.Datasets {
		if err := ctx.Err(); err != nil {
			return manifest, err
		}
		d, err := p.runDataset(ctx, dc, steps, manifest)
		if err != nil {
			p.logger.Error("dataset %s: %v", dc.Name, err)
			report := &run.DatasetReport{Name: dc.Name}
			if d != nil {
				report = &d.Report
			}
			report.Error = err.Error()
			reports = append(reports, report)
			continue
		}
		datasets[dc.Name] = d
		reports = append(reports, &d.Report)
	}

	if steps.Predict || steps.Randomize {
		var rows []crossval.Row
		for _, cmp := range p.cfg.Comparisons {
			r, err := p.Compare(ctx, cmp, datasets, steps, manifest)
			if err != nil {
				p.logger.Error("comparison %s: %v", cmp.Name, err)
				manifest.Errors = append(manifest.Errors, cmp.Name+": "+err.Error())
				continue
			}
			rows = append(rows, r...)
		}
		if len(rows) > 0 {
			path := p.cfg.Output("predictions.tab")
			if err := p.store.WritePredictions(ctx, path, rows); err != nil {
				return manifest, err
			}
			manifest.Output(path)
		}
	}

	for _, r := range reports {
		manifest.Add(*r)
	}
	manifest.Finish()
	if err := p.writeManifest(manifest); err != nil {
		return manifest, err
	}
	return manifest, nil
}

func (p *Pipeline) runDataset(ctx context.Context, dc config.DatasetConfig, steps Steps, m *run.Manifest) (*Dataset, error) {
	d, err := p.Prepare(ctx, dc)
	if err != nil {
		return nil, err
	}
	if steps.Residuals && d.Report.Residualized {
		if err := p.writeResiduals(ctx, d, m); err != nil {
			return d, err
		}
	}
	predicts := (steps.Predict || steps.Randomize) && p.cfg.NeedsActivities(dc.Name)
	if steps.Infer || steps.Enrich || predicts {
		if err := p.Infer(ctx, d, m); err != nil {
			return d, err
		}
	}
	if steps.Infer && p.cfg.Inference.RegulatorActivities {
		if err := p.InferRegulators(ctx, d, m); err != nil {
			return d, err
		}
	}
	if steps.Enrich && d.Regulators != nil {
		if err := p.Enrich(ctx, d, m); err != nil {
			return d, err
		}
	}
	return d, nil
}

// Network builds the filtered network and the ion map once per pipeline
func (p *Pipeline) Network(ctx context.Context) (*network.Network, *network.MetaboliteMap, error) {
	if p.net != nil {
		return p.net, p.mm, nil
	}
	mc := p.cfg.Model
	model, err := p.store.ReadModel(ctx, ports.ModelPaths{
		Stoichiometry: p.cfg.Resolve(mc.Stoichiometry),
		Metabolites:   p.cfg.Resolve(mc.Metabolites),
		Reactions:     p.cfg.Resolve(mc.Reactions),
		Genes:         p.cfg.Resolve(mc.Genes),
	})
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "read model")
	}
	net, err := network.Build(model, p.cfg.NetworkFilters())
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "build network")
	}
	rows, cols := net.Incidence.Dims()
	p.logger.Info("network: %d metabolites x %d reactions (removed %d currency, %d exchange)",
		rows, cols, net.Report.Currency, net.Report.Exchange)

	var mm *network.MetaboliteMap
	if mc.MassMap != "" {
		masses, err := p.store.ReadMassMap(ctx, p.cfg.Resolve(mc.MassMap))
		if err != nil {
			return nil, nil, apperrors.Wrap(err, "read mass map")
		}
		mm = network.NewMetaboliteMap(masses, mc.MassPrecision)
	}
	p.net, p.mm = net, mm
	return net, mm, nil
}

// Prepare reads a dataset, removes the growth component when asked to and
// applies the omics filters
func (p *Pipeline) Prepare(ctx context.Context, dc config.DatasetConfig) (*Dataset, error) {
	d := &Dataset{Config: dc, Report: run.DatasetReport{Name: dc.Name}}
	met, err := p.store.ReadMatrix(ctx, p.cfg.Resolve(dc.Metabolomics))
	if err != nil {
		return nil, err
	}
	var reg *omics.Matrix
	if dc.Regulators != "" {
		if reg, err = p.store.ReadMatrix(ctx, p.cfg.Resolve(dc.Regulators)); err != nil {
			return nil, err
		}
	}

	if dc.Residualize {
		rates, err := p.growthRates(ctx, dc)
		if err != nil {
			return nil, err
		}
		var factors *ports.GrowthFactors
		var component int
		if met, factors, component, err = p.residualize(ctx, met, rates, dc.GrowthComponent); err != nil {
			return nil, apperrors.Wrap(err, "residualize metabolomics")
		}
		d.Report.Residualized = true
		d.Report.GrowthComponent = component + 1
		d.Report.GrowthCorrelation = factors.Correlation[component]
		for _, k := range growth.Rank(factors) {
			d.Report.GrowthRanking = append(d.Report.GrowthRanking, k+1)
		}
		if reg != nil {
			if reg, _, _, err = p.residualize(ctx, reg, rates, dc.GrowthComponent); err != nil {
				return nil, apperrors.Wrap(err, "residualize regulators")
			}
		}
	}

	d.Metabolomics = met
	d.Targets = omics.FilterSignificant(met, p.cfg.Omics.MetaboliteMinStd, p.cfg.Omics.MetaboliteMinAbsFC)
	if reg != nil {
		d.Regulators = omics.FilterRowsByCompleteness(reg, p.cfg.Omics.RegulatorCompleteness).FillNaN(0)
	}
	_, d.Report.Samples = met.Dims()
	return d, nil
}

func (p *Pipeline) growthRates(ctx context.Context, dc config.DatasetConfig) (map[core.SampleID]float64, error) {
	g, err := p.store.ReadMatrix(ctx, p.cfg.Resolve(dc.Growth))
	if err != nil {
		return nil, apperrors.Wrap(err, "read growth")
	}
	rows := g.Rows()
	if len(rows) == 0 {
		return nil, apperrors.InvalidInput("growth table %s has no rows", dc.Growth)
	}
	values, _ := g.Row(rows[0])
	rates := make(map[core.SampleID]float64, len(values))
	for j, s := range g.Cols() {
		if !math.IsNaN(values[j]) {
			rates[s] = values[j]
		}
	}
	return rates, nil
}

// residualize removes the 1-based growth component of m, or the component
// that best tracks growth when component is 0
func (p *Pipeline) residualize(ctx context.Context, m *omics.Matrix, rates map[core.SampleID]float64, component int) (*omics.Matrix, *ports.GrowthFactors, int, error) {
	if p.growth == nil {
		return nil, nil, 0, apperrors.Configuration("residualization needs a growth regressor")
	}
	factors, err := p.growth.Fit(ctx, m, rates)
	if err != nil {
		return nil, nil, 0, err
	}
	k := factors.Best
	if component > 0 {
		k = component - 1
	}
	out, err := p.growth.Residualize(ctx, m, factors, k)
	if err != nil {
		return nil, nil, 0, err
	}
	return out, factors, k, nil
}

// Infer fits reaction activities for every sample of the dataset and
// writes the activity matrix
func (p *Pipeline) Infer(ctx context.Context, d *Dataset, m *run.Manifest) error {
	net, mm, err := p.Network(ctx)
	if err != nil {
		return err
	}
	if mm != nil {
		measured := core.NewSet[core.IonID]()
		for _, r := range d.Metabolomics.Rows() {
			measured.Add(core.IonID(r))
		}
		mm = mm.Restrict(measured)
		if mm.Len() == 0 {
			return apperrors.Configuration("no measured ion matches a network metabolite")
		}
	}
	inf, err := inference.NewInferrer(inference.FromNetwork(net.Incidence, mm), p.cfg.InferenceParams(), p.logger)
	if err != nil {
		return err
	}
	res, err := inf.Matrix(d.Metabolomics)
	if err != nil {
		return err
	}
	d.Activities = res.Activities
	d.Report.ExcludedSamples = len(res.Excluded)
	d.Report.ActivityColumns, _ = res.Activities.Dims()

	path := p.cfg.Output(d.Config.Name, "reaction_activities.tab")
	if err := p.store.WriteMatrix(ctx, path, res.Activities); err != nil {
		return err
	}
	m.Output(path)
	return nil
}

// InferRegulators fits one activity per regulator of the interaction
// databases, constrained to the targets the databases assign it
func (p *Pipeline) InferRegulators(ctx context.Context, d *Dataset, m *run.Manifest) error {
	targets, err := p.databaseTargets(d)
	if err != nil {
		return err
	}
	truth, err := p.Truth(ctx, targets)
	if err != nil {
		return err
	}
	if truth.Len() == 0 {
		return apperrors.InsufficientData("no database interaction reaches a measured target")
	}
	inf, err := inference.NewInferrer(inference.DesignFromInteractions(truth), p.cfg.InferenceParams(), p.logger)
	if err != nil {
		return err
	}
	res, err := inf.Matrix(targets)
	if err != nil {
		return err
	}
	d.Report.RegulatorActivityColumns, _ = res.Activities.Dims()

	path := p.cfg.Output(d.Config.Name, "regulator_activities.tab")
	if err := p.store.WriteMatrix(ctx, path, res.Activities); err != nil {
		return err
	}
	m.Output(path)
	return nil
}

// databaseTargets is the matrix whose rows the interaction databases
// resolve to
func (p *Pipeline) databaseTargets(d *Dataset) (*omics.Matrix, error) {
	if groundtruth.Resolution(p.cfg.Databases.Target) != groundtruth.TargetReactions {
		return d.Metabolomics, nil
	}
	if d.Activities == nil {
		return nil, apperrors.Configuration("reaction targets need inferred activities")
	}
	return d.Activities, nil
}

// Truth builds the ground-truth interaction set of every configured
// database, restricted to the features of targets
func (p *Pipeline) Truth(ctx context.Context, targets *omics.Matrix) (*groundtruth.InteractionSet, error) {
	net, mm, err := p.Network(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := p.Sources()
	if err != nil {
		return nil, err
	}
	db := p.cfg.Databases
	b, err := groundtruth.NewBuilder(net, mm, groundtruth.BuildConfig{
		Target:                groundtruth.Resolution(db.Target),
		MaxGenesPerMetabolite: db.MaxGenesPerMetabolite,
		Measured:              core.NewSet(targets.Rows()...),
	}, p.logger)
	if err != nil {
		return nil, err
	}
	set, stats := b.BuildAll(sources...)
	for name, s := range stats {
		p.logger.Debug("%s: %d raw, %d resolved", name, s.Raw, s.Resolved)
	}
	return set, nil
}

// Sources reads every configured interaction database once per pipeline
func (p *Pipeline) Sources() ([]groundtruth.Source, error) {
	if p.sources != nil {
		return p.sources, nil
	}
	db := p.cfg.Databases
	var sources []groundtruth.Source
	add := func(name, path string, directed bool, read func(io.Reader) ([]groundtruth.GenePair, error)) error {
		if path == "" {
			return nil
		}
		f, err := os.Open(p.cfg.Resolve(path))
		if err != nil {
			return apperrors.InvalidInput("open %s database: %v", name, err)
		}
		defer f.Close()
		pairs, err := read(f)
		if err != nil {
			return apperrors.Wrapf(err, "read %s database", name)
		}
		sources = append(sources, groundtruth.Source{Name: name, Pairs: pairs, Directed: directed})
		return nil
	}
	if err := add("string", db.STRING, false, func(r io.Reader) ([]groundtruth.GenePair, error) {
		return groundtruth.ReadSTRING(r, p.cfg.STRINGThreshold())
	}); err != nil {
		return nil, err
	}
	if err := add("phosphogrid", db.PhosphoGrid, true, func(r io.Reader) ([]groundtruth.GenePair, error) {
		return groundtruth.ReadPhosphoGrid(r, db.Phosphatases)
	}); err != nil {
		return nil, err
	}
	if err := add("biogrid", db.BioGRID, false, groundtruth.ReadBioGRID); err != nil {
		return nil, err
	}
	for i, path := range db.Pairs {
		if err := add(fmt.Sprintf("pairs-%d", i+1), path, true, groundtruth.ReadPairs); err != nil {
			return nil, err
		}
	}
	if len(sources) == 0 {
		return nil, apperrors.Configuration("enrichment needs at least one interaction database")
	}
	p.sources = sources
	return sources, nil
}

// Enrich associates regulators with their targets, sweeps the
// enrichment against the ground truth and checks knockouts when given
func (p *Pipeline) Enrich(ctx context.Context, d *Dataset, m *run.Manifest) error {
	targets, err := p.databaseTargets(d)
	if err != nil {
		return err
	}
	if targets == d.Metabolomics {
		targets = omics.FilterRowsByStd(targets, p.cfg.Omics.EnrichmentMinStd)
	}
	truth, err := p.Truth(ctx, targets)
	if err != nil {
		return err
	}
	a, err := enrichment.NewAssociator(p.cfg.EnrichmentParams(), p.logger)
	if err != nil {
		return err
	}
	table, err := a.BuildAssociations(d.Regulators, targets, truth)
	if err != nil {
		return err
	}
	d.Report.Associations = table.Len()
	d.Report.SkippedTargets = len(table.SkippedTargets)

	column := enrichment.Column(p.cfg.Enrichment.ScoreColumn)
	summary := enrichment.Validate(table, truth, column)
	d.Report.EmptyEnrichment = summary.Empty
	if summary.Empty {
		p.logger.Warn("%s: %v", d.Config.Name, apperrors.EmptyThresholdSet("no association is a known interaction"))
	}

	out := map[string]func(string) error{
		"associations.tab": func(path string) error { return p.store.WriteAssociations(ctx, path, table) },
		"enrichment.tab":   func(path string) error { return p.store.WriteEnrichment(ctx, path, summary) },
	}
	if d.Config.Knockouts != "" {
		ko, err := p.store.ReadMatrix(ctx, p.cfg.Resolve(d.Config.Knockouts))
		if err != nil {
			return apperrors.Wrap(err, "read knockouts")
		}
		res, err := enrichment.InternalValidation(table, ko, p.cfg.Enrichment.MinAbsCoef)
		switch {
		case err == nil:
			p.logger.Info("%s knockouts: t = %.3f, p = %.3g", d.Config.Name, res.T, res.PValue)
		case apperrors.IsRecoverable(err):
			p.logger.Warn("%s knockouts: %v", d.Config.Name, err)
		default:
			return err
		}
		out["knockouts.tab"] = func(path string) error { return p.store.WriteKnockout(ctx, path, res) }
	}
	for _, name := range []string{"associations.tab", "enrichment.tab", "knockouts.tab"} {
		write, ok := out[name]
		if !ok {
			continue
		}
		path := p.cfg.Output(d.Config.Name, name)
		if err := write(path); err != nil {
			return err
		}
		m.Output(path)
	}
	return nil
}

// Compare runs one configured comparison and, when asked, its
// randomized control
func (p *Pipeline) Compare(ctx context.Context, cmp config.ComparisonConfig, datasets map[string]*Dataset, steps Steps, m *run.Manifest) ([]crossval.Row, error) {
	train, ok := datasets[cmp.Train]
	if !ok {
		return nil, apperrors.Configuration("train dataset %s is not available", cmp.Train)
	}
	x := train.Regulators
	if x == nil {
		return nil, apperrors.Configuration("dataset %s has no %s features", train.Config.Name, train.Config.FeatureType)
	}
	y, err := p.predictionTargets(train, cmp.Targets)
	if err != nil {
		return nil, err
	}
	predictor, err := crossval.NewPredictor(p.cfg.PredictionParams(), p.pool, p.rng, p.logger)
	if err != nil {
		return nil, err
	}
	c := crossval.Comparison{
		Name:        cmp.Name,
		Dataset:     train.Config.Name,
		FeatureType: train.Config.FeatureType,
		Growth:      growthLabel(train),
	}

	var runFn crossval.RunFunc
	switch cmp.Split {
	case config.SplitLOO:
		runFn = crossval.LeaveOneOutOn(x)
	case config.SplitExperiment:
		runFn = crossval.ExperimentSplitOn(x)
	case config.SplitCross:
		test, ok := datasets[cmp.Test]
		if !ok || test.Regulators == nil {
			return nil, apperrors.Configuration("test dataset %s is not available", cmp.Test)
		}
		yt, err := p.predictionTargets(test, cmp.Targets)
		if err != nil {
			return nil, err
		}
		xt := test.Regulators
		runFn = func(ctx context.Context, pr *crossval.Predictor, y *omics.Matrix) (*crossval.Prediction, error) {
			return pr.CrossDataset(ctx, x, y, xt, yt)
		}
	default:
		return nil, apperrors.Configuration("unknown split %q", cmp.Split)
	}

	var rows []crossval.Row
	if steps.Predict {
		pred, err := runFn(ctx, predictor, y)
		if err != nil {
			return nil, err
		}
		rows = append(rows, pred.Correlations(c, -1)...)
		train.Report.FailedFolds += pred.Folds.Failed

		coefs := enrichment.Tabulate(pred.Coefficients, x, y, nil)
		path := p.cfg.Output(train.Config.Name, cmp.Name+"_coefficients.tab")
		if err := p.store.WriteAssociations(ctx, path, coefs); err != nil {
			return nil, err
		}
		m.Output(path)
	}
	if steps.Randomize && cmp.Randomized {
		rnd, err := predictor.RandomizedControl(ctx, c, y, runFn)
		if err != nil {
			return rows, err
		}
		train.Report.FailedTrials += rnd.Summary.Failed
		rows = append(rows, rnd.Rows...)
	}
	return rows, nil
}

// predictionTargets returns the significant metabolites of d, or its
// sufficiently measured reaction activities
func (p *Pipeline) predictionTargets(d *Dataset, targets config.Targets) (*omics.Matrix, error) {
	if targets != config.TargetsReactions {
		return d.Targets, nil
	}
	if d.Activities == nil {
		return nil, apperrors.Configuration("dataset %s has no inferred reaction activities", d.Config.Name)
	}
	return omics.FilterRowsByCompleteness(d.Activities, p.cfg.Omics.ActivityCompleteness), nil
}

func (p *Pipeline) writeResiduals(ctx context.Context, d *Dataset, m *run.Manifest) error {
	out := map[string]*omics.Matrix{"metabolomics_residuals.tab": d.Metabolomics}
	if d.Regulators != nil {
		out["regulators_residuals.tab"] = d.Regulators
	}
	for name, mat := range out {
		path := p.cfg.Output(d.Config.Name, name)
		if err := p.store.WriteMatrix(ctx, path, mat); err != nil {
			return err
		}
		m.Output(path)
	}
	return nil
}

func growthLabel(d *Dataset) string {
	if d.Config.Residualize {
		return "no growth"
	}
	return "growth"
}

func (p *Pipeline) writeManifest(m *run.Manifest) error {
	path := p.cfg.Output("manifest.yaml")
	if err := os.MkdirAll(p.cfg.Output(), 0o755); err != nil {
		return apperrors.Wrap(err, "create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(err, "create manifest")
	}
	defer f.Close()
	if err := m.Encode(f); err != nil {
		return apperrors.Wrap(err, "write manifest")
	}
	p.logger.Info("manifest written to %s", path)
	return nil
}
