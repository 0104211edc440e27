package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gophospho/adapters/rng"
	"gophospho/adapters/tabular"
	"gophospho/app"
	"gophospho/domain/run"
	"gophospho/internal"
	"gophospho/internal/config"
	"gophospho/internal/growth"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	logLevel   string
	seed       int64
	trials     int
	workers    int
}

func main() {
	// a missing .env is fine; the config file and environment still apply
	_ = godotenv.Load()

	rootCmd := newRootCmd(&options{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gophospho",
		Short: "Network-constrained activity inference, growth-aware prediction and enrichment for yeast omics",
		Long: `gophospho infers reaction activities from metabolomics on a stoichiometric
network, predicts metabolite levels from kinase or phosphatase activities with
cross-validated linear models, and scores regulator-metabolite associations
against interaction databases.

Every command reads a YAML configuration (see --config). Values can be
overridden through the environment, e.g. PREDICTION_TRIALS=10 or LOG_LEVEL=debug.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "gophospho.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: error|warn|info|debug (default from config)")
	rootCmd.PersistentFlags().Int64Var(&opts.seed, "seed", 0, "Override the prediction seed")
	rootCmd.PersistentFlags().IntVar(&opts.trials, "trials", 0, "Override the number of randomized trials")
	rootCmd.PersistentFlags().IntVar(&opts.workers, "workers", 0, "Override the worker count (0 uses every CPU)")

	rootCmd.AddCommand(
		newStepCmd(opts, "run", "Run inference, enrichment, prediction and randomized controls", app.AllSteps()),
		newStepCmd(opts, "infer", "Infer reaction activities for every dataset", app.Steps{Infer: true}),
		newStepCmd(opts, "enrich", "Associate regulators with targets and score them against interaction databases", app.Steps{Enrich: true}),
		newStepCmd(opts, "predict", "Cross-validate the configured comparisons", app.Steps{Predict: true}),
		newStepCmd(opts, "randomize", "Run the configured comparisons with randomized controls", app.Steps{Predict: true, Randomize: true}),
		newStepCmd(opts, "residualize", "Write the growth-residualized matrices of datasets that ask for it", app.Steps{Residuals: true}),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newStepCmd(opts *options, use, short string, steps app.Steps) *cobra.Command {
	var residuals bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if residuals {
				steps.Residuals = true
			}
			return runSteps(cmd.Context(), opts, cmd.Flags().Changed, steps)
		},
	}
	if !steps.Residuals {
		cmd.Flags().BoolVar(&residuals, "write-residuals", false, "Also write growth-residualized matrices")
	}
	return cmd
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate the configuration and print the resolved values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			fmt.Println(cfg)
			for _, d := range cfg.Datasets {
				fmt.Printf("  dataset %s: %s features from %s\n", d.Name, d.FeatureType, cfg.Resolve(d.Metabolomics))
			}
			for _, c := range cfg.Comparisons {
				fmt.Printf("  comparison %s: %s split on %s\n", c.Name, c.Split, c.Train)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version stamped into run manifests",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(app.Version)
		},
	}
}

func loadConfig(opts *options, changed func(name string) bool) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, opts, changed); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies every flag set on the command line over cfg, so an
// explicit zero still wins over the file
func applyOverrides(cfg *config.Config, opts *options, changed func(name string) bool) error {
	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if changed("seed") {
		cfg.Prediction.Seed = opts.seed
	}
	if changed("trials") {
		cfg.Prediction.Trials = opts.trials
	}
	if changed("workers") {
		cfg.Workers = opts.workers
	}
	return cfg.Validate()
}

func runSteps(ctx context.Context, opts *options, changed func(name string) bool, steps app.Steps) error {
	cfg, err := loadConfig(opts, changed)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	defer logger.Sync()

	regressor, err := growth.NewPCARegressor(cfg.Growth.Components, cfg.Growth.MinCompleteness, logger)
	if err != nil {
		return err
	}
	pipeline := app.NewPipeline(cfg, tabular.NewStore(logger), regressor, rng.NewSeededAdapter(), logger)

	manifest, err := pipeline.Run(ctx, steps)
	if manifest != nil {
		printManifest(manifest)
	}
	if err != nil {
		return err
	}
	if len(manifest.Errors) > 0 {
		return fmt.Errorf("%d part(s) of the run failed: %s", len(manifest.Errors), strings.Join(manifest.Errors, "; "))
	}
	return nil
}

func printManifest(m *run.Manifest) {
	fmt.Printf("\n=== RUN %s ===\n", m.RunID)
	fmt.Printf("Fingerprint: %s\n", m.Fingerprint)
	fmt.Printf("Seed: %d\n", m.Seed)
	for _, d := range m.Datasets {
		if d.Error != "" {
			fmt.Printf("  %-20s FAILED: %s\n", d.Name, d.Error)
			continue
		}
		fmt.Printf("  %-20s samples %d (excluded %d), activities %d, associations %d",
			d.Name, d.Samples, d.ExcludedSamples, d.ActivityColumns, d.Associations)
		if d.RegulatorActivityColumns > 0 {
			fmt.Printf(", regulator activities %d", d.RegulatorActivityColumns)
		}
		if d.Residualized {
			fmt.Printf(", growth component %d (r = %.2f, ranking %v)", d.GrowthComponent, d.GrowthCorrelation, d.GrowthRanking)
		}
		if d.EmptyEnrichment {
			fmt.Printf(", no known interaction")
		}
		fmt.Println()
	}
	fmt.Printf("Outputs: %d files\n", len(m.Outputs))
}
