package main

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/crick-pipelines-stp/plaque-assay/internal/assay"
	"github.com/crick-pipelines-stp/plaque-assay/internal/config"
	"github.com/crick-pipelines-stp/plaque-assay/internal/curve"
	"github.com/crick-pipelines-stp/plaque-assay/internal/db"
	"github.com/crick-pipelines-stp/plaque-assay/internal/ingest"
	"github.com/crick-pipelines-stp/plaque-assay/internal/pipeline"
)

var (
	configFile      string
	runOutput       string
	titrationOutput string
	analyseOutput   string
	verbose         bool
	testDB          bool
	sqlitePath      string
	variant         string
	plotWell        string

	logger *zap.Logger
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "plaqueassay",
		Short: "neutralisation plaque assay analysis",
		Long: `Analyses Covid-19 plaque reduction neutralisation test plates
exported from the Phenix and uploads IC50 results to the LIMS
serology database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zapCfg := zap.NewProductionConfig()
			if verbose {
				zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = zapCfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [plate-dir plate-dir | data-dir]",
		Short: "analyse a replicate pair and upload to the LIMS database",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAnalysis,
	}
	runCmd.Flags().StringVar(&runOutput, "output", "", "also write local CSV/JSON artifacts")
	runCmd.Flags().BoolVar(&testDB, "test-db", false, "use the staging database host")
	runCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "use a local SQLite database at this path")

	titrationCmd := &cobra.Command{
		Use:   "titration [plate-dir plate-dir | data-dir]",
		Short: "analyse a titration replicate pair and upload to the LIMS database",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTitration,
	}
	titrationCmd.Flags().StringVar(&titrationOutput, "output", "", "also write local CSV/JSON artifacts")
	titrationCmd.Flags().BoolVar(&testDB, "test-db", false, "use the staging database host")
	titrationCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "use a local SQLite database at this path")

	analyseCmd := &cobra.Command{
		Use:   "analyse [plate-dir plate-dir | data-dir]",
		Short: "analyse locally without database access",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAnalyse,
	}
	analyseCmd.Flags().StringVar(&analyseOutput, "output", "results", "directory for CSV/JSON artifacts")
	analyseCmd.Flags().StringVar(&variant, "variant", "unknown", "variant name (normally from the database)")

	plotCmd := &cobra.Command{
		Use:   "plot [plate-dir plate-dir | data-dir]",
		Short: "plot fitted curves in the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPlot,
	}
	plotCmd.Flags().StringVar(&plotWell, "well", "", "plot a single well (default: all wells with a fitted model)")
	plotCmd.Flags().StringVar(&variant, "variant", "unknown", "variant name")

	initConfigCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the default config to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.DefaultConfig())
		},
	}

	rootCmd.AddCommand(runCmd, titrationCmd, analyseCmd, plotCmd, initConfigCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configFile)
}

// resolvePlateDirs accepts either explicit plate directories or a
// single parent directory holding the replicate pair.
func resolvePlateDirs(args []string) ([]string, error) {
	if len(args) == 1 {
		return ingest.PlateDirs(args[0])
	}
	return args, nil
}

func openStore(cmd *cobra.Command, cfg *config.Config) (db.Store, error) {
	ctx := cmd.Context()
	path := sqlitePath
	if path == "" {
		path = cfg.Database.SQLitePath
	}
	if path != "" {
		return db.NewSQLiteStore(ctx, path)
	}
	dsn, err := db.DSNFromEnv(cfg.Database.Name, testDB || cfg.Database.UseTestHost)
	if err != nil {
		return nil, err
	}
	return db.NewMySQLStore(ctx, dsn)
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plateDirs, err := resolvePlateDirs(args)
	if err != nil {
		return err
	}
	store, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return pipeline.Run(cmd.Context(), logger, store, cfg, plateDirs,
		pipeline.Options{OutputDir: runOutput})
}

func runTitration(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plateDirs, err := resolvePlateDirs(args)
	if err != nil {
		return err
	}
	store, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return pipeline.RunTitration(cmd.Context(), logger, store, cfg, plateDirs,
		pipeline.Options{OutputDir: titrationOutput})
}

func runAnalyse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plateDirs, err := resolvePlateDirs(args)
	if err != nil {
		return err
	}
	experiment, err := pipeline.Analyse(logger, cfg, plateDirs, variant, analyseOutput)
	if err != nil {
		return err
	}
	for _, res := range experiment.FinalResults() {
		if res.Status != "" {
			fmt.Printf("%-4s %s\n", res.Well, res.Status)
		} else {
			fmt.Printf("%-4s IC50 = %.1f\n", res.Well, res.IC50)
		}
	}
	return nil
}

func runPlot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plateDirs, err := resolvePlateDirs(args)
	if err != nil {
		return err
	}
	experiment, err := pipeline.Analyse(logger, cfg, plateDirs, variant, "")
	if err != nil {
		return err
	}
	if plotWell != "" {
		sample, ok := experiment.Samples[plotWell]
		if !ok {
			return fmt.Errorf("no sample for well %s", plotWell)
		}
		plotSample(sample)
		return nil
	}
	for _, name := range experiment.SampleNames() {
		sample := experiment.Samples[name]
		if sample.Result.Params == nil {
			continue
		}
		plotSample(sample)
		fmt.Println()
	}
	return nil
}

// plotSample draws the fitted curve, or the raw points when no model
// was fitted, as percentage infected against ascending dilution.
func plotSample(sample *assay.Sample) {
	caption := fmt.Sprintf("%s: %s", sample.Name, sample.IC50Pretty())
	var data []float64
	if sample.Result.Params != nil {
		lo, hi := dilutionRange(sample.Points)
		for _, x := range curve.Logspace(math.Log10(lo), math.Log10(hi), 80) {
			data = append(data, curve.FourParam(x, *sample.Result.Params))
		}
	} else {
		pts := append([]curve.Point(nil), sample.Points...)
		sort.Slice(pts, func(i, j int) bool { return pts[i].Dilution < pts[j].Dilution })
		for _, p := range pts {
			if !math.IsNaN(p.PercentInfected) {
				data = append(data, p.PercentInfected)
			}
		}
	}
	if len(data) == 0 {
		fmt.Printf("%s: no data\n", sample.Name)
		return
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
	fmt.Println(graph)
}

func dilutionRange(pts []curve.Point) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		if math.IsNaN(p.Dilution) {
			continue
		}
		if p.Dilution < lo {
			lo = p.Dilution
		}
		if p.Dilution > hi {
			hi = p.Dilution
		}
	}
	return lo, hi
}
