package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lizqwerscott/ocs2-ros2/internal/config"
	"github.com/lizqwerscott/ocs2-ros2/internal/riccati"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	backend    string
	configFile string
	preset     string
	verbose    bool
	live       bool
	noSave     bool

	maxIterations   int
	workers         int
	integrator      string
	riccatiPolicy   string
	parallelRiccati bool
	finalTime       float64

	benchRuns  int
	tuneParams []string
	tuneMetric string
	tuneTop    int

	exportFormat string
)

// main registers the commands and executes the root command. It exits with
// status 1 when a command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "slq",
		Short:         "hybrid trajectory optimization with sequential linear quadratic control",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(os.Stderr)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultOutputDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", config.BackendFile, "storage backend (file, sqlite)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "optimize a model over its horizon",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSolve,
	}
	mpcCmd := &cobra.Command{
		Use:   "mpc [model]",
		Short: "run the receding-horizon loop on a simulated plant",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMPC,
	}
	for _, c := range []*cobra.Command{runCmd, mpcCmd} {
		addProblemFlags(c)
		c.Flags().BoolVar(&live, "live", false, "show the live monitor")
		c.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run")
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the iteration history and trajectory of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, csv)")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE:  listPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list registered models",
		RunE:  listModels,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "compare Riccati evaluation policies on a model",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchModel,
	}
	addProblemFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchRuns, "runs", 3, "repetitions per policy")

	tuneCmd := &cobra.Command{
		Use:   "tune [model]",
		Short: "grid search over solver settings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneModel,
	}
	addProblemFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", nil, "name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "cost", "metric to minimize")
	tuneCmd.Flags().IntVar(&tuneTop, "top", 5, "number of trials to print")

	rootCmd.AddCommand(runCmd, mpcCmd, listCmd, plotCmd, exportCmd, presetsCmd, modelsCmd, benchCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addProblemFlags(c *cobra.Command) {
	c.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	c.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	c.Flags().IntVar(&maxIterations, "iterations", 0, "maximum SLQ iterations")
	c.Flags().IntVar(&workers, "workers", 0, "worker threads")
	c.Flags().StringVar(&integrator, "integrator", "", "rollout integrator")
	c.Flags().StringVar(&riccatiPolicy, "riccati", "", "Riccati policy (adaptive, nominal, sweep)")
	c.Flags().BoolVar(&parallelRiccati, "parallel-riccati", false, "solve partitions concurrently")
	c.Flags().Float64Var(&finalTime, "time", 0, "final time")
}

func setupLogger(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if live {
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// loadConfig resolves the configuration: preset, then config file, then
// explicit flags.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	model := ""
	if len(args) > 0 {
		model = args[0]
	}

	if preset != "" {
		if model == "" {
			return nil, fmt.Errorf("--preset needs a model")
		}
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if model != "" {
		cfg.Problem.Model = model
	}
	flags := cmd.Flags()
	if flags.Changed("iterations") {
		cfg.Solver.MaxIterations = maxIterations
	}
	if flags.Changed("workers") {
		cfg.Solver.Workers = workers
	}
	if flags.Changed("integrator") {
		cfg.Solver.Rollout.Integrator = integrator
	}
	if flags.Changed("riccati") {
		cfg.Solver.Riccati.Policy = riccati.Policy(riccatiPolicy)
	}
	if flags.Changed("parallel-riccati") {
		cfg.Solver.ParallelRiccati = parallelRiccati
	}
	if flags.Changed("time") {
		cfg.Problem.FinalTime = finalTime
		cfg.Problem.Partitioning = nil
	}
	if flags.Changed("backend") {
		cfg.Output.Backend = backend
	}
	if flags.Changed("data") {
		cfg.Output.Dir = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
