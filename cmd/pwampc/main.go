package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/san-kum/pwampc/internal/config"
	"github.com/san-kum/pwampc/internal/sim"
	"github.com/san-kum/pwampc/internal/telemetry"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	showStats  bool

	// solve
	useExplicit bool
	regionsRun  string

	// explicit
	saveRegions bool
	maxRows     int
	svgPath     string
	svgWindow   float64

	// simulate
	controller string
	steps      int
	x0Flags    []string
	parallel   int
	jsonOut    bool
	noSave     bool
	plotAfter  bool
)

var logger *slog.Logger

// main registers the commands and runs the root command, exiting with
// status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "pwampc",
		Short:         "model predictive control for piecewise affine systems",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return errors.Wrapf(err, "bad --log-level %q", logLevel)
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !showStats {
				return nil
			}
			return printStats()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pwampc", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "preset as system/variant, e.g. scalar/unit")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print solver counters on exit")

	solveCmd := &cobra.Command{
		Use:   "solve [x...]",
		Short: "solve the MPC problem at a state",
		RunE:  solveState,
	}
	solveCmd.Flags().BoolVar(&useExplicit, "explicit", false, "evaluate the explicit solution instead of solving the QP")
	solveCmd.Flags().StringVar(&regionsRun, "regions", "", "run id of stored regions for --explicit")

	explicitCmd := &cobra.Command{
		Use:   "explicit",
		Short: "enumerate the critical regions of the problem",
		Args:  cobra.NoArgs,
		RunE:  computeExplicit,
	}
	explicitCmd.Flags().BoolVar(&saveRegions, "save", false, "store the regions in the data directory")
	explicitCmd.Flags().IntVar(&maxRows, "rows", 40, "maximum regions to print (0 for all)")
	explicitCmd.Flags().StringVar(&svgPath, "svg", "", "write the region partition to an svg file")
	explicitCmd.Flags().Float64Var(&svgWindow, "window", 10, "half-width of the drawn parameter window")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "run the closed loop",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	simulateCmd.Flags().StringVar(&controller, "controller", "", "controller: mpc, explicit, lqr, pid or none")
	simulateCmd.Flags().IntVar(&steps, "steps", 0, "number of samples")
	simulateCmd.Flags().StringArrayVar(&x0Flags, "x0", nil, "initial state as comma separated values, repeatable")
	simulateCmd.Flags().IntVar(&parallel, "parallel", 4, "concurrent closed loops")
	simulateCmd.Flags().BoolVar(&jsonOut, "json", false, "print results as json")
	simulateCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")
	simulateCmd.Flags().BoolVar(&plotAfter, "plot", false, "plot the trajectory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the trajectory to an svg file")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(solveCmd, explicitCmd, simulateCmd, listCmd, plotCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig resolves --preset and --config, the config file winning.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		return cfg, nil
	}
	if preset != "" {
		system, variant, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, errors.Errorf("preset must be system/variant, got %q", preset)
		}
		cfg := config.GetPreset(system, variant)
		if cfg == nil {
			return nil, errors.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(system))
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func loadProblem() (*config.Config, *config.Problem, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	prob, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("problem loaded", "name", prob.Name, "nx", prob.System.Nx(), "nu", prob.System.Nu(), "horizon", prob.Horizon)
	return cfg, prob, nil
}

func parseState(s string, n int) (sim.State, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, errors.Errorf("state %q has %d entries, want %d", s, len(fields), n)
	}
	x := make(sim.State, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad state entry %q", f)
		}
		x[i] = v
	}
	return x, nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	systems := config.ListSystems()
	sort.Strings(systems)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tHORIZON\tTERMINAL\tX0")
	for _, system := range systems {
		variants := config.ListPresets(system)
		sort.Strings(variants)
		for _, v := range variants {
			cfg := config.GetPreset(system, v)
			fmt.Fprintf(w, "%s/%s\t%d\t%s\t%v\n", system, v, cfg.Horizon, cfg.Terminal.Kind, cfg.Simulation.X0)
		}
	}
	return w.Flush()
}

func printStats() error {
	samples, err := telemetry.Snapshot()
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(headerStyle.Render("solver counters"))
	for _, s := range samples {
		fmt.Printf("  %s %s\n", labelStyle.Render(s.Name), valueStyle.Render(strconv.FormatFloat(s.Value, 'g', 6, 64)))
	}
	return nil
}
