package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/logger"
	"github.com/san-kum/episim/internal/viz"
)

var (
	env config.Env

	dataDir  string
	logLevel string
	theme    string

	presetName string
	configFile string
	solverName string
	duration   float64
	points     int
	paramArgs  []string
	initArgs   []string
	clamp      bool
	save       bool
	noPlot     bool
	columns    []string

	xLabel string
	yLabel string

	outFile      string
	compareOut   string
	renderWidth  int
	renderHeight int

	sweepParam string
	sweepFrom  float64
	sweepTo    float64
	sweepSteps int
	workers    int
)

const rootLong = `Runs the SIR, SEIR and SEIC Chagas models. Without a model argument
all three run side by side on their "chagas" presets.`

// episim runs Chagas transmission models (SIR, SEIR and the host-vector-animal
// SEIC model), stores their trajectories and inspects stored runs.
func main() {
	env = config.LoadEnv()

	rootCmd := &cobra.Command{
		Use:           "episim [model]",
		Short:         "chagas transmission model simulator",
		Long:          rootLong,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Init(logger.Options{Level: logLevel, Output: os.Stderr})
			return applyTheme(theme)
		},
		RunE: compareModels,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", env.DataDir, "run storage directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", env.LogLevel, "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", viz.ThemeClassic.Name, "color theme")
	rootCmd.Flags().BoolVar(&save, "save", false, "store every run")
	rootCmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the terminal comparison plot")
	rootCmd.Flags().StringVarP(&compareOut, "out", "o", "", "also draw the comparison to a .png or .svg file")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run one model",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runModel,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&save, "save", false, "store the run")
	runCmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the terminal plot")
	runCmd.Flags().StringSliceVar(&columns, "columns", nil, "compartments to plot")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "columns", nil, "compartments to plot")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase portrait of two compartments",
		Args:  cobra.MaximumNArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().StringVar(&xLabel, "x", "", "x-axis compartment (default susceptible hosts)")
	phaseCmd.Flags().StringVar(&yLabel, "y", "", "y-axis compartment (default infected hosts)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a stored run as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	renderCmd := &cobra.Command{
		Use:   "render [run_id]",
		Short: "render a stored run to PNG or SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  renderRun,
	}
	renderCmd.Flags().StringVarP(&outFile, "out", "o", "run.png", "output file, .png or .svg")
	renderCmd.Flags().IntVar(&renderWidth, "width", 0, "image width")
	renderCmd.Flags().IntVar(&renderHeight, "height", 0, "image height")
	renderCmd.Flags().StringSliceVar(&columns, "columns", nil, "compartments to draw")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "sweep one parameter and report final size",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepModel,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "sweep", "beta", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0.05, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 0.5, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 10, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (default GOMAXPROCS)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&save, "save", false, "store every run")

	playCmd := &cobra.Command{
		Use:   "play [model]",
		Short: "run one model and replay it interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  playModel,
	}
	addRunFlags(playCmd)

	solversCmd := &cobra.Command{
		Use:   "solvers",
		Short: "list solvers",
		RunE:  listSolvers,
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, phaseCmd, exportJSONCmd, exportCSVCmd, renderCmd,
		presetsCmd, sweepCmd, scenarioCmd, playCmd, solversCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&presetName, "preset", "p", "", "start from a preset")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "start from a YAML config file")
	cmd.Flags().StringVar(&solverName, "solver", env.Solver, "rk45, rk4 or euler")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "simulated days")
	cmd.Flags().IntVar(&points, "points", 0, "output samples (default one per day)")
	cmd.Flags().StringArrayVar(&paramArgs, "param", nil, "parameter override, name=value")
	cmd.Flags().StringArrayVar(&initArgs, "init", nil, "initial state override, compartment=value")
	cmd.Flags().BoolVar(&clamp, "clamp", false, "clamp negative compartments to zero")
}
