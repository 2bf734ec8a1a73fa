package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/episim/internal/analysis"
	"github.com/san-kum/episim/internal/automation"
	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epi"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/export"
	"github.com/san-kum/episim/internal/logger"
	"github.com/san-kum/episim/internal/storage"
	"github.com/san-kum/episim/internal/viz"
)

const comparePreset = "chagas"

// buildConfig resolves the run configuration from --config, --preset or the
// model defaults, then applies flag overrides.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	model := config.DefaultConfig().Model
	if len(args) == 1 {
		v, err := epi.ParseVariant(args[0])
		if err != nil {
			return nil, err
		}
		model = v.String()
	}

	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if len(args) == 1 {
			cfg.Model = model
		}
	case presetName != "":
		cfg = config.GetPreset(model, presetName)
		if cfg == nil {
			return nil, fmt.Errorf("no preset %q for %s (have: %s)", presetName, model, strings.Join(config.ListPresets(model), ", "))
		}
	default:
		cfg = config.DefaultConfig()
		cfg.Model = model
		cfg.Solver = solverName
	}

	flags := cmd.Flags()
	if flags.Changed("solver") {
		cfg.Solver = solverName
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("points") {
		cfg.Points = points
	}
	if flags.Changed("clamp") {
		cfg.ClampNegative = clamp
	}

	params, err := parseAssignments(paramArgs)
	if err != nil {
		return nil, fmt.Errorf("--param: %w", err)
	}
	cfg.Params = overlay(cfg.Params, params)

	initial, err := parseAssignments(initArgs)
	if err != nil {
		return nil, fmt.Errorf("--init: %w", err)
	}
	cfg.InitialState = overlay(cfg.InitialState, initial)

	if cfg.Name == "" {
		cfg.Name = runName(cfg.Model, presetName)
	}
	return cfg, nil
}

// parseAssignments reads name=value pairs.
func parseAssignments(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", pair)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = value
	}
	return out, nil
}

func overlay(dst, src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]float64, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func runName(model, preset string) string {
	if preset == "" {
		return model
	}
	return model + "-" + preset
}

func compareModels(cmd *cobra.Command, args []string) error {
	variants := epi.Variants
	if len(args) == 1 {
		v, err := epi.ParseVariant(args[0])
		if err != nil {
			return err
		}
		variants = []epi.Variant{v}
	}

	reg := experiment.NewRegistry()
	cfgs := make([]*config.Config, len(variants))
	exps := make([]*experiment.Experiment, len(variants))
	for i, v := range variants {
		cfg := config.GetPreset(v.String(), comparePreset)
		if cfg == nil {
			return fmt.Errorf("no %q preset for %s", comparePreset, v)
		}
		cfg.Name = v.String()
		exp, err := cfg.Experiment(reg)
		if err != nil {
			return err
		}
		cfgs[i], exps[i] = cfg, exp
	}

	trajs, err := experiment.RunAll(cmd.Context(), exps)
	if err != nil {
		return err
	}

	summaries := make([]experiment.Summary, len(exps))
	for i, exp := range exps {
		summaries[i] = experiment.Report(exp, trajs[i])
	}

	fmt.Println(viz.TitleStyle.Render(fmt.Sprintf("chagas transmission, %g days", cfgs[0].Duration)))
	fmt.Println(viz.SummaryTable(summaries))
	for i, exp := range exps {
		fmt.Println(viz.HeaderStyle.Render(exp.Variant().Title()))
		fmt.Println(viz.FinalTable(summaries[i], exp.Labels()))
		warnings(summaries[i])
	}

	lines := infectedLines(exps, trajs)
	if !noPlot {
		names := make([]string, len(lines))
		data := make([][]float64, len(lines))
		for i, l := range lines {
			names[i], data[i] = l.Name, l.Values
		}
		plot, err := viz.Overlay(names, data, viz.PlotOptions{Caption: "infected hosts"})
		if err != nil {
			return err
		}
		fmt.Println(plot)
	}
	if compareOut != "" {
		opts := export.Options{Title: "infected hosts", Width: renderWidth, Height: renderHeight}
		if err := export.SaveLines(compareOut, lines, opts); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", compareOut)
	}

	if !save {
		return nil
	}
	st := storage.New(dataDir)
	for i, exp := range exps {
		if err := storeRun(st, exp, cfgs[i].Solver, trajs[i]); err != nil {
			return err
		}
	}
	return nil
}

// infectedLines takes the infected host compartment of each run, labelled by
// model, for the comparison chart.
func infectedLines(exps []*experiment.Experiment, trajs []*dynamo.Trajectory) []export.Line {
	lines := make([]export.Line, len(exps))
	for i, exp := range exps {
		c, _ := exp.Variant().Contract()
		lines[i] = export.Line{
			Name:   fmt.Sprintf("%s %s", exp.Variant().Title(), c.Compartments[c.Infected]),
			Times:  trajs[i].Times,
			Values: trajs[i].Series(c.Infected),
		}
	}
	return lines
}

func runModel(cmd *cobra.Command, args []string) error {
	cfg, exp, traj, err := execute(cmd, args)
	if err != nil {
		return err
	}
	summary := experiment.Report(exp, traj)

	fmt.Printf("model: %s\n", exp.Variant().Title())
	fmt.Printf("solver: %s\n", cfg.Solver)
	fmt.Println(viz.SummaryTable([]experiment.Summary{summary}))
	fmt.Println(viz.FinalTable(summary, exp.Labels()))
	warnings(summary)

	if !noPlot {
		plot, err := viz.Plot(traj, viz.PlotOptions{Columns: columns})
		if err != nil {
			return err
		}
		fmt.Println(plot)
	}

	if save {
		return storeRun(storage.New(dataDir), exp, cfg.Solver, traj)
	}
	return nil
}

// execute builds and runs one experiment from flags.
func execute(cmd *cobra.Command, args []string) (*config.Config, *experiment.Experiment, *dynamo.Trajectory, error) {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return nil, nil, nil, err
	}
	exp, err := cfg.Experiment(experiment.NewRegistry())
	if err != nil {
		return nil, nil, nil, err
	}
	traj, err := exp.Run(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, exp, traj, nil
}

func warnings(s experiment.Summary) {
	if !s.Conserved() {
		for _, c := range s.Conservation {
			if !c.Within {
				fmt.Println(viz.WarnStyle.Render(fmt.Sprintf("%s population drifted %.3g from expected", c.Species, c.Drift)))
			}
		}
	}
	if s.NegativeSamples > 0 {
		fmt.Println(viz.WarnStyle.Render(fmt.Sprintf("%d negative samples", s.NegativeSamples)))
	}
}

func storeRun(st *storage.Store, exp *experiment.Experiment, solver string, traj *dynamo.Trajectory) error {
	id, err := st.Save(exp, solver, traj)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", id)
	return nil
}

// resolveRun maps an optional run id argument to a stored run; no argument or
// "latest" picks the newest run.
func resolveRun(st *storage.Store, args []string) (string, error) {
	if len(args) == 1 && args[0] != "latest" {
		return args[0], nil
	}
	return st.Latest()
}

func loadRun(args []string) (*storage.RunMetadata, *dynamo.Trajectory, error) {
	st := storage.New(dataDir)
	id, err := resolveRun(st, args)
	if err != nil {
		return nil, nil, err
	}
	meta, err := st.Load(id)
	if err != nil {
		return nil, nil, err
	}
	traj, err := st.LoadTrajectory(id)
	if err != nil {
		return nil, nil, err
	}
	return meta, traj, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs stored in", dataDir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tSOLVER\tDAYS\tPEAK\tFINAL SIZE\tTIME")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%.1f\t%.1f\t%s\n",
			r.ID, r.Model, r.Solver, r.Duration,
			r.Summary.PeakInfected, r.Summary.FinalSize,
			r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args)
	if err != nil {
		return err
	}
	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)

	plot, err := viz.Plot(traj, viz.PlotOptions{Columns: columns})
	if err != nil {
		return err
	}
	fmt.Println(plot)
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args)
	if err != nil {
		return err
	}
	x, y := xLabel, yLabel
	if x == "" || y == "" {
		v, err := epi.ParseVariant(meta.Model)
		if err != nil {
			return err
		}
		c, err := v.Contract()
		if err != nil {
			return err
		}
		if x == "" {
			x = c.Compartments[c.Susceptible]
		}
		if y == "" {
			y = c.Compartments[c.Infected]
		}
	}

	portrait, err := analysis.FromLabels(traj, x, y)
	if err != nil {
		return err
	}
	fmt.Printf("run: %s\n", meta.ID)
	fmt.Println(portrait.ToASCII(70, 24))
	return nil
}

// output opens outFile, or stdout when it is empty.
func output() (io.WriteCloser, error) {
	if outFile == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outFile)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args)
	if err != nil {
		return err
	}
	w, err := output()
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(w, meta, traj); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, traj, err := loadRun(args)
	if err != nil {
		return err
	}
	w, err := output()
	if err != nil {
		return err
	}
	if err := storage.WriteCSV(w, traj); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func renderRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args)
	if err != nil {
		return err
	}
	opts := export.Options{
		Title:   fmt.Sprintf("%s (%s)", meta.Name, meta.Model),
		Width:   renderWidth,
		Height:  renderHeight,
		Columns: columns,
	}
	if err := export.Save(outFile, traj, opts); err != nil {
		return err
	}
	fmt.Printf("rendered %s to %s\n", meta.ID, outFile)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	variants := epi.Variants
	if len(args) == 1 {
		v, err := epi.ParseVariant(args[0])
		if err != nil {
			return err
		}
		variants = []epi.Variant{v}
	}

	for _, v := range variants {
		fmt.Printf("presets for %s:\n", v)
		for _, name := range config.ListPresets(v.String()) {
			cfg := config.GetPreset(v.String(), name)
			fmt.Printf("  %-12s %5g days  %s\n", name, cfg.Duration, formatParams(cfg.Params))
		}
	}
	return nil
}

func formatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%.4g", name, params[name])
	}
	return strings.Join(parts, " ")
}

func applyTheme(name string) error {
	if !viz.SetTheme(name) {
		return fmt.Errorf("unknown theme %q (have: %s)", name, strings.Join(viz.ThemeNames(), ", "))
	}
	return nil
}

func listSolvers(cmd *cobra.Command, args []string) error {
	for _, name := range experiment.NewRegistry().ListSolvers() {
		fmt.Println(name)
	}
	return nil
}

func sweepModel(cmd *cobra.Command, args []string) error {
	if sweepSteps < 2 {
		return fmt.Errorf("--steps must be at least 2, got %d", sweepSteps)
	}
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	base, err := cfg.Experiment(experiment.NewRegistry())
	if err != nil {
		return err
	}

	values := dynamo.Linspace(sweepFrom, sweepTo, sweepSteps)
	logger.Info("sweeping", "model", cfg.Model, "param", sweepParam, "from", sweepFrom, "to", sweepTo, "steps", sweepSteps)
	swept, err := analysis.Sweep(cmd.Context(), base, sweepParam, values, workers)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tR0\tFINAL SIZE\tATTACK RATE\tPEAK\tPEAK DAY\n", strings.ToUpper(sweepParam))
	sizes := make([]float64, len(swept))
	for i, p := range swept {
		sizes[i] = p.FinalSize
		fmt.Fprintf(w, "%.4g\t%.3g\t%.1f\t%.3f\t%.1f\t%.0f\n",
			p.Value, p.R0, p.FinalSize, p.AttackRate, p.PeakInfected, p.PeakTime)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(asciigraph.Plot(sizes,
		asciigraph.Height(10),
		asciigraph.Caption(fmt.Sprintf("final size vs %s", sweepParam))))

	if at, ok := analysis.Threshold(swept); ok {
		fmt.Println(viz.Highlight.Render(fmt.Sprintf("R0 crosses 1 at %s ≈ %.4g", sweepParam, at)))
	} else {
		fmt.Println(viz.Subtle.Render("R0 does not cross 1 in the swept range"))
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	results, err := automation.RunScenario(cmd.Context(), sc, experiment.NewRegistry())
	if err != nil {
		return err
	}

	fmt.Println(viz.TitleStyle.Render(sc.Name))
	if sc.Description != "" {
		fmt.Println(viz.Subtle.Render(sc.Description))
	}
	summaries := make([]experiment.Summary, len(results))
	for i, r := range results {
		summaries[i] = r.Summary
	}
	fmt.Println(viz.SummaryTable(summaries))
	for _, s := range summaries {
		warnings(s)
	}

	if !save {
		return nil
	}
	st := storage.New(dataDir)
	for _, r := range results {
		if err := storeRun(st, r.Experiment, r.Config.Solver, r.Trajectory); err != nil {
			return err
		}
	}
	return nil
}

func playModel(cmd *cobra.Command, args []string) error {
	_, exp, traj, err := execute(cmd, args)
	if err != nil {
		return err
	}
	return viz.Play(exp.Variant().Title(), traj)
}
