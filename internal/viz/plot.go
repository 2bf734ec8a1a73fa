package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/episim/internal/dynamo"
)

type PlotOptions struct {
	Width, Height int
	Caption       string
	// Columns selects compartments by label; empty means all.
	Columns []string
}

// Plot draws the selected compartments of traj on one asciigraph chart.
func Plot(traj *dynamo.Trajectory, opts PlotOptions) (string, error) {
	if traj.Len() < 2 {
		return "", fmt.Errorf("plot: need at least 2 samples, have %d", traj.Len())
	}
	columns := opts.Columns
	if len(columns) == 0 {
		columns = traj.Labels
	}

	data := make([][]float64, 0, len(columns))
	for _, c := range columns {
		idx := indexOf(traj.Labels, c)
		if idx < 0 {
			return "", fmt.Errorf("plot: no compartment %q (have %s)", c, strings.Join(traj.Labels, ", "))
		}
		data = append(data, traj.Series(idx))
	}

	if opts.Caption == "" {
		opts.Caption = fmt.Sprintf("days %g-%g", traj.Times[0], traj.Times[traj.Len()-1])
	}
	return Overlay(columns, data, opts)
}

// Overlay draws named series on one chart. Columns is ignored.
func Overlay(names []string, data [][]float64, opts PlotOptions) (string, error) {
	if len(data) == 0 || len(names) != len(data) {
		return "", fmt.Errorf("plot: %d names for %d series", len(names), len(data))
	}
	colors := make([]asciigraph.AnsiColor, len(data))
	for i, s := range data {
		if len(s) < 2 {
			return "", fmt.Errorf("plot: series %q needs at least 2 samples", names[i])
		}
		colors[i] = CurrentTheme.seriesColor(i)
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 12
	}

	plotOpts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(names...),
	}
	if opts.Caption != "" {
		plotOpts = append(plotOpts, asciigraph.Caption(opts.Caption))
	}
	return asciigraph.PlotMany(data, plotOpts...), nil
}

func indexOf(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}
