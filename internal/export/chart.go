// Package export renders trajectories as PNG or SVG line charts.
package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/san-kum/episim/internal/dynamo"
)

type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG, nil
	case ".svg":
		return SVG, nil
	}
	return "", fmt.Errorf("export: unsupported chart format %q (want .png or .svg)", filepath.Ext(path))
}

func (f Format) provider() chart.RendererProvider {
	if f == SVG {
		return chart.SVG
	}
	return chart.PNG
}

var palette = []drawing.Color{
	drawing.ColorFromHex("1f77b4"),
	drawing.ColorFromHex("ff7f0e"),
	drawing.ColorFromHex("d62728"),
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("9467bd"),
	drawing.ColorFromHex("8c564b"),
	drawing.ColorFromHex("e377c2"),
	drawing.ColorFromHex("7f7f7f"),
	drawing.ColorFromHex("bcbd22"),
}

type Options struct {
	Title  string
	Width  int
	Height int
	// Columns selects compartments by label; empty means all.
	Columns []string
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 1200
	}
	if h <= 0 {
		h = 600
	}
	return w, h
}

// Line is one named series of a comparison chart.
type Line struct {
	Name   string
	Times  []float64
	Values []float64
}

// Trajectory renders the selected compartments of traj against time.
func Trajectory(w io.Writer, f Format, traj *dynamo.Trajectory, opts Options) error {
	lines, err := linesOf(traj, opts.Columns)
	if err != nil {
		return err
	}
	return Lines(w, f, lines, opts)
}

func linesOf(traj *dynamo.Trajectory, columns []string) ([]Line, error) {
	if len(columns) == 0 {
		columns = traj.Labels
	}
	index := make(map[string]int, len(traj.Labels))
	for i, l := range traj.Labels {
		index[l] = i
	}

	lines := make([]Line, 0, len(columns))
	for _, c := range columns {
		i, ok := index[c]
		if !ok {
			return nil, fmt.Errorf("export: trajectory has no compartment %q (have %v)", c, traj.Labels)
		}
		lines = append(lines, Line{Name: c, Times: traj.Times, Values: traj.Series(i)})
	}
	return lines, nil
}

// Lines renders arbitrary series on one set of axes.
func Lines(w io.Writer, f Format, lines []Line, opts Options) error {
	if len(lines) == 0 {
		return fmt.Errorf("export: nothing to plot")
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	series := make([]chart.Series, 0, len(lines))
	for i, l := range lines {
		if len(l.Times) < 2 || len(l.Times) != len(l.Values) {
			return fmt.Errorf("export: series %q needs at least 2 matching samples", l.Name)
		}
		for _, v := range l.Values {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    l.Name,
			XValues: l.Times,
			YValues: l.Values,
			Style: chart.Style{
				StrokeColor: palette[i%len(palette)],
				StrokeWidth: 2,
			},
		})
	}

	width, height := opts.size()
	graph := chart.Chart{
		Title:  opts.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name: "days",
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
		},
		YAxis: chart.YAxis{
			Name: "population",
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
		},
		Series: series,
	}
	if hi-lo < 1e-9 {
		// go-chart refuses a zero-height range.
		graph.YAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	return graph.Render(f.provider(), w)
}

// Save renders traj to path, choosing the format from its extension.
func Save(path string, traj *dynamo.Trajectory, opts Options) error {
	lines, err := linesOf(traj, opts.Columns)
	if err != nil {
		return err
	}
	return SaveLines(path, lines, opts)
}

// SaveLines renders lines to path, choosing the format from its extension.
func SaveLines(path string, lines []Line, opts Options) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Lines(file, f, lines, opts); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
