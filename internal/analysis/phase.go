package analysis

import (
	"fmt"
	"strings"

	"github.com/san-kum/episim/internal/dynamo"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D holds the trajectory projected onto two compartments.
type PhasePortrait2D struct {
	XIndex, YIndex int
	XLabel, YLabel string
	Points         []Point
}

func FromTrajectory(traj *dynamo.Trajectory, xIdx, yIdx int) (*PhasePortrait2D, error) {
	if len(traj.States) == 0 {
		return nil, fmt.Errorf("phase portrait: empty trajectory")
	}
	dim := len(traj.States[0])
	if xIdx < 0 || yIdx < 0 || xIdx >= dim || yIdx >= dim {
		return nil, fmt.Errorf("phase portrait: index out of range for %d compartments", dim)
	}

	portrait := &PhasePortrait2D{
		XIndex: xIdx,
		YIndex: yIdx,
		XLabel: label(traj, xIdx),
		YLabel: label(traj, yIdx),
		Points: make([]Point, len(traj.States)),
	}
	for i, x := range traj.States {
		portrait.Points[i] = Point{X: x[xIdx], Y: x[yIdx]}
	}
	return portrait, nil
}

// FromLabels is FromTrajectory addressed by compartment label.
func FromLabels(traj *dynamo.Trajectory, xLabel, yLabel string) (*PhasePortrait2D, error) {
	xi, yi := -1, -1
	for i, l := range traj.Labels {
		if l == xLabel {
			xi = i
		}
		if l == yLabel {
			yi = i
		}
	}
	if xi < 0 || yi < 0 {
		return nil, fmt.Errorf("phase portrait: need compartments %q and %q, have %v", xLabel, yLabel, traj.Labels)
	}
	return FromTrajectory(traj, xi, yi)
}

func label(traj *dynamo.Trajectory, i int) string {
	if i < len(traj.Labels) {
		return traj.Labels[i]
	}
	return fmt.Sprintf("x%d", i)
}

// ToASCII plots the portrait on a width x height character grid. The first
// sample is drawn as 'o' and the last as '*'.
func (p *PhasePortrait2D) ToASCII(width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := p.Points[0].X, p.Points[0].X
	minY, maxY := p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = min(minX, pt.X), max(maxX, pt.X)
		minY, maxY = min(minY, pt.Y), max(maxY, pt.Y)
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}
	cell := func(pt Point) (int, int) {
		col := int((pt.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((pt.Y-minY)/rangeY*float64(height-1))
		return row, col
	}

	for _, pt := range p.Points {
		row, col := cell(pt)
		canvas[row][col] = '•'
	}
	row, col := cell(p.Points[0])
	canvas[row][col] = 'o'
	row, col = cell(p.Points[len(p.Points)-1])
	canvas[row][col] = '*'

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s ^ [%.4g, %.4g]\n", p.YLabel, minY, maxY)
	for _, r := range canvas {
		sb.WriteString("|")
		sb.WriteString(string(r))
		sb.WriteRune('\n')
	}
	fmt.Fprintf(&sb, "+%s> %s [%.4g, %.4g]\n", strings.Repeat("-", width), p.XLabel, minX, maxX)
	return sb.String()
}
