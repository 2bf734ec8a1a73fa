package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/episim/internal/dynamo"
)

const (
	frameInterval = time.Second / 30
	sparkWidth    = 24
)

type TickMsg time.Time

// Player replays a finished trajectory sample by sample.
type Player struct {
	title    string
	traj     *dynamo.Trajectory
	cursor   int
	speed    int
	running  bool
	selected int
	width    int
}

func NewPlayer(title string, traj *dynamo.Trajectory) Player {
	return Player{
		title:   title,
		traj:    traj,
		speed:   1,
		running: true,
		width:   60,
	}
}

func (p Player) Cursor() int      { return p.cursor }
func (p Player) Speed() int       { return p.speed }
func (p Player) Running() bool    { return p.running }
func (p Player) Selected() string { return p.traj.Labels[p.selected] }

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (p Player) Init() tea.Cmd {
	return tick()
}

func (p Player) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	last := p.traj.Len() - 1
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return p, tea.Quit
		case " ", "space":
			p.running = !p.running
		case "right", "l":
			p.running = false
			p.cursor = min(p.cursor+1, last)
		case "left", "h":
			p.running = false
			p.cursor = max(p.cursor-1, 0)
		case "+", "=":
			p.speed = min(p.speed*2, 64)
		case "-", "_":
			p.speed = max(p.speed/2, 1)
		case "tab":
			if len(p.traj.Labels) > 0 {
				p.selected = (p.selected + 1) % len(p.traj.Labels)
			}
		case "r":
			p.cursor = 0
			p.running = true
		case "t":
			nextTheme()
		}
	case tea.WindowSizeMsg:
		p.width = max(msg.Width-20, 20)
	case TickMsg:
		if p.running {
			p.cursor = min(p.cursor+p.speed, last)
			if p.cursor == last {
				p.running = false
			}
		}
		return p, tick()
	}
	return p, nil
}

func (p Player) View() string {
	if p.traj.Len() == 0 {
		return "empty trajectory\n"
	}

	var s strings.Builder
	s.WriteString(HeaderStyle.Render(strings.ToUpper(p.title)) + "\n")

	status := StatusRunning.Render("PLAYING")
	if !p.running {
		status = StatusPaused.Render("PAUSED")
	}
	fmt.Fprintf(&s, "%s  day %s  x%d\n", status, MetricValue.Render(fmt.Sprintf("%.1f", p.traj.Times[p.cursor])), p.speed)
	s.WriteString(ProgressBar(float64(p.cursor)/float64(max(p.traj.Len()-1, 1)), p.width) + "\n\n")

	x := p.traj.States[p.cursor]
	for i, label := range p.traj.Labels {
		name := MetricLabel.Render(label)
		if i == p.selected {
			name = Highlight.Render(fmt.Sprintf("%-12s", label))
		}
		spark := Sparkline(p.traj.Series(i)[:p.cursor+1], sparkWidth)
		fmt.Fprintf(&s, "%s %s  %s\n", name, MetricValue.Render(fmt.Sprintf("%12.1f", x[i])), spark)
	}

	series := p.traj.Series(p.selected)[:p.cursor+1]
	if len(series) > 1 {
		s.WriteString("\n")
		s.WriteString(asciigraph.Plot(series,
			asciigraph.Height(8),
			asciigraph.Width(p.width),
			asciigraph.SeriesColors(CurrentTheme.seriesColor(p.selected)),
			asciigraph.Caption(p.traj.Labels[p.selected]),
		))
		s.WriteString("\n")
	}

	s.WriteString("\n" + KeyHint.Render("space pause · ←/→ step · +/- speed · tab compartment · r restart · t theme · q quit") + "\n")
	return s.String()
}

// Play runs the player until the user quits.
func Play(title string, traj *dynamo.Trajectory) error {
	if traj.Len() == 0 || len(traj.Labels) == 0 {
		return fmt.Errorf("play: trajectory has no labelled samples")
	}
	_, err := tea.NewProgram(NewPlayer(title, traj)).Run()
	return err
}
