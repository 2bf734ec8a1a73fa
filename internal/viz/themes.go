package viz

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// Theme defines the colors of the player and the plot series.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Muted   lipgloss.Color
	Series  []asciigraph.AnsiColor
}

var (
	ThemeClassic = Theme{
		Name:    "classic",
		Primary: lipgloss.Color("#00ffff"),
		Accent:  lipgloss.Color("#ff00ff"),
		Muted:   lipgloss.Color("#666688"),
		Series:  []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Orange, asciigraph.Red, asciigraph.Green, asciigraph.Purple, asciigraph.Yellow, asciigraph.Cyan, asciigraph.Magenta, asciigraph.Gray},
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#0088ff"),
		Muted:   lipgloss.Color("#888888"),
		Series:  []asciigraph.AnsiColor{asciigraph.White, asciigraph.Gray, asciigraph.Red},
	}
)

var themes = []Theme{ThemeClassic, ThemeMinimal}

var CurrentTheme = ThemeClassic

// ThemeNames lists the themes SetTheme accepts.
func ThemeNames() []string {
	names := make([]string, len(themes))
	for i, t := range themes {
		names[i] = t.Name
	}
	return names
}

// SetTheme switches the current theme and reports whether name exists.
func SetTheme(name string) bool {
	for _, t := range themes {
		if t.Name == name {
			CurrentTheme = t
			applyTheme(t)
			return true
		}
	}
	return false
}

func nextTheme() {
	for i, t := range themes {
		if t.Name == CurrentTheme.Name {
			SetTheme(themes[(i+1)%len(themes)].Name)
			return
		}
	}
}

func (t Theme) seriesColor(i int) asciigraph.AnsiColor {
	if len(t.Series) == 0 {
		return asciigraph.Default
	}
	return t.Series[i%len(t.Series)]
}
