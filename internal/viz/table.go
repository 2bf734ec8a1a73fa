package viz

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/episim/internal/experiment"
)

// SummaryTable lays out one column per run.
func SummaryTable(runs []experiment.Summary) string {
	headers := []string{""}
	for _, s := range runs {
		headers = append(headers, s.Name)
	}

	row := func(label string, cell func(experiment.Summary) string) []string {
		r := []string{label}
		for _, s := range runs {
			r = append(r, cell(s))
		}
		return r
	}

	rows := [][]string{
		row("R0", func(s experiment.Summary) string { return formatR0(s.R0) }),
		row("peak infected", func(s experiment.Summary) string { return fmt.Sprintf("%.0f", s.PeakInfected) }),
		row("peak day", func(s experiment.Summary) string { return fmt.Sprintf("%.0f", s.PeakTime) }),
		row("final size", func(s experiment.Summary) string { return fmt.Sprintf("%.0f", s.FinalSize) }),
		row("attack rate", func(s experiment.Summary) string { return fmt.Sprintf("%.1f%%", 100*s.AttackRate) }),
		row("conserved", func(s experiment.Summary) string {
			if s.Conserved() {
				return "yes"
			}
			return WarnStyle.Render("no")
		}),
		row("negatives", func(s experiment.Summary) string { return fmt.Sprintf("%d", s.NegativeSamples) }),
		row("steps", func(s experiment.Summary) string {
			return fmt.Sprintf("%d (%d rejected)", s.Stats.Steps, s.Stats.Rejected)
		}),
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(CurrentTheme.Muted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(r, c int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case r == table.HeaderRow:
				return s.Bold(true).Foreground(CurrentTheme.Primary)
			case c == 0:
				return s.Foreground(CurrentTheme.Muted)
			}
			return s.Align(lipgloss.Right)
		}).
		String()
}

// FinalTable lists the final value of every compartment of one run.
func FinalTable(s experiment.Summary, labels []string) string {
	rows := make([][]string, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []string{l, fmt.Sprintf("%.1f", s.Final[l])})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("compartment", "final").
		Rows(rows...).
		String()
}

func formatR0(r0 float64) string {
	if math.IsInf(r0, 0) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", r0)
}
