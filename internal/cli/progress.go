package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/virail/studio/internal/analyzer"
)

const barWidth = 24

var (
	barFill    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	barEmpty   = lipgloss.NewStyle().Faint(true)
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// progressLine renders one state as a single terminal line. Simulated values
// carry a "~" so they do not read as measurements.
func progressLine(subject string, s analyzer.State) string {
	filled := s.Progress * barWidth / 100
	bar := barFill.Render(strings.Repeat("█", filled)) + barEmpty.Render(strings.Repeat("░", barWidth-filled))

	pct := fmt.Sprintf("%3d%%", s.Progress)
	if s.Simulated {
		pct = "~" + pct
	} else {
		pct = " " + pct
	}

	switch s.Phase {
	case analyzer.Succeeded:
		pct = doneStyle.Render(pct)
	case analyzer.Failed:
		pct = faintStyle.Render(" failed")
	}
	return fmt.Sprintf("Analyzing %s  %s %s", subject, bar, pct)
}

// renderProgress redraws the progress line for every state until states is
// closed, then ends the line. It returns when done.
func renderProgress(w io.Writer, subject string, states <-chan analyzer.State) {
	drawn := false
	for s := range states {
		if s.Phase == analyzer.Idle {
			continue
		}
		_, _ = fmt.Fprintf(w, "\r\033[K%s", progressLine(subject, s))
		drawn = true
	}
	if drawn {
		_, _ = fmt.Fprintln(w)
	}
}
