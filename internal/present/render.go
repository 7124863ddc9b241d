package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(72)
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

// SeverityColor is the accent colour for a severity.
func SeverityColor(s Severity) lipgloss.Color {
	switch s {
	case SeverityError:
		return lipgloss.Color("9")
	case SeverityWarning:
		return lipgloss.Color("11")
	default:
		return lipgloss.Color("12")
	}
}

// Render draws p as a bordered terminal panel.
func Render(w io.Writer, p Presentation) error {
	accent := SeverityColor(p.Severity)

	var b strings.Builder
	b.WriteString(titleStyle.Foreground(accent).Render(p.Title))
	b.WriteString("\n")
	b.WriteString(p.Description)
	if p.Message != "" && p.Message != p.Description {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(p.Message))
	}
	if len(p.Suggestions) > 0 {
		b.WriteString("\n\nWhat you can do:")
		for i, s := range p.Suggestions {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, s)
		}
	}

	var actions []string
	if p.Retry != nil {
		actions = append(actions, p.Retry.Label)
	}
	if p.OpenURL != nil {
		actions = append(actions, p.OpenURL.Label)
	}
	if len(actions) > 0 {
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("Actions: " + strings.Join(actions, " · ")))
	}

	_, err := fmt.Fprintln(w, panelStyle.BorderForeground(accent).Render(b.String()))
	return err
}
