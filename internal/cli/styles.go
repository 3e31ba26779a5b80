package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the palette used for terminal output. A renderer bound to the
// destination writer drops colors when it is not a terminal.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Reply   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Rule    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Label:   r.NewStyle().Foreground(lipgloss.Color("245")),
		Reply:   r.NewStyle().Foreground(lipgloss.Color("255")),
		Success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("196")),
		Muted:   r.NewStyle().Faint(true),
		Rule:    r.NewStyle().Foreground(lipgloss.Color("63")),
	}
}
