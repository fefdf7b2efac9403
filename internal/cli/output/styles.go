package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the renderer.
type Styles struct {
	Header  lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles creates the styles for a lipgloss renderer.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// Status returns the style for a run, step or check status.
func (s *Styles) Status(status string) lipgloss.Style {
	switch status {
	case "success", "completed", "passed":
		return s.Success
	case "failed", "error":
		return s.Error
	case "warning", "skipped", "cancelled":
		return s.Warning
	}
	return s.Muted
}

// StatusSymbol returns the one-character marker of a status.
func StatusSymbol(status string) string {
	switch status {
	case "success", "completed", "passed":
		return "✓"
	case "failed", "error":
		return "✗"
	case "warning":
		return "!"
	case "skipped", "cancelled":
		return "-"
	}
	return "·"
}
