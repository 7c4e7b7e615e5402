package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/gangaflow/console/internal/console"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))

	statusOn  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("● connected")
	statusOff = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("● disconnected")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
	panelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	selectedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	descStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// lineStyles has one entry per console.LineKind.
var lineStyles = map[console.LineKind]lipgloss.Style{
	console.KindOutput:  lipgloss.NewStyle(),
	console.KindInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	console.KindMuted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	console.KindCommand: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
	console.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	console.KindWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	console.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

func styleFor(kind console.LineKind) lipgloss.Style {
	if s, ok := lineStyles[kind]; ok {
		return s
	}
	return lineStyles[console.KindOutput]
}
