package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/registry"
)

var (
	// Colors meet WCAG AA contrast on dark terminals.
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB")
	BorderColor    = lipgloss.Color("#6B7280")
	BlueColor      = lipgloss.Color("#60A5FA")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	mutedStyle   = lipgloss.NewStyle().Foreground(MutedColor)
	errorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	warningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	successStyle = lipgloss.NewStyle().Foreground(SecondaryColor)
	inputStyle   = lipgloss.NewStyle().Foreground(BlueColor)
	systemStyle  = lipgloss.NewStyle().Foreground(MutedColor).Italic(true)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	logPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(TextColor).
				Background(lipgloss.Color("#374151"))

	helpStyle = lipgloss.NewStyle().Foreground(MutedColor)

	errorBarStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Background(ErrorColor).
			Padding(0, 1)
)

// stateColor returns the badge color for a lifecycle state.
func stateColor(s registry.State) lipgloss.Color {
	switch s {
	case registry.StateRunning:
		return SecondaryColor
	case registry.StateRestarting:
		return WarningColor
	case registry.StateError:
		return ErrorColor
	default:
		return MutedColor
	}
}

// stateIcon returns the single-character indicator shown in the list.
func stateIcon(s registry.State) string {
	switch s {
	case registry.StateRunning:
		return "●"
	case registry.StateRestarting:
		return "↻"
	case registry.StateError:
		return "✗"
	default:
		return "○"
	}
}

// lineStyle picks the style for a captured line. Echoed input and
// supervisor notices are styled by stream; program output by tag.
func lineStyle(l logbuffer.Line) lipgloss.Style {
	switch l.Stream {
	case logbuffer.StreamInput:
		return inputStyle
	case logbuffer.StreamSystem:
		if l.Tag == logbuffer.TagError {
			return errorStyle
		}
		return systemStyle
	}
	switch l.Tag {
	case logbuffer.TagError:
		return errorStyle
	case logbuffer.TagWarning:
		return warningStyle
	case logbuffer.TagSuccess:
		return successStyle
	}
	return lipgloss.NewStyle()
}
